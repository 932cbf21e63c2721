package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/models"
	pkgauth "github.com/BradenHooton/scarif/pkg/auth"
	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
)

// ResetTokens issues, validates and consumes single-use password reset
// tokens. Consumed and expired tokens are distinct internal states, but
// both surface as TOKEN_EXPIRED so a replayed token reveals nothing about
// why it no longer works.
type ResetTokens struct {
	tokens      ResetTokenRepository
	clock       clock.Clock
	expiry      time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewResetTokens creates a new ResetTokens store
func NewResetTokens(tokens ResetTokenRepository, clk clock.Clock, expiry time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *ResetTokens {
	return &ResetTokens{
		tokens:      tokens,
		clock:       clk,
		expiry:      expiry,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Request invalidates any outstanding token for the account and issues a
// fresh one. The plain token is returned for dispatch outside the account's
// exclusive section.
func (r *ResetTokens) Request(ctx context.Context, accountEmail string) (string, error) {
	plainToken := uuid.New().String()

	now := r.clock.Now()
	token := &models.ResetToken{
		TokenHash:    hashToken(plainToken),
		AccountEmail: accountEmail,
		IssuedAt:     now,
		ExpiresAt:    now.Add(r.expiry),
	}

	if err := r.tokens.Replace(ctx, token); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	r.auditLogger.LogPasswordReset("reset_requested", accountEmail, true)

	return plainToken, nil
}

// Complete validates a presented token and the proposed password and, when
// both pass, consumes the token atomically with the credential update.
// Password failures never burn the token; the user may retry with the same
// link. A consumed or expired token always fails with a token-kind error.
func (r *ResetTokens) Complete(ctx context.Context, plainToken, newPassword, confirmPassword string) (string, error) {
	token, err := r.tokens.GetByHash(ctx, hashToken(plainToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrTokenInvalid
		}
		return "", fmt.Errorf("failed to load reset token: %w", err)
	}

	now := r.clock.Now()
	if token.Consumed || token.IsExpired(now) {
		r.auditLogger.LogPasswordReset("reset_replayed", token.AccountEmail, false)
		return "", models.ErrTokenExpired
	}

	if newPassword != confirmPassword {
		return "", models.ErrPasswordMismatch
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return "", models.ErrWeakPassword
	}

	passwordHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	// The token burn and the credential install commit together: if either
	// fails the token remains live and the user may retry with the same
	// link. The CAS on the consumed flag guarantees a single winner; the
	// loser of a concurrent race gets the token-kind error.
	if err := r.tokens.Consume(ctx, token.TokenHash, passwordHash, now); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrTokenExpired
		}
		return "", fmt.Errorf("failed to consume reset token: %w", err)
	}

	r.auditLogger.LogPasswordReset("reset_completed", token.AccountEmail, true)

	return token.AccountEmail, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
