package policy

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/BradenHooton/scarif/internal/auth"
	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/models"
	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
)

const codeDigits = 6

// CodeChallenge issues and verifies single-use two-factor codes. Only the
// SHA-256 hash of a code is retained; the plain code goes out through the
// notification channel once and is never recoverable from the engine.
type CodeChallenge struct {
	challenges ChallengeRepository
	clock      clock.Clock
	validity   time.Duration
	totp       *auth.TOTPManager // nil when authenticator 2FA is disabled
	logger     *slog.Logger
}

// NewCodeChallenge creates a new CodeChallenge
func NewCodeChallenge(challenges ChallengeRepository, clk clock.Clock, validity time.Duration, totp *auth.TOTPManager, logger *slog.Logger) *CodeChallenge {
	return &CodeChallenge{
		challenges: challenges,
		clock:      clk,
		validity:   validity,
		totp:       totp,
		logger:     logger,
	}
}

// Issue creates a fresh challenge for the account, replacing any prior one,
// and returns the plain code for dispatch. The caller sends the code to the
// account's channel after releasing the account's exclusive section.
func (c *CodeChallenge) Issue(ctx context.Context, accountEmail string) (string, error) {
	code, err := generateNumericCode(codeDigits)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	now := c.clock.Now()
	challenge := &models.TwoFactorChallenge{
		AccountEmail: accountEmail,
		CodeHash:     hashCode(code),
		IssuedAt:     now,
		ExpiresAt:    now.Add(c.validity),
	}

	if err := c.challenges.Replace(ctx, challenge); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}

	c.logger.Info("two-factor challenge issued",
		slog.String("account", pkglogger.SanitizedEmail(accountEmail)),
		slog.Time("expires_at", challenge.ExpiresAt))

	return code, nil
}

// Verify checks a submitted code against the account's outstanding
// challenge. A correct code consumes the challenge; a wrong one leaves it
// intact so the user may retry until expiry. A correct-but-expired code is
// reported as expired, distinct from a wrong value. When the account has an
// authenticator app enrolled, a current TOTP code is accepted in place of
// the issued channel code.
func (c *CodeChallenge) Verify(ctx context.Context, account *models.Account, submittedCode string) error {
	challenge, err := c.challenges.Get(ctx, account.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Contract violation, not a policy outcome: verify was called
			// for an account that was never issued a challenge.
			return models.ErrNoChallenge
		}
		return fmt.Errorf("failed to load challenge: %w", err)
	}

	now := c.clock.Now()

	if challenge.Consumed {
		if challenge.IsExpired(now) {
			return models.ErrCodeExpired
		}
		return models.ErrCodeInvalid
	}

	if hashCode(submittedCode) != challenge.CodeHash {
		if c.verifyTOTP(account, submittedCode, now) {
			// Authenticator code accepted; retire the channel challenge so
			// it cannot satisfy a later verification.
			return c.consume(ctx, account.Email)
		}
		return models.ErrCodeInvalid
	}

	if challenge.IsExpired(now) {
		return models.ErrCodeExpired
	}

	return c.consume(ctx, account.Email)
}

// Revoke discards the account's outstanding challenge, if any. Called after
// a credential change so a code issued under the old password cannot
// complete a pending login.
func (c *CodeChallenge) Revoke(ctx context.Context, accountEmail string) error {
	if err := c.challenges.Delete(ctx, accountEmail); err != nil {
		return fmt.Errorf("failed to revoke challenge: %w", err)
	}
	return nil
}

func (c *CodeChallenge) consume(ctx context.Context, accountEmail string) error {
	if err := c.challenges.Consume(ctx, accountEmail); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Lost the consume race to a concurrent verify.
			return models.ErrCodeInvalid
		}
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	return nil
}

func (c *CodeChallenge) verifyTOTP(account *models.Account, submittedCode string, now time.Time) bool {
	if c.totp == nil || !account.TOTPEnrolled() {
		return false
	}

	secret, err := c.totp.DecryptSecret(account.TOTPSecret, account.TOTPNonce)
	if err != nil {
		c.logger.Error("failed to decrypt TOTP secret",
			slog.String("account", pkglogger.SanitizedEmail(account.Email)),
			slog.Any("error", err))
		return false
	}

	valid, err := c.totp.ValidateTOTP(secret, submittedCode, now)
	if err != nil {
		c.logger.Error("TOTP validation failed",
			slog.String("account", pkglogger.SanitizedEmail(account.Email)),
			slog.Any("error", err))
		return false
	}
	return valid
}

// generateNumericCode returns a fixed-length numeric string from crypto/rand.
func generateNumericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
