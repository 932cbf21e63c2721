package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/models"
	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
)

// DeclineThreshold is the number of declines inside the sliding window that
// blocks further payment attempts.
const DeclineThreshold = 3

// FraudGuard tracks payment declines per account over a sliding window.
// Declines are never cleared by a later successful payment; only window
// expiry ages them out, so a block holds for the remainder of its window.
type FraudGuard struct {
	declines    DeclineRepository
	clock       clock.Clock
	window      time.Duration
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewFraudGuard creates a new FraudGuard
func NewFraudGuard(declines DeclineRepository, clk clock.Clock, window time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *FraudGuard {
	return &FraudGuard{
		declines:    declines,
		clock:       clk,
		window:      window,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// RecordDecline appends a decline at the current instant and reports
// whether the account is now blocked.
func (g *FraudGuard) RecordDecline(ctx context.Context, accountEmail string) (bool, error) {
	now := g.clock.Now()

	if err := g.declines.Record(ctx, &models.PaymentDecline{
		AccountEmail: accountEmail,
		DeclinedAt:   now,
	}); err != nil {
		return false, fmt.Errorf("failed to record decline: %w", err)
	}

	count, err := g.declinesInWindow(ctx, accountEmail, now)
	if err != nil {
		return false, err
	}

	g.auditLogger.LogFraudEvent("payment_declined", accountEmail, count)

	if count >= DeclineThreshold {
		g.logger.Warn("account blocked for payment fraud",
			slog.String("account", pkglogger.SanitizedEmail(accountEmail)),
			slog.Int("declines_in_window", count))
		g.auditLogger.LogFraudEvent("account_blocked", accountEmail, count)
		return true, nil
	}

	return false, nil
}

// IsBlocked reports whether the account currently sits above the decline
// threshold. Expiry is evaluated lazily: a decline stops counting once it
// falls out of the trailing window.
func (g *FraudGuard) IsBlocked(ctx context.Context, accountEmail string) (bool, error) {
	count, err := g.declinesInWindow(ctx, accountEmail, g.clock.Now())
	if err != nil {
		return false, err
	}
	return count >= DeclineThreshold, nil
}

func (g *FraudGuard) declinesInWindow(ctx context.Context, accountEmail string, now time.Time) (int, error) {
	declines, err := g.declines.ListSince(ctx, accountEmail, now.Add(-g.window))
	if err != nil {
		return 0, fmt.Errorf("failed to list declines: %w", err)
	}
	return len(declines), nil
}
