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

// LockoutThreshold is the number of consecutive failures that locks an
// account. The transition happens on exactly the fifth failure.
const LockoutThreshold = 5

// AttemptTracker counts consecutive failed logins per account and applies
// the lockout transition. Callers must hold the account's exclusive section
// so the fifth-failure transition is observed exactly once.
type AttemptTracker struct {
	accounts        AccountRepository
	clock           clock.Clock
	lockoutDuration time.Duration
	logger          *slog.Logger
	auditLogger     *pkglogger.AuditLogger
}

// NewAttemptTracker creates a new AttemptTracker
func NewAttemptTracker(accounts AccountRepository, clk clock.Clock, lockoutDuration time.Duration, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AttemptTracker {
	return &AttemptTracker{
		accounts:        accounts,
		clock:           clk,
		lockoutDuration: lockoutDuration,
		logger:          logger,
		auditLogger:     auditLogger,
	}
}

// IsLocked reports whether the account is currently locked out.
func (t *AttemptTracker) IsLocked(account *models.Account) bool {
	return account.IsLocked(t.clock.Now())
}

// RecordFailure increments the consecutive-failure counter and, on the
// fifth failure, sets lockedUntil. Returns true when this failure caused
// the lockout transition.
func (t *AttemptTracker) RecordFailure(ctx context.Context, account *models.Account) (bool, error) {
	account.FailedAttempts++

	locked := false
	if account.FailedAttempts >= LockoutThreshold {
		until := t.clock.Now().Add(t.lockoutDuration)
		account.LockedUntil = &until
		locked = true
	}

	if err := t.accounts.UpdateLoginState(ctx, account.Email, account.FailedAttempts, account.LockedUntil); err != nil {
		return false, fmt.Errorf("failed to persist login state: %w", err)
	}

	if locked {
		t.logger.Warn("account locked after consecutive failures",
			slog.String("account", pkglogger.SanitizedEmail(account.Email)),
			slog.Int("failed_attempts", account.FailedAttempts))
		t.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "account_locked",
			AccountEmail:  account.Email,
			FailureReason: "failed_attempt_threshold",
			Success:       false,
		})
	}

	return locked, nil
}

// RecordSuccess resets the consecutive-failure counter to zero and clears
// any expired lock.
func (t *AttemptTracker) RecordSuccess(ctx context.Context, account *models.Account) error {
	account.FailedAttempts = 0
	account.LockedUntil = nil

	if err := t.accounts.UpdateLoginState(ctx, account.Email, 0, nil); err != nil {
		return fmt.Errorf("failed to persist login state: %w", err)
	}
	return nil
}
