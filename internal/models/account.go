package models

import (
	"time"
)

// Account is the per-user security state the engine mutates. Accounts are
// identified by email and never deleted by the engine.
type Account struct {
	Email             string
	PasswordHash      string
	FailedAttempts    int
	LockedUntil       *time.Time
	PasswordChangedAt *time.Time

	// TOTP enrollment. Nil TOTPSecret means no authenticator app is bound;
	// the secret is stored AES-GCM encrypted alongside its nonce.
	TOTPSecret []byte
	TOTPNonce  []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked reports whether the account is under a lockout at the given
// instant. A nil LockedUntil means no lock was ever applied.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// TOTPEnrolled reports whether an authenticator app is bound to the account.
func (a *Account) TOTPEnrolled() bool {
	return len(a.TOTPSecret) > 0
}
