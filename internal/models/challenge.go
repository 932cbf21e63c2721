package models

import "time"

// TwoFactorChallenge is a single-use code issued after a successful primary
// authentication. At most one non-consumed challenge exists per account;
// issuing a new one replaces the prior. Only the SHA-256 hash of the code is
// retained.
type TwoFactorChallenge struct {
	AccountEmail string
	CodeHash     string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Consumed     bool
}

// IsExpired evaluates expiry lazily against the injected clock.
func (c *TwoFactorChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
