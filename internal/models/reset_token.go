package models

import "time"

// ResetToken is a single-use password recovery credential. Once consumed it
// can never authorize another reset; consumed and expired are distinct
// internal states even though the API surfaces both as TOKEN_EXPIRED.
type ResetToken struct {
	TokenHash    string
	AccountEmail string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Consumed     bool
}

func (t *ResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
