package models

import "errors"

// Kind is the stable machine-readable code for a policy violation. The API
// layer returns these codes verbatim; human-readable messaging is the
// caller's concern.
type Kind string

const (
	KindInvalidCredentials  Kind = "INVALID_CREDENTIALS"
	KindAccountLocked       Kind = "ACCOUNT_LOCKED"
	KindCodeInvalid         Kind = "CODE_INVALID"
	KindCodeExpired         Kind = "CODE_EXPIRED"
	KindTokenInvalid        Kind = "TOKEN_INVALID"
	KindTokenExpired        Kind = "TOKEN_EXPIRED"
	KindPasswordMismatch    Kind = "PASSWORD_MISMATCH"
	KindWeakPassword        Kind = "WEAK_PASSWORD"
	KindNotFirstPurchase    Kind = "NOT_FIRST_PURCHASE"
	KindThresholdNotMet     Kind = "THRESHOLD_NOT_MET"
	KindCouponNotCombinable Kind = "COUPON_NOT_COMBINABLE"
	KindFraudBlocked        Kind = "FRAUD_BLOCKED"
)

// PolicyError is a rule violation surfaced as a recoverable result. It never
// represents an infrastructure failure; those use the sentinel errors below.
type PolicyError struct {
	Kind Kind
}

func (e *PolicyError) Error() string {
	return string(e.Kind)
}

// One sentinel per kind so callers can errors.Is against them.
var (
	ErrInvalidCredentials  = &PolicyError{Kind: KindInvalidCredentials}
	ErrAccountLocked       = &PolicyError{Kind: KindAccountLocked}
	ErrCodeInvalid         = &PolicyError{Kind: KindCodeInvalid}
	ErrCodeExpired         = &PolicyError{Kind: KindCodeExpired}
	ErrTokenInvalid        = &PolicyError{Kind: KindTokenInvalid}
	ErrTokenExpired        = &PolicyError{Kind: KindTokenExpired}
	ErrPasswordMismatch    = &PolicyError{Kind: KindPasswordMismatch}
	ErrWeakPassword        = &PolicyError{Kind: KindWeakPassword}
	ErrNotFirstPurchase    = &PolicyError{Kind: KindNotFirstPurchase}
	ErrThresholdNotMet     = &PolicyError{Kind: KindThresholdNotMet}
	ErrCouponNotCombinable = &PolicyError{Kind: KindCouponNotCombinable}
	ErrFraudBlocked        = &PolicyError{Kind: KindFraudBlocked}
)

// KindOf extracts the policy kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// Sentinel errors for infrastructure failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternalServer = errors.New("internal server error")

	// ErrNoChallenge is a contract violation: verifying a 2FA code for an
	// account that was never issued a challenge. Not part of the policy
	// taxonomy.
	ErrNoChallenge = errors.New("no challenge outstanding for account")
)
