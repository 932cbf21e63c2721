package notify

import "context"

// Kind selects the message template a channel delivers.
type Kind string

const (
	KindTwoFactorCode Kind = "TWO_FACTOR_CODE"
	KindResetLink     Kind = "RESET_LINK"
)

// Notifier delivers a code or link to an account's out-of-band channel.
// Dispatch is fire-and-forget from the engine's perspective: a failure is
// logged by the caller, never retried, and never rolls back engine state
// that was already committed.
type Notifier interface {
	Send(ctx context.Context, accountEmail string, kind Kind, payload string) error
}
