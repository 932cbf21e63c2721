package policy

import (
	"context"
	"time"

	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
)

// AccountRepository persists per-account security state. Implementations
// are plain key-value stores; all serialization happens in the engine's
// per-account sections.
type AccountRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateLoginState(ctx context.Context, email string, failedAttempts int, lockedUntil *time.Time) error
	UpdateTOTP(ctx context.Context, email string, secret, nonce []byte) error
}

// ChallengeRepository holds at most one two-factor challenge per account.
type ChallengeRepository interface {
	// Replace installs a new challenge for the account, invalidating any
	// prior one.
	Replace(ctx context.Context, challenge *models.TwoFactorChallenge) error
	Get(ctx context.Context, accountEmail string) (*models.TwoFactorChallenge, error)
	// Consume atomically marks the account's challenge consumed. Returns
	// models.ErrNotFound when there is no unconsumed challenge.
	Consume(ctx context.Context, accountEmail string) error
	Delete(ctx context.Context, accountEmail string) error
}

// ResetTokenRepository holds at most one outstanding reset token per account,
// addressable by token hash.
type ResetTokenRepository interface {
	// Replace installs a new token for the account, invalidating any prior
	// outstanding token.
	Replace(ctx context.Context, token *models.ResetToken) error
	GetByHash(ctx context.Context, tokenHash string) (*models.ResetToken, error)
	// Consume marks the token consumed and installs the new credential hash
	// on the token's account in one atomic step: neither write lands without
	// the other. Returns models.ErrNotFound when the token does not exist or
	// was already consumed, in which case the credential is untouched.
	Consume(ctx context.Context, tokenHash, passwordHash string, changedAt time.Time) error
}

// DeclineRepository records payment decline timestamps per account.
type DeclineRepository interface {
	Record(ctx context.Context, decline *models.PaymentDecline) error
	ListSince(ctx context.Context, accountEmail string, since time.Time) ([]models.PaymentDecline, error)
}

// CheckoutRepository persists checkout sessions by id.
type CheckoutRepository interface {
	Create(ctx context.Context, session *models.CheckoutSession) error
	Get(ctx context.Context, id string) (*models.CheckoutSession, error)
	Update(ctx context.Context, session *models.CheckoutSession) error
}

// CredentialStore verifies primary credentials. The engine never compares
// hashes itself; locked accounts short-circuit before Verify is reached.
// Credential updates go through ResetTokenRepository.Consume so they commit
// together with the token burn.
type CredentialStore interface {
	Verify(ctx context.Context, email, password string) (bool, error)
}

// OrderHistory answers coupon eligibility questions about past orders and
// records completed purchases.
type OrderHistory interface {
	PriorOrderCount(ctx context.Context, accountEmail string) (int, error)
	RecordOrder(ctx context.Context, accountEmail string, total money.Money, completedAt time.Time) error
}
