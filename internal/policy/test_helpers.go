package policy

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
	"github.com/BradenHooton/scarif/internal/notify"
	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByEmailFunc       func(ctx context.Context, email string) (*models.Account, error)
	CreateFunc           func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateLoginStateFunc func(ctx context.Context, email string, failedAttempts int, lockedUntil *time.Time) error
	UpdateTOTPFunc       func(ctx context.Context, email string, secret, nonce []byte) error
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return account, nil
}

func (m *MockAccountRepository) UpdateLoginState(ctx context.Context, email string, failedAttempts int, lockedUntil *time.Time) error {
	if m.UpdateLoginStateFunc != nil {
		return m.UpdateLoginStateFunc(ctx, email, failedAttempts, lockedUntil)
	}
	return nil
}

func (m *MockAccountRepository) UpdateTOTP(ctx context.Context, email string, secret, nonce []byte) error {
	if m.UpdateTOTPFunc != nil {
		return m.UpdateTOTPFunc(ctx, email, secret, nonce)
	}
	return nil
}

// MockChallengeRepository implements ChallengeRepository for testing
type MockChallengeRepository struct {
	ReplaceFunc func(ctx context.Context, challenge *models.TwoFactorChallenge) error
	GetFunc     func(ctx context.Context, accountEmail string) (*models.TwoFactorChallenge, error)
	ConsumeFunc func(ctx context.Context, accountEmail string) error
	DeleteFunc  func(ctx context.Context, accountEmail string) error
}

func (m *MockChallengeRepository) Replace(ctx context.Context, challenge *models.TwoFactorChallenge) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, challenge)
	}
	return nil
}

func (m *MockChallengeRepository) Get(ctx context.Context, accountEmail string) (*models.TwoFactorChallenge, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, accountEmail)
	}
	return nil, models.ErrNotFound
}

func (m *MockChallengeRepository) Consume(ctx context.Context, accountEmail string) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, accountEmail)
	}
	return nil
}

func (m *MockChallengeRepository) Delete(ctx context.Context, accountEmail string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, accountEmail)
	}
	return nil
}

// MockResetTokenRepository implements ResetTokenRepository for testing
type MockResetTokenRepository struct {
	ReplaceFunc   func(ctx context.Context, token *models.ResetToken) error
	GetByHashFunc func(ctx context.Context, tokenHash string) (*models.ResetToken, error)
	ConsumeFunc   func(ctx context.Context, tokenHash, passwordHash string, changedAt time.Time) error
}

func (m *MockResetTokenRepository) Replace(ctx context.Context, token *models.ResetToken) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, token)
	}
	return nil
}

func (m *MockResetTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.ResetToken, error) {
	if m.GetByHashFunc != nil {
		return m.GetByHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockResetTokenRepository) Consume(ctx context.Context, tokenHash, passwordHash string, changedAt time.Time) error {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, tokenHash, passwordHash, changedAt)
	}
	return nil
}

// MockDeclineRepository implements DeclineRepository for testing
type MockDeclineRepository struct {
	RecordFunc    func(ctx context.Context, decline *models.PaymentDecline) error
	ListSinceFunc func(ctx context.Context, accountEmail string, since time.Time) ([]models.PaymentDecline, error)
}

func (m *MockDeclineRepository) Record(ctx context.Context, decline *models.PaymentDecline) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, decline)
	}
	return nil
}

func (m *MockDeclineRepository) ListSince(ctx context.Context, accountEmail string, since time.Time) ([]models.PaymentDecline, error) {
	if m.ListSinceFunc != nil {
		return m.ListSinceFunc(ctx, accountEmail, since)
	}
	return nil, nil
}

// MockCheckoutRepository implements CheckoutRepository for testing
type MockCheckoutRepository struct {
	CreateFunc func(ctx context.Context, session *models.CheckoutSession) error
	GetFunc    func(ctx context.Context, id string) (*models.CheckoutSession, error)
	UpdateFunc func(ctx context.Context, session *models.CheckoutSession) error
}

func (m *MockCheckoutRepository) Create(ctx context.Context, session *models.CheckoutSession) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return nil
}

func (m *MockCheckoutRepository) Get(ctx context.Context, id string) (*models.CheckoutSession, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockCheckoutRepository) Update(ctx context.Context, session *models.CheckoutSession) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, session)
	}
	return nil
}

// MockCredentialStore implements CredentialStore for testing
type MockCredentialStore struct {
	VerifyFunc func(ctx context.Context, email, password string) (bool, error)
}

func (m *MockCredentialStore) Verify(ctx context.Context, email, password string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, email, password)
	}
	return false, nil
}

// MockOrderHistory implements OrderHistory for testing
type MockOrderHistory struct {
	PriorOrderCountFunc func(ctx context.Context, accountEmail string) (int, error)
	RecordOrderFunc     func(ctx context.Context, accountEmail string, total money.Money, completedAt time.Time) error
}

func (m *MockOrderHistory) PriorOrderCount(ctx context.Context, accountEmail string) (int, error) {
	if m.PriorOrderCountFunc != nil {
		return m.PriorOrderCountFunc(ctx, accountEmail)
	}
	return 0, nil
}

func (m *MockOrderHistory) RecordOrder(ctx context.Context, accountEmail string, total money.Money, completedAt time.Time) error {
	if m.RecordOrderFunc != nil {
		return m.RecordOrderFunc(ctx, accountEmail, total, completedAt)
	}
	return nil
}

// MockNotifier implements notify.Notifier for testing. Deliveries are
// recorded before SendFunc runs so tests can assert on dispatch order.
type MockNotifier struct {
	SendFunc func(ctx context.Context, accountEmail string, kind notify.Kind, payload string) error
	Sent     []MockDelivery
}

type MockDelivery struct {
	AccountEmail string
	Kind         notify.Kind
	Payload      string
}

func (m *MockNotifier) Send(ctx context.Context, accountEmail string, kind notify.Kind, payload string) error {
	m.Sent = append(m.Sent, MockDelivery{AccountEmail: accountEmail, Kind: kind, Payload: payload})
	if m.SendFunc != nil {
		return m.SendFunc(ctx, accountEmail, kind, payload)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}
