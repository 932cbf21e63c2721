package policy

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/scarif/internal/auth"
	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
	"github.com/BradenHooton/scarif/internal/notify"
)

const (
	testEmail    = "user@example.com"
	testPassword = "Correct-Horse-9-Battery"
)

type engineFixture struct {
	engine      *PolicyEngine
	clk         *clock.Fake
	notifier    *MockNotifier
	tokens      *auth.TokenManager
	verifyCalls int
	accounts    map[string]*models.Account
	sessions    map[string]*models.CheckoutSession
	orderCounts map[string]int

	sessionsMu sync.Mutex

	// onCheckoutGet, when set, runs at the top of every checkout load so
	// tests can interleave concurrent operations deterministically.
	onCheckoutGet func()
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		clk:      clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		notifier: &MockNotifier{},
		accounts: map[string]*models.Account{
			testEmail: {Email: testEmail},
		},
		sessions:    make(map[string]*models.CheckoutSession),
		orderCounts: make(map[string]int),
	}

	accountRepo := &MockAccountRepository{
		GetByEmailFunc: func(_ context.Context, email string) (*models.Account, error) {
			account, ok := f.accounts[email]
			if !ok {
				return nil, models.ErrNotFound
			}
			copied := *account
			return &copied, nil
		},
		UpdateLoginStateFunc: func(_ context.Context, email string, attempts int, until *time.Time) error {
			account, ok := f.accounts[email]
			if !ok {
				return models.ErrNotFound
			}
			account.FailedAttempts = attempts
			account.LockedUntil = until
			return nil
		},
		UpdateTOTPFunc: func(_ context.Context, email string, secret, nonce []byte) error {
			account, ok := f.accounts[email]
			if !ok {
				return models.ErrNotFound
			}
			account.TOTPSecret = secret
			account.TOTPNonce = nonce
			return nil
		},
	}

	credentials := &MockCredentialStore{
		VerifyFunc: func(_ context.Context, _, password string) (bool, error) {
			f.verifyCalls++
			return password == testPassword, nil
		},
	}

	checkoutRepo := &MockCheckoutRepository{
		CreateFunc: func(_ context.Context, session *models.CheckoutSession) error {
			f.sessionsMu.Lock()
			defer f.sessionsMu.Unlock()
			copied := *session
			f.sessions[session.ID] = &copied
			return nil
		},
		GetFunc: func(_ context.Context, id string) (*models.CheckoutSession, error) {
			if f.onCheckoutGet != nil {
				f.onCheckoutGet()
			}
			f.sessionsMu.Lock()
			defer f.sessionsMu.Unlock()
			session, ok := f.sessions[id]
			if !ok {
				return nil, models.ErrNotFound
			}
			copied := *session
			return &copied, nil
		},
		UpdateFunc: func(_ context.Context, session *models.CheckoutSession) error {
			f.sessionsMu.Lock()
			defer f.sessionsMu.Unlock()
			copied := *session
			f.sessions[session.ID] = &copied
			return nil
		},
	}

	totpManager, err := auth.NewTOTPManager([]byte("0123456789abcdef0123456789abcdef"), "scarif-test")
	require.NoError(t, err)

	f.tokens = auth.NewTokenManager("engine-test-secret-with-enough-length", time.Hour)

	history := &MockOrderHistory{
		PriorOrderCountFunc: func(_ context.Context, email string) (int, error) {
			return f.orderCounts[email], nil
		},
		RecordOrderFunc: func(_ context.Context, email string, _ money.Money, _ time.Time) error {
			f.orderCounts[email]++
			return nil
		},
	}
	challengeRepo := challengeStore()
	resetRepo, _ := resetTokenStore()
	declineRepo := declineLog()

	logger := testLogger()
	audit := testAuditLogger()

	f.engine = NewPolicyEngine(EngineDeps{
		Accounts:    accountRepo,
		Checkouts:   checkoutRepo,
		Credentials: credentials,

		Attempts:   NewAttemptTracker(accountRepo, f.clk, 15*time.Minute, logger, audit),
		Challenges: NewCodeChallenge(challengeRepo, f.clk, 5*time.Minute, totpManager, logger),
		Resets:     NewResetTokens(resetRepo, f.clk, time.Hour, logger, audit),
		Coupons:    NewCouponEngine(DefaultCatalog(), history, logger, audit),
		Fraud:      NewFraudGuard(declineRepo, f.clk, 10*time.Minute, logger, audit),
		Orders:     history,

		Notifier: f.notifier,
		Tokens:   f.tokens,
		TOTP:     totpManager,
		Clock:    f.clk,

		DefaultShipping: money.MustFromString("5.99"),

		Logger:      logger,
		AuditLogger: audit,
	})

	return f
}

func (f *engineFixture) lastDelivery(t *testing.T, kind notify.Kind) string {
	t.Helper()
	require.NotEmpty(t, f.notifier.Sent)
	delivery := f.notifier.Sent[len(f.notifier.Sent)-1]
	require.Equal(t, kind, delivery.Kind)
	return delivery.Payload
}

func TestPolicyEngine_LoginIssuesChallengeAndVerifies(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.AttemptLogin(ctx, testEmail, testPassword))

	code := f.lastDelivery(t, notify.KindTwoFactorCode)
	assert.Len(t, code, 6)

	sessionToken, err := f.engine.VerifyTwoFactor(ctx, testEmail, code)
	require.NoError(t, err)

	claims, err := f.tokens.ValidateToken(sessionToken)
	require.NoError(t, err)
	assert.Equal(t, testEmail, claims.AccountEmail)

	// The code is single-use.
	_, err = f.engine.VerifyTwoFactor(ctx, testEmail, code)
	assert.ErrorIs(t, err, models.ErrCodeInvalid)
}

func TestPolicyEngine_SixthAttemptShortCircuitsCredentialCheck(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		err := f.engine.AttemptLogin(ctx, testEmail, "wrong-password")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials, "attempt %d", i)
	}

	err := f.engine.AttemptLogin(ctx, testEmail, "wrong-password")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.Equal(t, 5, f.verifyCalls)

	// The sixth attempt carries the correct password and is still rejected
	// before the credential store is consulted.
	err = f.engine.AttemptLogin(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.Equal(t, 5, f.verifyCalls)
	assert.Empty(t, f.notifier.Sent)
}

func TestPolicyEngine_LockExpiresAndSuccessResetsCounter(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = f.engine.AttemptLogin(ctx, testEmail, "wrong-password")
	}
	f.clk.Advance(15*time.Minute + time.Second)

	require.NoError(t, f.engine.AttemptLogin(ctx, testEmail, testPassword))
	assert.Equal(t, 0, f.accounts[testEmail].FailedAttempts)
	assert.Nil(t, f.accounts[testEmail].LockedUntil)
}

func TestPolicyEngine_UnknownAccountLooksLikeBadCredentials(t *testing.T) {
	f := newEngineFixture(t)

	err := f.engine.AttemptLogin(context.Background(), "ghost@example.com", testPassword)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Zero(t, f.verifyCalls)
}

func TestPolicyEngine_PasswordResetFlow(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// A login challenge issued before the reset must not survive it.
	require.NoError(t, f.engine.AttemptLogin(ctx, testEmail, testPassword))
	code := f.lastDelivery(t, notify.KindTwoFactorCode)

	require.NoError(t, f.engine.RequestPasswordReset(ctx, testEmail))
	token := f.lastDelivery(t, notify.KindResetLink)

	require.NoError(t, f.engine.CompletePasswordReset(ctx, token, testPassword, testPassword))

	_, err := f.engine.VerifyTwoFactor(ctx, testEmail, code)
	assert.ErrorIs(t, err, models.ErrNoChallenge)

	err = f.engine.CompletePasswordReset(ctx, token, testPassword, testPassword)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestPolicyEngine_ResetRequestDoesNotLeakUnknownAccounts(t *testing.T) {
	f := newEngineFixture(t)

	require.NoError(t, f.engine.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.notifier.Sent)
}

func TestPolicyEngine_CheckoutAndCoupon(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.engine.CreateCheckout(ctx, testEmail, money.MustFromString("100.00"))
	require.NoError(t, err)
	assert.Equal(t, "105.99", session.Total.String())

	session, err = f.engine.ApplyCoupon(ctx, session.ID, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, "10.00", session.Discount.String())
	assert.Equal(t, "95.99", session.Total.String())

	// The mutated session is persisted.
	stored := f.sessions[session.ID]
	assert.Equal(t, "95.99", stored.Total.String())
}

func TestPolicyEngine_ConcurrentCouponsApplyExactlyOne(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.engine.CreateCheckout(ctx, testEmail, money.MustFromString("100.00"))
	require.NoError(t, err)

	// Hold both initial session loads at the barrier so each goroutine
	// observes the coupon-free session before either enters the account's
	// exclusive section.
	var gets int32
	gate := make(chan struct{})
	f.onCheckoutGet = func() {
		n := atomic.AddInt32(&gets, 1)
		if n == 2 {
			close(gate)
		}
		if n <= 2 {
			<-gate
		}
	}

	results := make([]error, 2)
	codes := []string{"WELCOME10", "FREESHIP"}

	var wg sync.WaitGroup
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, results[i] = f.engine.ApplyCoupon(ctx, session.ID, code)
		}(i, code)
	}
	wg.Wait()

	var winner string
	var failures int
	for i, err := range results {
		if err == nil {
			winner = codes[i]
			continue
		}
		failures++
		assert.ErrorIs(t, err, models.ErrCouponNotCombinable)
	}
	require.NotEmpty(t, winner, "one coupon must apply")
	assert.Equal(t, 1, failures)

	stored := f.sessions[session.ID]
	assert.Equal(t, winner, stored.AppliedCoupon)
	switch winner {
	case "WELCOME10":
		assert.Equal(t, "95.99", stored.Total.String())
	case "FREESHIP":
		assert.Equal(t, "100.00", stored.Total.String())
	}
}

func TestPolicyEngine_ApprovedPaymentEndsFirstPurchaseEligibility(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	first, err := f.engine.CreateCheckout(ctx, testEmail, money.MustFromString("100.00"))
	require.NoError(t, err)

	_, err = f.engine.RecordPaymentResult(ctx, first.ID, models.PaymentApproved)
	require.NoError(t, err)

	second, err := f.engine.CreateCheckout(ctx, testEmail, money.MustFromString("100.00"))
	require.NoError(t, err)

	_, err = f.engine.ApplyCoupon(ctx, second.ID, "WELCOME10")
	assert.ErrorIs(t, err, models.ErrNotFirstPurchase)
}

func TestPolicyEngine_FraudBlockGatesPayments(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.engine.CreateCheckout(ctx, testEmail, money.MustFromString("100.00"))
	require.NoError(t, err)

	require.NoError(t, f.engine.AuthorizePayment(ctx, session.ID))

	for i := 0; i < 2; i++ {
		blocked, err := f.engine.RecordPaymentResult(ctx, session.ID, models.PaymentDeclined)
		require.NoError(t, err)
		assert.False(t, blocked)
	}

	blocked, err := f.engine.RecordPaymentResult(ctx, session.ID, models.PaymentDeclined)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.True(t, f.sessions[session.ID].FraudBlocked)

	err = f.engine.AuthorizePayment(ctx, session.ID)
	assert.ErrorIs(t, err, models.ErrFraudBlocked)

	isBlocked, err := f.engine.IsPaymentBlocked(ctx, testEmail)
	require.NoError(t, err)
	assert.True(t, isBlocked)

	// The block ages out with its window.
	f.clk.Advance(10*time.Minute + time.Second)
	assert.NoError(t, f.engine.AuthorizePayment(ctx, session.ID))
}

func TestPolicyEngine_ApprovalDoesNotClearDeclines(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.engine.CreateCheckout(ctx, testEmail, money.MustFromString("100.00"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := f.engine.RecordPaymentResult(ctx, session.ID, models.PaymentDeclined)
		require.NoError(t, err)
	}

	_, err = f.engine.RecordPaymentResult(ctx, session.ID, models.PaymentApproved)
	require.NoError(t, err)

	blocked, err := f.engine.RecordPaymentResult(ctx, session.ID, models.PaymentDeclined)
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestPolicyEngine_AuthenticatorCodeAccepted(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	secret, qrDataURL, err := f.engine.EnrollTOTP(ctx, testEmail)
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	assert.Contains(t, qrDataURL, "data:image/png;base64,")

	require.NoError(t, f.engine.AttemptLogin(ctx, testEmail, testPassword))
	channelCode := f.lastDelivery(t, notify.KindTwoFactorCode)

	appCode, err := totp.GenerateCode(secret, f.clk.Now())
	require.NoError(t, err)

	sessionToken, err := f.engine.VerifyTwoFactor(ctx, testEmail, appCode)
	require.NoError(t, err)
	assert.NotEmpty(t, sessionToken)

	// Accepting the authenticator code retires the channel challenge.
	_, err = f.engine.VerifyTwoFactor(ctx, testEmail, channelCode)
	assert.ErrorIs(t, err, models.ErrCodeInvalid)
}
