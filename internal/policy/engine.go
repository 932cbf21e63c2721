package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/BradenHooton/scarif/internal/auth"
	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
	"github.com/BradenHooton/scarif/internal/notify"
	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
)

// EngineDeps carries every collaborator the façade composes. All fields are
// required unless noted.
type EngineDeps struct {
	Accounts    AccountRepository
	Checkouts   CheckoutRepository
	Credentials CredentialStore

	Attempts   *AttemptTracker
	Challenges *CodeChallenge
	Resets     *ResetTokens
	Coupons    *CouponEngine
	Fraud      *FraudGuard
	Orders     OrderHistory

	Notifier notify.Notifier
	Tokens   *auth.TokenManager
	TOTP     *auth.TOTPManager
	Timing   *auth.TimingDelay // optional; nil disables timing equalization
	Clock    clock.Clock

	DefaultShipping money.Money

	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

// PolicyEngine sequences the policy components behind the operations an API
// layer calls. It holds no rules of its own: each operation acquires the
// account's exclusive section, lets the components decide and mutate, then
// dispatches to collaborators after release. State committed inside the
// section stays committed even when dispatch fails or the caller goes away.
type PolicyEngine struct {
	deps  EngineDeps
	locks *accountLocks
}

// NewPolicyEngine creates a new PolicyEngine
func NewPolicyEngine(deps EngineDeps) *PolicyEngine {
	return &PolicyEngine{
		deps:  deps,
		locks: newAccountLocks(),
	}
}

// AttemptLogin evaluates primary credentials under the lockout policy. On
// success a two-factor challenge is issued and its code dispatched to the
// account's channel; the caller must then present the code to
// VerifyTwoFactor. A locked account is rejected before the credential store
// is consulted so the response cannot leak password validity.
func (p *PolicyEngine) AttemptLogin(ctx context.Context, accountEmail, password string) error {
	accountEmail = normalizeEmail(accountEmail)

	code, err := p.attemptLoginLocked(ctx, accountEmail, password)
	if p.deps.Timing != nil {
		p.deps.Timing.Wait(err == nil)
	}
	if err != nil {
		return err
	}

	// Dispatch after the exclusive section. A delivery failure is logged
	// and reported to no one; the challenge stays valid.
	if err := p.deps.Notifier.Send(ctx, accountEmail, notify.KindTwoFactorCode, code); err != nil {
		p.deps.Logger.Error("failed to dispatch two-factor code",
			slog.String("account", pkglogger.SanitizedEmail(accountEmail)),
			slog.String("error", err.Error()))
	}

	return nil
}

func (p *PolicyEngine) attemptLoginLocked(ctx context.Context, accountEmail, password string) (string, error) {
	release := p.locks.Acquire(accountEmail)
	defer release()

	account, err := p.deps.Accounts.GetByEmail(ctx, accountEmail)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			p.auditFailure(accountEmail, "unknown_account")
			return "", models.ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to load account: %w", err)
	}

	if p.deps.Attempts.IsLocked(account) {
		p.auditFailure(accountEmail, "account_locked")
		return "", models.ErrAccountLocked
	}

	ok, err := p.deps.Credentials.Verify(ctx, accountEmail, password)
	if err != nil {
		return "", fmt.Errorf("failed to verify credentials: %w", err)
	}
	if !ok {
		locked, err := p.deps.Attempts.RecordFailure(ctx, account)
		if err != nil {
			return "", err
		}
		p.auditFailure(accountEmail, "invalid_credentials")
		if locked {
			return "", models.ErrAccountLocked
		}
		return "", models.ErrInvalidCredentials
	}

	if err := p.deps.Attempts.RecordSuccess(ctx, account); err != nil {
		return "", err
	}

	code, err := p.deps.Challenges.Issue(ctx, accountEmail)
	if err != nil {
		return "", err
	}

	p.deps.AuditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:    "primary_auth_succeeded",
		AccountEmail: accountEmail,
		Success:      true,
	})

	return code, nil
}

// VerifyTwoFactor checks a submitted two-factor code (issued channel code or,
// for enrolled accounts, a current authenticator code) and on success returns
// a signed session token. A correct code verifies exactly once.
func (p *PolicyEngine) VerifyTwoFactor(ctx context.Context, accountEmail, submittedCode string) (string, error) {
	accountEmail = normalizeEmail(accountEmail)

	release := p.locks.Acquire(accountEmail)
	defer release()

	account, err := p.deps.Accounts.GetByEmail(ctx, accountEmail)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to load account: %w", err)
	}

	if p.deps.Attempts.IsLocked(account) {
		return "", models.ErrAccountLocked
	}

	if err := p.deps.Challenges.Verify(ctx, account, submittedCode); err != nil {
		if kind, ok := models.KindOf(err); ok {
			p.auditFailure(accountEmail, strings.ToLower(string(kind)))
		}
		return "", err
	}

	token, err := p.deps.Tokens.GenerateSessionToken(accountEmail)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	p.deps.AuditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:    "two_factor_succeeded",
		AccountEmail: accountEmail,
		Success:      true,
	})

	return token, nil
}

// EnrollTOTP binds an authenticator app to the account. It returns the
// base32 secret and an inline QR data URL for provisioning. Enrolling again
// replaces the previous device.
func (p *PolicyEngine) EnrollTOTP(ctx context.Context, accountEmail string) (string, string, error) {
	accountEmail = normalizeEmail(accountEmail)

	release := p.locks.Acquire(accountEmail)
	defer release()

	if _, err := p.deps.Accounts.GetByEmail(ctx, accountEmail); err != nil {
		return "", "", fmt.Errorf("failed to load account: %w", err)
	}

	encrypted, nonce, secret, qrDataURL, err := p.deps.TOTP.GenerateSecretWithQR(accountEmail)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate authenticator secret: %w", err)
	}

	if err := p.deps.Accounts.UpdateTOTP(ctx, accountEmail, encrypted, nonce); err != nil {
		return "", "", fmt.Errorf("failed to store authenticator secret: %w", err)
	}

	p.deps.Logger.Info("authenticator enrolled",
		slog.String("account", pkglogger.SanitizedEmail(accountEmail)))

	return secret, qrDataURL, nil
}

// RequestPasswordReset issues a fresh single-use reset token and dispatches
// the link. Unknown accounts are acknowledged identically to known ones so
// the endpoint cannot be used to enumerate accounts.
func (p *PolicyEngine) RequestPasswordReset(ctx context.Context, accountEmail string) error {
	accountEmail = normalizeEmail(accountEmail)

	plainToken, err := p.requestResetLocked(ctx, accountEmail)
	if err != nil {
		return err
	}
	if plainToken == "" {
		return nil
	}

	if err := p.deps.Notifier.Send(ctx, accountEmail, notify.KindResetLink, plainToken); err != nil {
		p.deps.Logger.Error("failed to dispatch reset link",
			slog.String("account", pkglogger.SanitizedEmail(accountEmail)),
			slog.String("error", err.Error()))
	}

	return nil
}

func (p *PolicyEngine) requestResetLocked(ctx context.Context, accountEmail string) (string, error) {
	release := p.locks.Acquire(accountEmail)
	defer release()

	if _, err := p.deps.Accounts.GetByEmail(ctx, accountEmail); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			p.deps.AuditLogger.LogPasswordReset("reset_requested_unknown", accountEmail, false)
			return "", nil
		}
		return "", fmt.Errorf("failed to load account: %w", err)
	}

	return p.deps.Resets.Request(ctx, accountEmail)
}

// CompletePasswordReset consumes a reset token and updates the credential.
// The account is only known after the token lookup, so serialization rests
// on the repository's atomic consume rather than the account section; a
// raced replay loses the compare-and-set and fails with a token-kind error.
// A successful reset also revokes any outstanding two-factor challenge: a
// code issued under the old credential must not complete a login.
func (p *PolicyEngine) CompletePasswordReset(ctx context.Context, plainToken, newPassword, confirmPassword string) error {
	accountEmail, err := p.deps.Resets.Complete(ctx, plainToken, newPassword, confirmPassword)
	if err != nil {
		return err
	}

	if err := p.deps.Challenges.Revoke(ctx, accountEmail); err != nil {
		p.deps.Logger.Error("failed to revoke outstanding challenge after reset",
			slog.String("account", pkglogger.SanitizedEmail(accountEmail)),
			slog.Any("error", err))
	}

	return nil
}

// CreateCheckout opens a checkout session for the account with the standard
// shipping charge.
func (p *PolicyEngine) CreateCheckout(ctx context.Context, accountEmail string, subtotal money.Money) (*models.CheckoutSession, error) {
	accountEmail = normalizeEmail(accountEmail)

	if subtotal.IsNegative() {
		return nil, fmt.Errorf("negative subtotal: %w", models.ErrBadRequest)
	}

	now := p.deps.Clock.Now()
	session := &models.CheckoutSession{
		ID:           uuid.New().String(),
		AccountEmail: accountEmail,
		Subtotal:     subtotal.Round2(),
		Shipping:     p.deps.DefaultShipping,
		Discount:     money.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	session.Recompute()

	if err := p.deps.Checkouts.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	p.deps.AuditLogger.LogCheckoutEvent("checkout_created", session.ID, "", map[string]string{
		"subtotal": session.Subtotal.String(),
		"total":    session.Total.String(),
	})

	return session, nil
}

// lockSession resolves the session's account, enters that account's
// exclusive section, and re-reads the session inside it. The first read
// only names the account; a concurrent operation may have committed between
// the two reads, so only the second snapshot is decided on.
func (p *PolicyEngine) lockSession(ctx context.Context, sessionID string) (*models.CheckoutSession, func(), error) {
	session, err := p.deps.Checkouts.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load checkout session: %w", err)
	}

	release := p.locks.Acquire(session.AccountEmail)

	session, err = p.deps.Checkouts.Get(ctx, sessionID)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to load checkout session: %w", err)
	}

	return session, release, nil
}

// ApplyCoupon evaluates a coupon against the session under the account's
// exclusive section and persists the mutated session on success.
func (p *PolicyEngine) ApplyCoupon(ctx context.Context, sessionID, couponCode string) (*models.CheckoutSession, error) {
	session, release, err := p.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := p.deps.Coupons.Apply(ctx, session, couponCode); err != nil {
		return nil, err
	}

	session.UpdatedAt = p.deps.Clock.Now()
	if err := p.deps.Checkouts.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist checkout session: %w", err)
	}

	return session, nil
}

// AuthorizePayment gates an outbound charge attempt: a blocked account is
// rejected with FRAUD_BLOCKED before the caller contacts the gateway.
func (p *PolicyEngine) AuthorizePayment(ctx context.Context, sessionID string) error {
	session, err := p.deps.Checkouts.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load checkout session: %w", err)
	}

	blocked, err := p.deps.Fraud.IsBlocked(ctx, session.AccountEmail)
	if err != nil {
		return err
	}
	if blocked {
		return models.ErrFraudBlocked
	}
	return nil
}

// RecordPaymentResult feeds the outcome of an external charge attempt back
// into the fraud window. A decline may flip the account into the blocked
// state; an approval completes the purchase and is added to the account's
// order history, but never clears prior declines, they only age out.
func (p *PolicyEngine) RecordPaymentResult(ctx context.Context, sessionID string, outcome models.PaymentOutcome) (bool, error) {
	session, release, err := p.lockSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	defer release()

	if outcome != models.PaymentDeclined {
		if outcome == models.PaymentApproved {
			// The purchase is complete; it now counts against
			// first-purchase coupon eligibility.
			if err := p.deps.Orders.RecordOrder(ctx, session.AccountEmail, session.Total, p.deps.Clock.Now()); err != nil {
				return false, fmt.Errorf("failed to record order: %w", err)
			}
		}
		return false, nil
	}

	blocked, err := p.deps.Fraud.RecordDecline(ctx, session.AccountEmail)
	if err != nil {
		return false, err
	}

	if blocked && !session.FraudBlocked {
		session.FraudBlocked = true
		session.UpdatedAt = p.deps.Clock.Now()
		if err := p.deps.Checkouts.Update(ctx, session); err != nil {
			return true, fmt.Errorf("failed to persist checkout session: %w", err)
		}
	}

	return blocked, nil
}

// IsPaymentBlocked reports the account's current fraud-block state.
func (p *PolicyEngine) IsPaymentBlocked(ctx context.Context, accountEmail string) (bool, error) {
	return p.deps.Fraud.IsBlocked(ctx, normalizeEmail(accountEmail))
}

func (p *PolicyEngine) auditFailure(accountEmail, reason string) {
	p.deps.AuditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "auth_failed",
		AccountEmail:  accountEmail,
		FailureReason: reason,
		Success:       false,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
