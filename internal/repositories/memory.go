package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
)

// In-memory implementations of the policy repository interfaces, selected
// with DB_DRIVER=memory for single-process runs without Postgres; the
// Postgres implementations carry the same semantics for durable
// deployments. All methods copy on the way in and out so callers cannot
// mutate stored state except through the repository.

// MemoryAccountRepository stores accounts keyed by email.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]models.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]models.Account)}
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &account, nil
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.Email]; ok {
		return nil, models.ErrConflict
	}
	r.accounts[account.Email] = *account
	stored := r.accounts[account.Email]
	return &stored, nil
}

func (r *MemoryAccountRepository) UpdateLoginState(_ context.Context, email string, failedAttempts int, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[email]
	if !ok {
		return models.ErrNotFound
	}
	account.FailedAttempts = failedAttempts
	account.LockedUntil = lockedUntil
	account.UpdatedAt = time.Now()
	r.accounts[email] = account
	return nil
}

func (r *MemoryAccountRepository) UpdatePassword(_ context.Context, email, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[email]
	if !ok {
		return models.ErrNotFound
	}
	account.PasswordHash = passwordHash
	account.PasswordChangedAt = &changedAt
	account.UpdatedAt = time.Now()
	r.accounts[email] = account
	return nil
}

func (r *MemoryAccountRepository) UpdateTOTP(_ context.Context, email string, secret, nonce []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[email]
	if !ok {
		return models.ErrNotFound
	}
	account.TOTPSecret = append([]byte(nil), secret...)
	account.TOTPNonce = append([]byte(nil), nonce...)
	account.UpdatedAt = time.Now()
	r.accounts[email] = account
	return nil
}

// MemoryChallengeRepository holds at most one challenge per account.
type MemoryChallengeRepository struct {
	mu         sync.Mutex
	challenges map[string]models.TwoFactorChallenge
}

func NewMemoryChallengeRepository() *MemoryChallengeRepository {
	return &MemoryChallengeRepository{challenges: make(map[string]models.TwoFactorChallenge)}
}

func (r *MemoryChallengeRepository) Replace(_ context.Context, challenge *models.TwoFactorChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.challenges[challenge.AccountEmail] = *challenge
	return nil
}

func (r *MemoryChallengeRepository) Get(_ context.Context, accountEmail string) (*models.TwoFactorChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.challenges[accountEmail]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &challenge, nil
}

func (r *MemoryChallengeRepository) Consume(_ context.Context, accountEmail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.challenges[accountEmail]
	if !ok || challenge.Consumed {
		return models.ErrNotFound
	}
	challenge.Consumed = true
	r.challenges[accountEmail] = challenge
	return nil
}

func (r *MemoryChallengeRepository) Delete(_ context.Context, accountEmail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.challenges, accountEmail)
	return nil
}

// MemoryResetTokenRepository stores tokens by hash with a per-account index
// so Replace can invalidate the prior outstanding token. It holds the
// account repository so Consume can install the new credential under the
// same critical section the token is burned in, matching the transactional
// Postgres implementation.
type MemoryResetTokenRepository struct {
	mu        sync.Mutex
	accounts  *MemoryAccountRepository
	byHash    map[string]models.ResetToken
	byAccount map[string]string // account email -> outstanding token hash
}

func NewMemoryResetTokenRepository(accounts *MemoryAccountRepository) *MemoryResetTokenRepository {
	return &MemoryResetTokenRepository{
		accounts:  accounts,
		byHash:    make(map[string]models.ResetToken),
		byAccount: make(map[string]string),
	}
}

func (r *MemoryResetTokenRepository) Replace(_ context.Context, token *models.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.byAccount[token.AccountEmail]; ok {
		delete(r.byHash, prior)
	}
	r.byHash[token.TokenHash] = *token
	r.byAccount[token.AccountEmail] = token.TokenHash
	return nil
}

func (r *MemoryResetTokenRepository) GetByHash(_ context.Context, tokenHash string) (*models.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byHash[tokenHash]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &token, nil
}

func (r *MemoryResetTokenRepository) Consume(ctx context.Context, tokenHash, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byHash[tokenHash]
	if !ok || token.Consumed {
		return models.ErrNotFound
	}
	// Install the credential before burning the token so a missing account
	// leaves the token live, the same outcome as a rolled-back transaction.
	if err := r.accounts.UpdatePassword(ctx, token.AccountEmail, passwordHash, changedAt); err != nil {
		return err
	}
	token.Consumed = true
	r.byHash[tokenHash] = token
	return nil
}

// MemoryDeclineRepository keeps an append-only decline log per account.
type MemoryDeclineRepository struct {
	mu       sync.Mutex
	declines map[string][]models.PaymentDecline
}

func NewMemoryDeclineRepository() *MemoryDeclineRepository {
	return &MemoryDeclineRepository{declines: make(map[string][]models.PaymentDecline)}
}

func (r *MemoryDeclineRepository) Record(_ context.Context, decline *models.PaymentDecline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.declines[decline.AccountEmail] = append(r.declines[decline.AccountEmail], *decline)
	return nil
}

func (r *MemoryDeclineRepository) ListSince(_ context.Context, accountEmail string, since time.Time) ([]models.PaymentDecline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.PaymentDecline
	for _, d := range r.declines[accountEmail] {
		if !d.DeclinedAt.Before(since) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeclinedAt.Before(out[j].DeclinedAt) })
	return out, nil
}

// DeleteBefore drops declines older than cutoff and reports how many were
// removed, mirroring the retention sweep the Postgres repository runs.
func (r *MemoryDeclineRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for email, declines := range r.declines {
		kept := declines[:0]
		for _, d := range declines {
			if d.DeclinedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, d)
		}
		if len(kept) == 0 {
			delete(r.declines, email)
			continue
		}
		r.declines[email] = kept
	}
	return removed, nil
}

// MemoryCheckoutRepository stores checkout sessions by id.
type MemoryCheckoutRepository struct {
	mu       sync.Mutex
	sessions map[string]models.CheckoutSession
}

func NewMemoryCheckoutRepository() *MemoryCheckoutRepository {
	return &MemoryCheckoutRepository{sessions: make(map[string]models.CheckoutSession)}
}

func (r *MemoryCheckoutRepository) Create(_ context.Context, session *models.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; ok {
		return models.ErrConflict
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *MemoryCheckoutRepository) Get(_ context.Context, id string) (*models.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &session, nil
}

func (r *MemoryCheckoutRepository) Update(_ context.Context, session *models.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return models.ErrNotFound
	}
	r.sessions[session.ID] = *session
	return nil
}

// MemoryOrderHistory keeps per-account completed-order counts.
type MemoryOrderHistory struct {
	mu     sync.Mutex
	orders map[string]int
}

func NewMemoryOrderHistory() *MemoryOrderHistory {
	return &MemoryOrderHistory{orders: make(map[string]int)}
}

func (r *MemoryOrderHistory) PriorOrderCount(_ context.Context, accountEmail string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.orders[accountEmail], nil
}

// RecordOrder adds a completed purchase to the account's history.
func (r *MemoryOrderHistory) RecordOrder(_ context.Context, accountEmail string, _ money.Money, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[accountEmail]++
	return nil
}
