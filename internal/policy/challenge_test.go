package policy

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/models"
)

// challengeStore is a stateful stand-in holding one challenge per account.
func challengeStore() *MockChallengeRepository {
	challenges := make(map[string]*models.TwoFactorChallenge)
	repo := &MockChallengeRepository{}
	repo.ReplaceFunc = func(_ context.Context, c *models.TwoFactorChallenge) error {
		stored := *c
		challenges[c.AccountEmail] = &stored
		return nil
	}
	repo.GetFunc = func(_ context.Context, email string) (*models.TwoFactorChallenge, error) {
		c, ok := challenges[email]
		if !ok {
			return nil, models.ErrNotFound
		}
		copied := *c
		return &copied, nil
	}
	repo.ConsumeFunc = func(_ context.Context, email string) error {
		c, ok := challenges[email]
		if !ok || c.Consumed {
			return models.ErrNotFound
		}
		c.Consumed = true
		return nil
	}
	repo.DeleteFunc = func(_ context.Context, email string) error {
		delete(challenges, email)
		return nil
	}
	return repo
}

func newChallengeFixture(t *testing.T) (*CodeChallenge, *clock.Fake) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	challenge := NewCodeChallenge(challengeStore(), clk, 5*time.Minute, nil, testLogger())
	return challenge, clk
}

func testAccount() *models.Account {
	return &models.Account{Email: "user@example.com"}
}

func TestCodeChallenge_IssueProducesSixDigitCode(t *testing.T) {
	challenge, _ := newChallengeFixture(t)

	code, err := challenge.Issue(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
}

func TestCodeChallenge_CorrectCodeVerifiesOnce(t *testing.T) {
	challenge, _ := newChallengeFixture(t)
	ctx := context.Background()
	account := testAccount()

	code, err := challenge.Issue(ctx, account.Email)
	require.NoError(t, err)

	require.NoError(t, challenge.Verify(ctx, account, code))

	err = challenge.Verify(ctx, account, code)
	assert.ErrorIs(t, err, models.ErrCodeInvalid)
}

func TestCodeChallenge_WrongCodeDoesNotConsume(t *testing.T) {
	challenge, _ := newChallengeFixture(t)
	ctx := context.Background()
	account := testAccount()

	code, err := challenge.Issue(ctx, account.Email)
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	err = challenge.Verify(ctx, account, wrong)
	assert.ErrorIs(t, err, models.ErrCodeInvalid)

	// The challenge survives the bad attempt.
	require.NoError(t, challenge.Verify(ctx, account, code))
}

func TestCodeChallenge_ExpiredCorrectCodeIsExpired(t *testing.T) {
	challenge, clk := newChallengeFixture(t)
	ctx := context.Background()
	account := testAccount()

	code, err := challenge.Issue(ctx, account.Email)
	require.NoError(t, err)

	clk.Advance(5*time.Minute + time.Second)

	err = challenge.Verify(ctx, account, code)
	assert.ErrorIs(t, err, models.ErrCodeExpired)
}

func TestCodeChallenge_JustUnderValidityStillVerifies(t *testing.T) {
	challenge, clk := newChallengeFixture(t)
	ctx := context.Background()
	account := testAccount()

	code, err := challenge.Issue(ctx, account.Email)
	require.NoError(t, err)

	clk.Advance(5*time.Minute - time.Second)

	assert.NoError(t, challenge.Verify(ctx, account, code))
}

func TestCodeChallenge_ReissueInvalidatesPriorCode(t *testing.T) {
	challenge, _ := newChallengeFixture(t)
	ctx := context.Background()
	account := testAccount()

	first, err := challenge.Issue(ctx, account.Email)
	require.NoError(t, err)

	second, err := challenge.Issue(ctx, account.Email)
	require.NoError(t, err)

	if first != second {
		err = challenge.Verify(ctx, account, first)
		assert.ErrorIs(t, err, models.ErrCodeInvalid)
	}
	assert.NoError(t, challenge.Verify(ctx, account, second))
}

func TestCodeChallenge_VerifyWithoutChallengeIsContractViolation(t *testing.T) {
	challenge, _ := newChallengeFixture(t)

	err := challenge.Verify(context.Background(), testAccount(), "123456")
	assert.ErrorIs(t, err, models.ErrNoChallenge)
}

func TestCodeChallenge_RevokeDiscardsOutstandingChallenge(t *testing.T) {
	challenge, _ := newChallengeFixture(t)
	ctx := context.Background()
	account := testAccount()

	code, err := challenge.Issue(ctx, account.Email)
	require.NoError(t, err)

	require.NoError(t, challenge.Revoke(ctx, account.Email))

	err = challenge.Verify(ctx, account, code)
	assert.ErrorIs(t, err, models.ErrNoChallenge)

	// Revoking an account with no challenge is a no-op.
	assert.NoError(t, challenge.Revoke(ctx, account.Email))
}
