package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/models"
	pkgauth "github.com/BradenHooton/scarif/pkg/auth"
)

const strongPassword = "Correct-Horse-9-Battery"

// appliedCredential records a credential install performed by the stateful
// reset token store's Consume.
type appliedCredential struct {
	AccountEmail string
	PasswordHash string
	ChangedAt    time.Time
}

// resetTokenStore is a stateful stand-in with hash addressing and CAS
// consumption. Consume appends to the returned slice so tests can assert
// the credential install happened exactly with the token burn.
func resetTokenStore() (*MockResetTokenRepository, *[]appliedCredential) {
	byHash := make(map[string]*models.ResetToken)
	byAccount := make(map[string]string)
	applied := &[]appliedCredential{}

	repo := &MockResetTokenRepository{}
	repo.ReplaceFunc = func(_ context.Context, token *models.ResetToken) error {
		if prior, ok := byAccount[token.AccountEmail]; ok {
			delete(byHash, prior)
		}
		stored := *token
		byHash[token.TokenHash] = &stored
		byAccount[token.AccountEmail] = token.TokenHash
		return nil
	}
	repo.GetByHashFunc = func(_ context.Context, hash string) (*models.ResetToken, error) {
		token, ok := byHash[hash]
		if !ok {
			return nil, models.ErrNotFound
		}
		copied := *token
		return &copied, nil
	}
	repo.ConsumeFunc = func(_ context.Context, hash, passwordHash string, changedAt time.Time) error {
		token, ok := byHash[hash]
		if !ok || token.Consumed {
			return models.ErrNotFound
		}
		token.Consumed = true
		*applied = append(*applied, appliedCredential{
			AccountEmail: token.AccountEmail,
			PasswordHash: passwordHash,
			ChangedAt:    changedAt,
		})
		return nil
	}
	return repo, applied
}

func newResetFixture(t *testing.T) (*ResetTokens, *clock.Fake, *[]appliedCredential) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo, applied := resetTokenStore()
	resets := NewResetTokens(repo, clk, time.Hour, testLogger(), testAuditLogger())
	return resets, clk, applied
}

func TestResetTokens_CompleteUpdatesCredentialOnce(t *testing.T) {
	resets, clk, applied := newResetFixture(t)
	ctx := context.Background()

	token, err := resets.Request(ctx, "user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	email, err := resets.Complete(ctx, token, strongPassword, strongPassword)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)

	require.Len(t, *applied, 1)
	install := (*applied)[0]
	assert.Equal(t, "user@example.com", install.AccountEmail)
	assert.Equal(t, clk.Now(), install.ChangedAt)
	assert.NoError(t, pkgauth.ComparePassword(install.PasswordHash, strongPassword))

	// Replaying the consumed token fails regardless of password validity.
	_, err = resets.Complete(ctx, token, strongPassword, strongPassword)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
	assert.Len(t, *applied, 1)
}

func TestResetTokens_PasswordMismatchDoesNotBurnToken(t *testing.T) {
	resets, _, applied := newResetFixture(t)
	ctx := context.Background()

	token, err := resets.Request(ctx, "user@example.com")
	require.NoError(t, err)

	_, err = resets.Complete(ctx, token, strongPassword, strongPassword+"x")
	assert.ErrorIs(t, err, models.ErrPasswordMismatch)
	assert.Empty(t, *applied)

	_, err = resets.Complete(ctx, token, strongPassword, strongPassword)
	assert.NoError(t, err)
}

func TestResetTokens_WeakPasswordDoesNotBurnToken(t *testing.T) {
	resets, _, _ := newResetFixture(t)
	ctx := context.Background()

	token, err := resets.Request(ctx, "user@example.com")
	require.NoError(t, err)

	weak := []string{
		"Short1!",             // under minimum length
		"alllowercase1!!!",    // no uppercase
		"ALLUPPERCASE1!!!",    // no lowercase
		"NoDigitsHere!!!!",    // no digit
		"NoSymbolsHere1234",   // no symbol
	}
	for _, password := range weak {
		_, err = resets.Complete(ctx, token, password, password)
		assert.ErrorIs(t, err, models.ErrWeakPassword, "password %q", password)
	}

	_, err = resets.Complete(ctx, token, strongPassword, strongPassword)
	assert.NoError(t, err)
}

func TestResetTokens_ExpiredToken(t *testing.T) {
	resets, clk, _ := newResetFixture(t)
	ctx := context.Background()

	token, err := resets.Request(ctx, "user@example.com")
	require.NoError(t, err)

	clk.Advance(time.Hour + time.Minute)

	_, err = resets.Complete(ctx, token, strongPassword, strongPassword)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestResetTokens_UnknownToken(t *testing.T) {
	resets, _, _ := newResetFixture(t)

	_, err := resets.Complete(context.Background(), "not-a-token", strongPassword, strongPassword)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestResetTokens_RequestInvalidatesPriorToken(t *testing.T) {
	resets, _, _ := newResetFixture(t)
	ctx := context.Background()

	first, err := resets.Request(ctx, "user@example.com")
	require.NoError(t, err)

	second, err := resets.Request(ctx, "user@example.com")
	require.NoError(t, err)

	_, err = resets.Complete(ctx, first, strongPassword, strongPassword)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	_, err = resets.Complete(ctx, second, strongPassword, strongPassword)
	assert.NoError(t, err)
}
