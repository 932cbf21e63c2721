package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/models"
)

// declineLog is a stateful stand-in for the decline repository.
func declineLog() *MockDeclineRepository {
	var declines []models.PaymentDecline
	repo := &MockDeclineRepository{}
	repo.RecordFunc = func(_ context.Context, d *models.PaymentDecline) error {
		declines = append(declines, *d)
		return nil
	}
	repo.ListSinceFunc = func(_ context.Context, email string, since time.Time) ([]models.PaymentDecline, error) {
		var out []models.PaymentDecline
		for _, d := range declines {
			if d.AccountEmail == email && !d.DeclinedAt.Before(since) {
				out = append(out, d)
			}
		}
		return out, nil
	}
	return repo
}

func newFraudFixture(t *testing.T) (*FraudGuard, *clock.Fake) {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	guard := NewFraudGuard(declineLog(), clk, 10*time.Minute, testLogger(), testAuditLogger())
	return guard, clk
}

func TestFraudGuard_ThirdDeclineInWindowBlocks(t *testing.T) {
	guard, clk := newFraudFixture(t)
	ctx := context.Background()

	blocked, err := guard.RecordDecline(ctx, "user@example.com")
	require.NoError(t, err)
	assert.False(t, blocked)

	clk.Advance(3 * time.Minute)
	blocked, err = guard.RecordDecline(ctx, "user@example.com")
	require.NoError(t, err)
	assert.False(t, blocked)

	clk.Advance(3 * time.Minute)
	blocked, err = guard.RecordDecline(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, blocked)

	isBlocked, err := guard.IsBlocked(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, isBlocked)
}

func TestFraudGuard_BlockHoldsUntilWindowExpires(t *testing.T) {
	guard, clk := newFraudFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := guard.RecordDecline(ctx, "user@example.com")
		require.NoError(t, err)
	}

	// Still blocked just inside the window of the earliest decline.
	clk.Advance(9 * time.Minute)
	blocked, err := guard.IsBlocked(ctx, "user@example.com")
	require.NoError(t, err)
	assert.True(t, blocked)

	// All three declines fall out of the trailing window together.
	clk.Advance(2 * time.Minute)
	blocked, err = guard.IsBlocked(ctx, "user@example.com")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestFraudGuard_StaleDeclinesDoNotCount(t *testing.T) {
	guard, clk := newFraudFixture(t)
	ctx := context.Background()

	_, err := guard.RecordDecline(ctx, "user@example.com")
	require.NoError(t, err)

	// First decline ages out before the next two arrive.
	clk.Advance(11 * time.Minute)
	blocked, err := guard.RecordDecline(ctx, "user@example.com")
	require.NoError(t, err)
	assert.False(t, blocked)

	blocked, err = guard.RecordDecline(ctx, "user@example.com")
	require.NoError(t, err)
	assert.False(t, blocked)

	isBlocked, err := guard.IsBlocked(ctx, "user@example.com")
	require.NoError(t, err)
	assert.False(t, isBlocked)
}

func TestFraudGuard_AccountsAreIndependent(t *testing.T) {
	guard, _ := newFraudFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := guard.RecordDecline(ctx, "hot@example.com")
		require.NoError(t, err)
	}

	blocked, err := guard.IsBlocked(ctx, "hot@example.com")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = guard.IsBlocked(ctx, "cold@example.com")
	require.NoError(t, err)
	assert.False(t, blocked)
}
