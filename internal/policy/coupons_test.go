package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
)

func newCouponFixture(t *testing.T, priorOrders int) *CouponEngine {
	t.Helper()

	history := &MockOrderHistory{
		PriorOrderCountFunc: func(_ context.Context, _ string) (int, error) {
			return priorOrders, nil
		},
	}
	return NewCouponEngine(DefaultCatalog(), history, testLogger(), testAuditLogger())
}

func newSession(subtotal string) *models.CheckoutSession {
	session := &models.CheckoutSession{
		ID:           "session-1",
		AccountEmail: "user@example.com",
		Subtotal:     money.MustFromString(subtotal),
		Shipping:     money.MustFromString("5.99"),
		Discount:     money.Zero,
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	session.Recompute()
	return session
}

func TestCouponEngine_Welcome10FirstPurchase(t *testing.T) {
	engine := newCouponFixture(t, 0)
	session := newSession("100.00")

	require.NoError(t, engine.Apply(context.Background(), session, "WELCOME10"))

	assert.Equal(t, "10.00", session.Discount.String())
	assert.Equal(t, "95.99", session.Total.String())
	assert.Equal(t, "WELCOME10", session.AppliedCoupon)
}

func TestCouponEngine_Welcome10RejectedAfterFirstPurchase(t *testing.T) {
	engine := newCouponFixture(t, 1)
	session := newSession("100.00")

	err := engine.Apply(context.Background(), session, "WELCOME10")
	assert.ErrorIs(t, err, models.ErrNotFirstPurchase)
	assert.True(t, session.Discount.IsZero())
	assert.Empty(t, session.AppliedCoupon)
}

func TestCouponEngine_FreeShipThresholdInclusive(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		wantErr  error
		total    string
	}{
		{name: "exactly at threshold", subtotal: "50.00", total: "50.00"},
		{name: "above threshold", subtotal: "75.50", total: "75.50"},
		{name: "one cent under", subtotal: "49.99", wantErr: models.ErrThresholdNotMet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newCouponFixture(t, 0)
			session := newSession(tt.subtotal)

			err := engine.Apply(context.Background(), session, "FREESHIP")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, "5.99", session.Shipping.String())
				return
			}
			require.NoError(t, err)
			assert.True(t, session.Shipping.IsZero())
			assert.Equal(t, tt.total, session.Total.String())
		})
	}
}

func TestCouponEngine_SecondCouponNeverCombines(t *testing.T) {
	engine := newCouponFixture(t, 0)
	session := newSession("100.00")
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, session, "WELCOME10"))

	// The second coupon is itself eligible; non-combinability still wins.
	err := engine.Apply(ctx, session, "FREESHIP")
	assert.ErrorIs(t, err, models.ErrCouponNotCombinable)

	assert.Equal(t, "WELCOME10", session.AppliedCoupon)
	assert.Equal(t, "95.99", session.Total.String())
}

func TestCouponEngine_UnknownCoupon(t *testing.T) {
	engine := newCouponFixture(t, 0)
	session := newSession("100.00")

	err := engine.Apply(context.Background(), session, "NOPE")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCouponEngine_CodeIsCaseInsensitive(t *testing.T) {
	engine := newCouponFixture(t, 0)
	session := newSession("100.00")

	require.NoError(t, engine.Apply(context.Background(), session, "  welcome10 "))
	assert.Equal(t, "WELCOME10", session.AppliedCoupon)
}

func TestCouponEngine_TotalRecomputedAfterApply(t *testing.T) {
	engine := newCouponFixture(t, 0)
	session := newSession("33.33")

	require.NoError(t, engine.Apply(context.Background(), session, "WELCOME10"))

	// 10% of 33.33 is 3.333, banker's-rounded to 3.33.
	assert.Equal(t, "3.33", session.Discount.String())
	assert.Equal(t, "35.99", session.Total.String())
}
