package models

import "github.com/BradenHooton/scarif/internal/money"

// CouponKind tags the coupon variants. New kinds are additive: each kind is
// dispatched in one place by the coupon engine rather than branching through
// checkout logic.
type CouponKind string

const (
	CouponPercentOff   CouponKind = "PERCENT_OFF"
	CouponFreeShipping CouponKind = "FREE_SHIPPING"
)

// Coupon describes one catalog entry.
type Coupon struct {
	Code string
	Kind CouponKind

	// PercentOff fields
	Rate              int64 // whole percent, e.g. 10
	FirstPurchaseOnly bool

	// FreeShipping fields
	MinSubtotal money.Money // inclusive threshold

	// Combinable defaults to false: at most one coupon per checkout session.
	Combinable bool
}
