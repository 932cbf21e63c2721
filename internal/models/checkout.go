package models

import (
	"time"

	"github.com/BradenHooton/scarif/internal/money"
)

// CheckoutSession carries the monetary state of one checkout. All fields are
// fixed-point with two decimals; Total is always recomputed as
// round2(subtotal - discount) + shipping after any change.
type CheckoutSession struct {
	ID           string
	AccountEmail string

	Subtotal money.Money
	Shipping money.Money
	Discount money.Money
	Total    money.Money

	AppliedCoupon string // empty when no coupon is active
	FraudBlocked  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recompute re-derives Total from the other monetary fields.
func (s *CheckoutSession) Recompute() {
	s.Total = s.Subtotal.Sub(s.Discount).Round2().Add(s.Shipping)
}

// HasCoupon reports whether a coupon is already active on the session.
func (s *CheckoutSession) HasCoupon() bool {
	return s.AppliedCoupon != ""
}
