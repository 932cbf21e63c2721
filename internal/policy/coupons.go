package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
)

// CouponEngine evaluates coupon eligibility against a checkout session and
// the account's order history. All monetary math is fixed-point with
// banker's rounding; the session total is recomputed after every change.
type CouponEngine struct {
	catalog     map[string]models.Coupon
	history     OrderHistory
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewCouponEngine creates a CouponEngine over the given catalog.
func NewCouponEngine(catalog []models.Coupon, history OrderHistory, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *CouponEngine {
	byCode := make(map[string]models.Coupon, len(catalog))
	for _, c := range catalog {
		byCode[c.Code] = c
	}
	return &CouponEngine{
		catalog:     byCode,
		history:     history,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// DefaultCatalog returns the production coupon set.
func DefaultCatalog() []models.Coupon {
	return []models.Coupon{
		{
			Code:              "WELCOME10",
			Kind:              models.CouponPercentOff,
			Rate:              10,
			FirstPurchaseOnly: true,
		},
		{
			Code:        "FREESHIP",
			Kind:        models.CouponFreeShipping,
			MinSubtotal: money.MustFromString("50.00"),
		},
	}
}

// Apply evaluates couponCode against the session and mutates the session on
// success. The first applied coupon wins: any further apply is rejected
// with COUPON_NOT_COMBINABLE before the new coupon's own eligibility is
// even considered, so an ineligible second coupon cannot leak its reason.
func (e *CouponEngine) Apply(ctx context.Context, session *models.CheckoutSession, couponCode string) error {
	couponCode = strings.ToUpper(strings.TrimSpace(couponCode))

	if session.HasCoupon() {
		e.reject(session, couponCode, string(models.KindCouponNotCombinable))
		return models.ErrCouponNotCombinable
	}

	coupon, ok := e.catalog[couponCode]
	if !ok {
		e.reject(session, couponCode, "unknown_coupon")
		return fmt.Errorf("unknown coupon %q: %w", couponCode, models.ErrNotFound)
	}

	switch coupon.Kind {
	case models.CouponPercentOff:
		if coupon.FirstPurchaseOnly {
			priorOrders, err := e.history.PriorOrderCount(ctx, session.AccountEmail)
			if err != nil {
				return fmt.Errorf("failed to load order history: %w", err)
			}
			if priorOrders > 0 {
				e.reject(session, couponCode, string(models.KindNotFirstPurchase))
				return models.ErrNotFirstPurchase
			}
		}
		session.Discount = session.Subtotal.Percent(coupon.Rate)

	case models.CouponFreeShipping:
		// Inclusive threshold: a subtotal of exactly the minimum qualifies.
		if session.Subtotal.LessThan(coupon.MinSubtotal) {
			e.reject(session, couponCode, string(models.KindThresholdNotMet))
			return models.ErrThresholdNotMet
		}
		session.Shipping = money.Zero

	default:
		return fmt.Errorf("unhandled coupon kind %q", coupon.Kind)
	}

	session.AppliedCoupon = coupon.Code
	session.Recompute()

	e.auditLogger.LogCheckoutEvent("coupon_applied", session.ID, coupon.Code, map[string]string{
		"discount": session.Discount.String(),
		"total":    session.Total.String(),
	})

	return nil
}

func (e *CouponEngine) reject(session *models.CheckoutSession, couponCode, reason string) {
	e.logger.Info("coupon rejected",
		slog.String("session_id", session.ID),
		slog.String("coupon", couponCode),
		slog.String("reason", reason))
}
