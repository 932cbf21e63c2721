package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
	pkghttp "github.com/BradenHooton/scarif/pkg/http"
)

// CheckoutPolicy is the slice of the policy engine the checkout handlers
// drive.
type CheckoutPolicy interface {
	CreateCheckout(ctx context.Context, accountEmail string, subtotal money.Money) (*models.CheckoutSession, error)
	ApplyCoupon(ctx context.Context, sessionID, couponCode string) (*models.CheckoutSession, error)
	AuthorizePayment(ctx context.Context, sessionID string) error
	RecordPaymentResult(ctx context.Context, sessionID string, outcome models.PaymentOutcome) (bool, error)
}

// CheckoutHandler handles checkout and payment HTTP requests
type CheckoutHandler struct {
	policy CheckoutPolicy
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(policy CheckoutPolicy) *CheckoutHandler {
	return &CheckoutHandler{policy: policy}
}

// Request DTOs

type CreateCheckoutRequest struct {
	Subtotal string `json:"subtotal" validate:"required"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,min=1,max=32"`
}

type PaymentResultRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=APPROVED DECLINED"`
}

// CheckoutResponse mirrors the session's monetary state. Amounts travel as
// fixed-point strings.
type CheckoutResponse struct {
	ID            string `json:"id"`
	Subtotal      string `json:"subtotal"`
	Shipping      string `json:"shipping"`
	Discount      string `json:"discount"`
	Total         string `json:"total"`
	AppliedCoupon string `json:"applied_coupon,omitempty"`
	FraudBlocked  bool   `json:"fraud_blocked"`
}

func toCheckoutResponse(session *models.CheckoutSession) CheckoutResponse {
	return CheckoutResponse{
		ID:            session.ID,
		Subtotal:      session.Subtotal.String(),
		Shipping:      session.Shipping.String(),
		Discount:      session.Discount.String(),
		Total:         session.Total.String(),
		AppliedCoupon: session.AppliedCoupon,
		FraudBlocked:  session.FraudBlocked,
	}
}

// Create opens a checkout session for the authenticated account.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	email, ok := sessionEmail(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req CreateCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	subtotal, err := money.FromString(req.Subtotal)
	if err != nil {
		pkghttp.WriteBadRequest(w, "subtotal must be a decimal amount")
		return
	}

	session, err := h.policy.CreateCheckout(r.Context(), email, subtotal)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toCheckoutResponse(session))
}

// ApplyCoupon evaluates a coupon against the session.
func (h *CheckoutHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	sessionID := pathSessionID(r)

	var req ApplyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	session, err := h.policy.ApplyCoupon(r.Context(), sessionID, req.Code)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toCheckoutResponse(session))
}

// Authorize gates a charge attempt on the fraud block before the caller
// contacts the gateway.
func (h *CheckoutHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	if err := h.policy.AuthorizePayment(r.Context(), pathSessionID(r)); err != nil {
		writePolicyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
}

// PaymentResult feeds the gateway's outcome back into the fraud window.
func (h *CheckoutHandler) PaymentResult(w http.ResponseWriter, r *http.Request) {
	sessionID := pathSessionID(r)

	var req PaymentResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	blocked, err := h.policy.RecordPaymentResult(r.Context(), sessionID, models.PaymentOutcome(req.Outcome))
	if err != nil {
		writePolicyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"fraud_blocked": blocked})
}
