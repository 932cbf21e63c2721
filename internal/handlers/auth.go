package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	pkghttp "github.com/BradenHooton/scarif/pkg/http"
)

// AuthPolicy is the slice of the policy engine the auth handlers drive.
type AuthPolicy interface {
	AttemptLogin(ctx context.Context, accountEmail, password string) error
	VerifyTwoFactor(ctx context.Context, accountEmail, submittedCode string) (string, error)
	EnrollTOTP(ctx context.Context, accountEmail string) (string, string, error)
	RequestPasswordReset(ctx context.Context, accountEmail string) error
	CompletePasswordReset(ctx context.Context, plainToken, newPassword, confirmPassword string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	policy AuthPolicy
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(policy AuthPolicy) *AuthHandler {
	return &AuthHandler{policy: policy}
}

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyTwoFactorRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,min=6,max=8"`
}

type RequestResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type CompleteResetRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// Response DTOs

type VerifyTwoFactorResponse struct {
	SessionToken string `json:"session_token"`
}

type EnrollTOTPResponse struct {
	Secret    string `json:"secret"`
	QRDataURL string `json:"qr_data_url"`
}

// Login evaluates credentials and, on success, dispatches a two-factor code
// to the account's channel.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.policy.AttemptLogin(r.Context(), req.Email, req.Password); err != nil {
		writePolicyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "two_factor_required",
	})
}

// VerifyTwoFactor exchanges a valid two-factor code for a session token.
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req VerifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sessionToken, err := h.policy.VerifyTwoFactor(r.Context(), req.Email, req.Code)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, VerifyTwoFactorResponse{SessionToken: sessionToken})
}

// EnrollTOTP binds an authenticator app to the authenticated account.
func (h *AuthHandler) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	email, ok := sessionEmail(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	secret, qrDataURL, err := h.policy.EnrollTOTP(r.Context(), email)
	if err != nil {
		writePolicyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, EnrollTOTPResponse{Secret: secret, QRDataURL: qrDataURL})
}

// RequestReset issues a password-reset link. The response is identical for
// known and unknown accounts.
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.policy.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writePolicyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "reset_link_sent_if_account_exists",
	})
}

// CompleteReset consumes a reset token and sets the new password.
func (h *AuthHandler) CompleteReset(w http.ResponseWriter, r *http.Request) {
	var req CompleteResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.policy.CompletePasswordReset(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		writePolicyError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "password_updated",
	})
}
