package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/scarif/internal/models"
	"github.com/BradenHooton/scarif/internal/money"
	pkghttp "github.com/BradenHooton/scarif/pkg/http"
)

// MockAuthPolicy implements AuthPolicy for testing
type MockAuthPolicy struct {
	AttemptLoginFunc          func(ctx context.Context, accountEmail, password string) error
	VerifyTwoFactorFunc       func(ctx context.Context, accountEmail, submittedCode string) (string, error)
	EnrollTOTPFunc            func(ctx context.Context, accountEmail string) (string, string, error)
	RequestPasswordResetFunc  func(ctx context.Context, accountEmail string) error
	CompletePasswordResetFunc func(ctx context.Context, plainToken, newPassword, confirmPassword string) error
}

func (m *MockAuthPolicy) AttemptLogin(ctx context.Context, accountEmail, password string) error {
	if m.AttemptLoginFunc != nil {
		return m.AttemptLoginFunc(ctx, accountEmail, password)
	}
	return nil
}

func (m *MockAuthPolicy) VerifyTwoFactor(ctx context.Context, accountEmail, submittedCode string) (string, error) {
	if m.VerifyTwoFactorFunc != nil {
		return m.VerifyTwoFactorFunc(ctx, accountEmail, submittedCode)
	}
	return "", models.ErrCodeInvalid
}

func (m *MockAuthPolicy) EnrollTOTP(ctx context.Context, accountEmail string) (string, string, error) {
	if m.EnrollTOTPFunc != nil {
		return m.EnrollTOTPFunc(ctx, accountEmail)
	}
	return "", "", models.ErrInternalServer
}

func (m *MockAuthPolicy) RequestPasswordReset(ctx context.Context, accountEmail string) error {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, accountEmail)
	}
	return nil
}

func (m *MockAuthPolicy) CompletePasswordReset(ctx context.Context, plainToken, newPassword, confirmPassword string) error {
	if m.CompletePasswordResetFunc != nil {
		return m.CompletePasswordResetFunc(ctx, plainToken, newPassword, confirmPassword)
	}
	return nil
}

// MockCheckoutPolicy implements CheckoutPolicy for testing
type MockCheckoutPolicy struct {
	CreateCheckoutFunc      func(ctx context.Context, accountEmail string, subtotal money.Money) (*models.CheckoutSession, error)
	ApplyCouponFunc         func(ctx context.Context, sessionID, couponCode string) (*models.CheckoutSession, error)
	AuthorizePaymentFunc    func(ctx context.Context, sessionID string) error
	RecordPaymentResultFunc func(ctx context.Context, sessionID string, outcome models.PaymentOutcome) (bool, error)
}

func (m *MockCheckoutPolicy) CreateCheckout(ctx context.Context, accountEmail string, subtotal money.Money) (*models.CheckoutSession, error) {
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(ctx, accountEmail, subtotal)
	}
	return nil, models.ErrInternalServer
}

func (m *MockCheckoutPolicy) ApplyCoupon(ctx context.Context, sessionID, couponCode string) (*models.CheckoutSession, error) {
	if m.ApplyCouponFunc != nil {
		return m.ApplyCouponFunc(ctx, sessionID, couponCode)
	}
	return nil, models.ErrInternalServer
}

func (m *MockCheckoutPolicy) AuthorizePayment(ctx context.Context, sessionID string) error {
	if m.AuthorizePaymentFunc != nil {
		return m.AuthorizePaymentFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockCheckoutPolicy) RecordPaymentResult(ctx context.Context, sessionID string, outcome models.PaymentOutcome) (bool, error) {
	if m.RecordPaymentResultFunc != nil {
		return m.RecordPaymentResultFunc(ctx, sessionID, outcome)
	}
	return false, nil
}

// NewTestRequest builds a JSON request for handler tests.
func NewTestRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks the status code and decodes the body into out.
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, out any) {
	t.Helper()

	require.Equal(t, wantStatus, w.Code, "body: %s", w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// AssertErrorResponse checks the status code and the machine-readable error
// code in the standard error envelope.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()

	require.Equal(t, wantStatus, w.Code, "body: %s", w.Body.String())

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, wantCode, resp.Error)
}
