package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/scarif/internal/models"
	pkghttp "github.com/BradenHooton/scarif/pkg/http"
)

// kindStatus maps each policy kind to its HTTP status. The kind string
// itself travels as the machine-readable error code.
var kindStatus = map[models.Kind]int{
	models.KindInvalidCredentials: http.StatusUnauthorized,
	models.KindCodeInvalid:        http.StatusUnauthorized,
	models.KindCodeExpired:        http.StatusUnauthorized,

	models.KindAccountLocked: http.StatusForbidden,
	models.KindFraudBlocked:  http.StatusForbidden,

	models.KindTokenInvalid:        http.StatusUnprocessableEntity,
	models.KindTokenExpired:        http.StatusUnprocessableEntity,
	models.KindPasswordMismatch:    http.StatusUnprocessableEntity,
	models.KindWeakPassword:        http.StatusUnprocessableEntity,
	models.KindNotFirstPurchase:    http.StatusUnprocessableEntity,
	models.KindThresholdNotMet:     http.StatusUnprocessableEntity,
	models.KindCouponNotCombinable: http.StatusUnprocessableEntity,
}

var kindMessage = map[models.Kind]string{
	models.KindInvalidCredentials:  "invalid email or password",
	models.KindCodeInvalid:         "the code is not valid",
	models.KindCodeExpired:         "the code has expired, request a new one",
	models.KindAccountLocked:       "account temporarily locked, try again later",
	models.KindFraudBlocked:        "payments are temporarily blocked for this account",
	models.KindTokenInvalid:        "the reset link is not valid",
	models.KindTokenExpired:        "the reset link has expired or was already used",
	models.KindPasswordMismatch:    "passwords do not match",
	models.KindWeakPassword:        "password does not meet the security requirements",
	models.KindNotFirstPurchase:    "coupon is only valid on a first purchase",
	models.KindThresholdNotMet:     "order subtotal is below the coupon minimum",
	models.KindCouponNotCombinable: "a coupon is already applied to this order",
}

// writePolicyError translates an engine error into the stable code + status
// the API contract promises. Infrastructure errors fall through to generic
// statuses so internals never leak.
func writePolicyError(w http.ResponseWriter, err error) {
	if kind, ok := models.KindOf(err); ok {
		status, known := kindStatus[kind]
		if !known {
			status = http.StatusUnprocessableEntity
		}
		pkghttp.WriteError(w, status, string(kind), kindMessage[kind])
		return
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteError(w, http.StatusConflict, "CONFLICT", "resource already exists")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "invalid request")
	default:
		pkghttp.WriteInternalError(w, "internal server error")
	}
}
