package routes

import (
	"github.com/BradenHooton/scarif/internal/auth"
	"github.com/BradenHooton/scarif/internal/handlers"
	"github.com/BradenHooton/scarif/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	checkoutHandler *handlers.CheckoutHandler,
	tokenManager *auth.TokenManager,
	rateLimitConfig middleware.RateLimitConfig,
) {
	// Public routes - no session required. IP throttling sits on top of
	// the per-account lockout policy.
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/verify-2fa", authHandler.VerifyTwoFactor)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/reset/request", authHandler.RequestReset)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/reset/complete", authHandler.CompleteReset)

	// Protected routes - session token required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(tokenManager))

		r.Post("/auth/totp/enroll", authHandler.EnrollTOTP)

		r.Post("/checkout", checkoutHandler.Create)
		r.Post("/checkout/{sessionID}/coupon", checkoutHandler.ApplyCoupon)
		r.Post("/checkout/{sessionID}/authorize", checkoutHandler.Authorize)
		r.Post("/checkout/{sessionID}/payment-result", checkoutHandler.PaymentResult)
	})
}
