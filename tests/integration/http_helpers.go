package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/scarif/internal/auth"
	"github.com/BradenHooton/scarif/internal/clock"
	"github.com/BradenHooton/scarif/internal/database"
	"github.com/BradenHooton/scarif/internal/handlers"
	middlewareCustom "github.com/BradenHooton/scarif/internal/middleware"
	"github.com/BradenHooton/scarif/internal/money"
	"github.com/BradenHooton/scarif/internal/notify"
	"github.com/BradenHooton/scarif/internal/policy"
	"github.com/BradenHooton/scarif/internal/repositories"
	"github.com/BradenHooton/scarif/internal/routes"
	pkglogger "github.com/BradenHooton/scarif/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CapturedDelivery is one message handed to the notification channel.
type CapturedDelivery struct {
	AccountEmail string
	Kind         notify.Kind
	Payload      string
}

// CaptureNotifier records deliveries for test assertions instead of
// sending them anywhere.
type CaptureNotifier struct {
	mu         sync.Mutex
	Deliveries []CapturedDelivery
}

func (c *CaptureNotifier) Send(_ context.Context, accountEmail string, kind notify.Kind, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Deliveries = append(c.Deliveries, CapturedDelivery{
		AccountEmail: accountEmail,
		Kind:         kind,
		Payload:      payload,
	})
	return nil
}

// LastPayload returns the payload of the most recent delivery of the given
// kind, or "" when none was captured.
func (c *CaptureNotifier) LastPayload(kind notify.Kind) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.Deliveries) - 1; i >= 0; i-- {
		if c.Deliveries[i].Kind == kind {
			return c.Deliveries[i].Payload
		}
	}
	return ""
}

// TestServer wraps httptest.Server with a real database, a fake clock, and
// a capturing notification channel.
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Accounts *repositories.AccountRepository
	Notifier *CaptureNotifier
	Clock    *clock.Fake
	TOTP     *auth.TOTPManager
}

// NewTestServer initializes the complete HTTP stack against the given
// database. Time is controlled through the returned fake clock so lockout
// and fraud-window tests do not sleep.
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := testLogger()
	auditLogger := pkglogger.NewAuditLogger(logger)

	accountRepo, challengeRepo, resetTokenRepo, declineRepo, checkoutRepo, orderRepo :=
		InitializeRepositories(db)

	credentials := repositories.NewBcryptCredentialStore(accountRepo)

	tokenManager := auth.NewTokenManager("test-secret-32-characters-long-for-testing", time.Hour)
	totpManager, err := auth.NewTOTPManager([]byte("test-totp-encryption-key-32-char"), "scarif-test")
	if err != nil {
		return nil, err
	}

	notifier := &CaptureNotifier{}
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	defaultShipping, err := money.FromString("5.99")
	if err != nil {
		return nil, err
	}

	engine := policy.NewPolicyEngine(policy.EngineDeps{
		Accounts:    accountRepo,
		Checkouts:   checkoutRepo,
		Credentials: credentials,

		Attempts:   policy.NewAttemptTracker(accountRepo, clk, 15*time.Minute, logger, auditLogger),
		Challenges: policy.NewCodeChallenge(challengeRepo, clk, 5*time.Minute, totpManager, logger),
		Resets:     policy.NewResetTokens(resetTokenRepo, clk, time.Hour, logger, auditLogger),
		Coupons:    policy.NewCouponEngine(policy.DefaultCatalog(), orderRepo, logger, auditLogger),
		Fraud:      policy.NewFraudGuard(declineRepo, clk, 10*time.Minute, logger, auditLogger),
		Orders:     orderRepo,

		Notifier: notifier,
		Tokens:   tokenManager,
		TOTP:     totpManager,
		Clock:    clk,

		DefaultShipping: defaultShipping,

		Logger:      logger,
		AuditLogger: auditLogger,
	})

	authHandler := handlers.NewAuthHandler(engine)
	checkoutHandler := handlers.NewCheckoutHandler(engine)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Lockout tests make more than five login calls in a row, so the IP
	// throttle is effectively disabled here.
	routes.RegisterRoutes(r, authHandler, checkoutHandler, tokenManager, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: 1000,
	})

	return &TestServer{
		Server:   httptest.NewServer(r),
		DB:       db,
		Accounts: accountRepo,
		Notifier: notifier,
		Clock:    clk,
		TOTP:     totpManager,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, sessionToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + sessionToken,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
