package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitByIP_AllowsUnderLimit(t *testing.T) {
	mw := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 5})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimitByIP_RejectsOverLimit(t *testing.T) {
	mw := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "203.0.113.8:1234"
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		last = w.Code
	}

	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the third request, got %d", last)
	}
}

func TestRateLimitByIP_ForwardedHeadersNeedTrustedProxy(t *testing.T) {
	send := func(handler http.Handler, remoteAddr, forwardedFor string) int {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", forwardedFor)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// Untrusted source: spoofed headers cannot escape the shared key
	mw := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if code := send(handler, "203.0.113.9:1234", "198.51.100.1"); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := send(handler, "203.0.113.9:1234", "198.51.100.2"); code != http.StatusTooManyRequests {
		t.Fatalf("spoofed second request: expected 429, got %d", code)
	}

	// Behind a trusted proxy the forwarded client is the key
	mw = RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1, TrustedProxies: []string{"10.0.0.0/8"}})
	handler = mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if code := send(handler, "10.1.2.3:443", "198.51.100.1"); code != http.StatusOK {
		t.Fatalf("first forwarded client: expected 200, got %d", code)
	}
	if code := send(handler, "10.1.2.3:443", "198.51.100.2"); code != http.StatusOK {
		t.Fatalf("second forwarded client: expected 200, got %d", code)
	}
}

func TestDefaultAuthRateLimit(t *testing.T) {
	config := DefaultAuthRateLimit()
	if config.RequestsPerMinute != 5 {
		t.Fatalf("expected 5 requests per minute, got %d", config.RequestsPerMinute)
	}
}
