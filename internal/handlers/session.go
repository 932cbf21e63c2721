package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/scarif/internal/auth"
)

// sessionEmail extracts the authenticated account from the request context
// placed there by the session middleware.
func sessionEmail(r *http.Request) (string, bool) {
	claims, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return "", false
	}
	return claims.AccountEmail, true
}

func pathSessionID(r *http.Request) string {
	return chi.URLParam(r, "sessionID")
}
