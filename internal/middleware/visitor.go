package middleware

import (
	"net/http"

	"webwatch/internal/auth"
	"webwatch/internal/model"
	"webwatch/internal/store"
)

// VisitorTokenHeader carries the guest bearer credential.
const VisitorTokenHeader = "X-Visitor-Token"

// RequireVisitorToken validates the X-Visitor-Token header against the
// store and attaches the token to the request context. Lookup is the lazy
// expiry point: an anonymous token past its expiry comes back already
// flipped to expired and is rejected with isExpired so the client can
// request a fresh one without user-visible disruption.
func RequireVisitorToken(tokens *store.VisitorTokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value := r.Header.Get(VisitorTokenHeader)
			if value == "" {
				writeError(w, http.StatusBadRequest, "Visitor token is required. Include X-Visitor-Token header.", nil)
				return
			}

			t, err := tokens.GetByToken(value)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid visitor token", nil)
				return
			}
			if t.Status == model.TokenExpired {
				writeError(w, http.StatusUnauthorized, "Visitor token has expired. Please create a new one.", map[string]any{"isExpired": true})
				return
			}

			ctx := auth.WithVisitorToken(r.Context(), t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalVisitorToken attaches the visitor token when a valid one is
// presented and otherwise lets the request through with no guest identity.
// Used on endpoints that serve both guests and authenticated users.
func OptionalVisitorToken(tokens *store.VisitorTokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value := r.Header.Get(VisitorTokenHeader)
			if value == "" {
				next.ServeHTTP(w, r)
				return
			}

			t, err := tokens.GetByToken(value)
			if err != nil || t.Status == model.TokenExpired {
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.WithVisitorToken(r.Context(), t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
