package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"webwatch/internal/auth"
)

// writeError emits the API's uniform envelope from middleware, where the
// handler package's helpers are not available.
func writeError(w http.ResponseWriter, code int, message string, extra map[string]any) {
	body := map[string]any{
		"status":  false,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// BearerToken extracts the credential from the Authorization header,
// accepting both "Bearer <token>" and a bare token.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return h
}

// RequireAuth validates the access token and populates the user id on the
// request context. Refresh tokens are rejected here.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusBadRequest, "Access token is required", nil)
				return
			}

			claims, err := auth.ParseToken(token, auth.TypeAccess, secret)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "Invalid or expired access token", nil)
				return
			}

			ctx := auth.WithUserID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
