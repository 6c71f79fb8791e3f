package middleware

import (
	"net/http"

	"webwatch/internal/auth"
	"webwatch/internal/model"
	"webwatch/internal/store"
)

// RequireIdentity accepts either credential: a bearer access token or a
// visitor token. The bearer wins when both are present. Used on endpoints
// that serve guests and account holders alike, e.g. forced rechecks.
func RequireIdentity(secret []byte, tokens *store.VisitorTokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := BearerToken(r); token != "" {
				claims, err := auth.ParseToken(token, auth.TypeAccess, secret)
				if err != nil {
					writeError(w, http.StatusUnprocessableEntity, "Invalid or expired access token", nil)
					return
				}
				ctx := auth.WithUserID(r.Context(), claims.UserID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			value := r.Header.Get(VisitorTokenHeader)
			if value == "" {
				writeError(w, http.StatusUnauthorized, "Authentication required", nil)
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
