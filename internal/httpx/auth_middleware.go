package httpx

import (
	"net/http"
	"strings"

	"libreeze/internal/auth"
)

// AuthMiddleware admits requests bearing an access token signed with secret
// and puts the caller's identity in the request context.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			recordUser(r.Context(), claims.Subject)
			ctx := ContextWithUser(r.Context(), claims.Subject, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
