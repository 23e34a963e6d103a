package middleware

import (
	"net/http"
	"strings"

	"parkcard/backend/services/parking-service/internal/auth"
)

// TokenValidator turns a bearer token into an identity.
type TokenValidator interface {
	Validate(token string) (auth.Identity, error)
}

// AuthMiddleware validates the bearer token from the Authorization header and
// stores the identity in the request context.
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return authenticate(tokens, bearerToken)
}

// WSAuthMiddleware is AuthMiddleware for WebSocket upgrades. Browsers cannot set
// headers on the handshake, so ?access_token= is accepted when the header is absent.
func WSAuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return authenticate(tokens, func(r *http.Request) (string, bool) {
		if r.Header.Get("Authorization") != "" {
			return bearerToken(r)
		}
		token := strings.TrimSpace(r.URL.Query().Get("access_token"))
		return token, token != ""
	})
}

func authenticate(tokens TokenValidator, extract func(*http.Request) (string, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extract(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			identity, err := tokens.Validate(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin rejects callers without the admin role. It must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !identity.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
