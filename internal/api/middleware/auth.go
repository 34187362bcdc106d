package middleware

import (
	"net/http"
	"strings"

	"github.com/certops/certbot-ui/internal/api/response"
	"github.com/certops/certbot-ui/internal/auth"
)

// Auth provides bearer-token authentication middleware.
type Auth struct {
	tokens *auth.TokenManager
}

// NewAuth creates a new Auth middleware around the token manager.
func NewAuth(tokens *auth.TokenManager) *Auth {
	return &Auth{tokens: tokens}
}

// Authenticate validates the Bearer JWT and sets the user identity in the
// request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid or expired token", nil)
			return
		}

		r = r.WithContext(SetUser(r.Context(), claims.UserID, claims.Username))
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
