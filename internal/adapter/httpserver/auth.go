package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/brandlens/brandlens/internal/domain"
)

type userIDKey struct{}

// BearerAuth verifies the Authorization header against the token store and
// stashes the resolved user id in the request context.
func BearerAuth(verifier domain.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, r, fmt.Errorf("op=auth.bearer: missing bearer token: %w", domain.ErrAuthRequired), nil)
				return
			}
			userID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom returns the authenticated user id, empty outside BearerAuth.
func UserIDFrom(r *http.Request) string {
	if v := r.Context().Value(userIDKey{}); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
