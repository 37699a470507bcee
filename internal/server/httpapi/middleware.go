package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/mzhdanov/bandtrack/internal/server/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// authMiddleware verifies the Authorization bearer token and stashes the
// subject user id in the request context. Anything short of a valid token is
// a 401; the client treats that as fatal and stops retrying.
func authMiddleware(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			userID, err := auth.GetUserIDFromToken(token, secretKey)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
