package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gwentdecks/decks-server/internal/http/response"
	"github.com/gwentdecks/decks-server/internal/validation"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userIDKey is the context key for the caller's user ID.
const userIDKey ctxKey = "userID"

// GetUserID returns the caller's user ID from context.
// Returns 401 error if the request carried no identity.
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", huma.Error401Unauthorized("X-User-ID header required")
	}
	return userID, nil
}

// setUserID stores the user ID in context.
func setUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// userIDFromContext returns the user ID or "" when anonymous.
func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// identityMiddleware stores the X-User-ID header in the request context.
// Requests without the header continue anonymously; handlers use GetUserID
// when they need a caller. A header that cannot be used as a tree key is rejected.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !validation.IsPathKey(userID) {
			response.Unauthorized(w, "Invalid X-User-ID header", s.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(setUserID(r.Context(), userID)))
	})
}
