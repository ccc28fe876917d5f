package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/xannhsux/dsci560-hikebot/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// Identity extracts the caller's identity from the X-User-ID and X-User-Name
// headers. Authentication is handled upstream; these headers are trusted as
// set by the gateway. Requests without a valid identity get 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := r.Header.Get("X-User-ID")
		name := r.Header.Get("X-User-Name")

		if rawID == "" || name == "" {
			http.Error(w, `{"error":"missing identity headers"}`, http.StatusUnauthorized)
			return
		}

		userID, err := uuid.Parse(rawID)
		if err != nil {
			http.Error(w, `{"error":"invalid user id"}`, http.StatusUnauthorized)
			return
		}

		user := &models.User{ID: userID, Name: name}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserFromContext returns the identity attached by Identity, or nil.
func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}
