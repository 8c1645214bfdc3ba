package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/aditya/rideshare/internal/auth"
	apperrors "github.com/aditya/rideshare/internal/errors"
	"github.com/aditya/rideshare/pkg/utils"
)

type contextKey string

const (
	userIDKey     contextKey = "user_id"
	userReportKey contextKey = "user_report"
)

// WithUserID returns a copy of ctx carrying the authenticated user. The
// request logger further out is told about it too.
func WithUserID(ctx context.Context, userID string) context.Context {
	if report, ok := ctx.Value(userReportKey).(*string); ok {
		*report = userID
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the user set by Authenticate.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// Credential pulls the bearer token from the Authorization header, falling
// back to the token query parameter that browsers use for websockets.
func Credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// Authenticate rejects requests without a valid bearer token.
func Authenticate(validator auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := validator.ValidateCredential(Credential(r))
			if err != nil {
				if apiErr, ok := err.(*apperrors.APIError); ok {
					utils.Error(w, apiErr)
				} else {
					utils.Error(w, apperrors.Unauthorized("invalid credential"))
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), identity.UserID)))
		})
	}
}
