package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActivityRecorder stores the time of a user's latest API call
type ActivityRecorder interface {
	UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error
}

// ActivityTracking records last_seen_at for authenticated requests. The
// scheduler uses it to pick which users get periodic aggregate refreshes.
func ActivityTracking(activity ActivityRecorder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := UserFromContext(r); user != nil {
				if err := activity.UpdateLastInteraction(r.Context(), user.ID); err != nil {
					logger.Warn("failed_to_update_user_activity",
						zap.Error(err),
						zap.String("user_id", user.ID.String()),
					)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
