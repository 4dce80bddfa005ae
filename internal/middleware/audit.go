package middleware

import (
	"net/http"

	"go.uber.org/zap"

	logpkg "github.com/benvon/taskpulse/internal/logger"
	"github.com/benvon/taskpulse/internal/request"
)

// Audit logs rejected and throttled requests
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			var event string
			switch wrapped.statusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				event = "security_event"
			case http.StatusTooManyRequests:
				event = "rate_limit_violation"
			default:
				return
			}

			fields := []zap.Field{
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				zap.String("request_id", request.RequestID(r.Context())),
			}
			if user := UserFromContext(r); user != nil {
				fields = append(fields, zap.String("user_id", user.ID.String()))
			}
			logger.Warn(event, fields...)
		})
	}
}
