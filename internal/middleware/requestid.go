package middleware

import (
	"net/http"

	"github.com/google/uuid"

	logpkg "github.com/benvon/taskpulse/internal/logger"
	"github.com/benvon/taskpulse/internal/request"
)

// RequestID propagates an incoming X-Request-ID or assigns a new one
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := logpkg.SanitizeString(r.Header.Get(request.RequestIDHeader), 64)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(request.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(request.WithRequestID(r.Context(), id)))
	})
}
