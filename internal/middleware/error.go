package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/benvon/taskpulse/internal/logger"
	"github.com/benvon/taskpulse/internal/request"
)

// ErrorResponse is the envelope written by middleware-level failures
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler recovers panics and answers with a 500 envelope
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic_recovered",
					zap.Any("error", rec),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("method", r.Method),
					zap.String("request_id", request.RequestID(r.Context())),
					zap.ByteString("stack", debug.Stack()),
				)
				writeErrorResponse(w, r, http.StatusInternalServerError, "An unexpected error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Success:   false,
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
		RequestID: request.RequestID(r.Context()),
	})
}
