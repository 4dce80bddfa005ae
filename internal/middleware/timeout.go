package middleware

import (
	"net/http"
	"time"
)

// DefaultRequestTimeout is the default request timeout
const DefaultRequestTimeout = 30 * time.Second

const timeoutBody = `{"success":false,"error":"Service Unavailable","message":"Request timed out"}`

// Timeout bounds handler execution; the handler's context is cancelled when it fires
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
