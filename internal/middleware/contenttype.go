package middleware

import (
	"mime"
	"net/http"
)

// ContentType requires application/json on requests that carry a body.
// Bodiless POSTs such as task completion pass through.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			writeErrorResponse(w, r, http.StatusBadRequest, "Content-Type header is required")
			return
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			writeErrorResponse(w, r, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}

		next.ServeHTTP(w, r)
	})
}
