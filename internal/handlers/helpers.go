package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/middleware"
	"github.com/benvon/taskpulse/internal/models"
)

const (
	// DefaultPageSize is the default page size for pagination
	DefaultPageSize = 100
	// MaxPageSize is the maximum page size for pagination
	MaxPageSize = 500
	// maxErrorMessageLength bounds client-facing error messages
	maxErrorMessageLength = 200
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage truncates messages so internal details do not leak
func sanitizeErrorMessage(message string) string {
	if len(message) > maxErrorMessageLength {
		return message[:maxErrorMessageLength] + "..."
	}
	return message
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// requireUser returns the authenticated user or writes a 401
func requireUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
	}
	return user
}

// decodeJSON decodes the request body into dst. It writes the error response
// and returns false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}
	return true
}

// pathID parses a UUID route variable
func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional UUID query parameter
func queryID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &id, nil
}

// pagination reads page and page_size, clamping page_size to MaxPageSize
func pagination(r *http.Request) (page, pageSize int) {
	page = 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	pageSize = DefaultPageSize
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			pageSize = min(parsed, MaxPageSize)
		}
	}
	return page, pageSize
}

// respondRepoError maps repository errors to HTTP statuses. what is the
// capitalised resource name, action the verb used in the 500 message.
func respondRepoError(w http.ResponseWriter, err error, what, action string) {
	switch {
	case database.IsNotFound(err):
		respondJSONError(w, http.StatusNotFound, "Not Found", what+" not found")
	case errors.Is(err, database.ErrConflict):
		respondJSONError(w, http.StatusConflict, "Conflict", what+" already exists")
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to "+action+" "+strings.ToLower(what))
	}
}
