package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// healthCheckTimeout bounds each dependency check
const healthCheckTimeout = 5 * time.Second

// CheckFunc reports whether a dependency is reachable
type CheckFunc func(ctx context.Context) error

// Pinger is satisfied by *database.DB and *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	names   []string
	checks  map[string]CheckFunc
	version VersionInfo
}

// VersionInfo describes the running build
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// NewHealthChecker creates a new health checker with a database check
func NewHealthChecker(db Pinger, version VersionInfo) *HealthChecker {
	h := &HealthChecker{checks: make(map[string]CheckFunc), version: version}
	if db != nil {
		h.AddCheck("database", db.PingContext)
	}
	return h
}

// AddCheck registers a named dependency check for extended mode
func (h *HealthChecker) AddCheck(name string, check CheckFunc) {
	if _, exists := h.checks[name]; !exists {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// RegisterRoutes registers the health and version routes
func (h *HealthChecker) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/version", h.Version).Methods("GET")
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. With mode=extended every
// registered dependency is checked and any failure returns 503.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.names))
		for _, name := range h.names {
			if err := h.runCheck(r.Context(), h.checks[name]); err != nil {
				response.Status = "unhealthy"
				response.Checks[name] = "unhealthy: " + sanitizeErrorMessage(err.Error())
				continue
			}
			response.Checks[name] = "healthy"
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) runCheck(ctx context.Context, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return check(ctx)
}

// Version handles the /version endpoint
func (h *HealthChecker) Version(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.version)
}
