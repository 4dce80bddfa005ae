package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// OpenAPIHandler serves the API description as YAML or JSON
type OpenAPIHandler struct {
	openAPIPath string
	baseDir     string
}

// NewOpenAPIHandler creates a new OpenAPI handler. The document must live
// inside the directory it was configured in.
func NewOpenAPIHandler(openAPIPath string) *OpenAPIHandler {
	absPath, _ := filepath.Abs(openAPIPath)
	return &OpenAPIHandler{
		openAPIPath: absPath,
		baseDir:     filepath.Dir(absPath),
	}
}

// RegisterRoutes registers OpenAPI routes
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/openapi.yaml", h.ServeYAML).Methods("GET")
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods("GET")
}

// read returns the document after checking it has not escaped baseDir
func (h *OpenAPIHandler) read() ([]byte, error) {
	rel, err := filepath.Rel(h.baseDir, filepath.Clean(h.openAPIPath))
	if err != nil {
		return nil, err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return nil, os.ErrPermission
	}
	return os.ReadFile(h.openAPIPath)
}

// ServeYAML serves the OpenAPI document in YAML format
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, _ *http.Request) {
	data, err := h.read()
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "OpenAPI specification not found")
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(data)
}

// ServeJSON serves the OpenAPI document converted to JSON
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, _ *http.Request) {
	data, err := h.read()
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "OpenAPI specification not found")
		return
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to parse OpenAPI specification")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}
