package handlers

import (
	"math/rand/v2"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/validation"
)

// CreateCategoryRequest represents a create category or subject request
type CreateCategoryRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color,omitempty" validate:"omitempty,hex_color"`
}

// CategoryHandler handles category and subject requests
type CategoryHandler struct {
	categories database.CategoryRepositoryInterface
	subjects   database.SubjectRepositoryInterface
	logger     *zap.Logger
	pickColor  func() string
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(categories database.CategoryRepositoryInterface, subjects database.SubjectRepositoryInterface, logger *zap.Logger) *CategoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryHandler{
		categories: categories,
		subjects:   subjects,
		logger:     logger,
		pickColor: func() string {
			return models.SubjectPalette[rand.IntN(len(models.SubjectPalette))]
		},
	}
}

// RegisterRoutes registers category and subject routes on the API router
func (h *CategoryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/categories", h.ListCategories).Methods("GET")
	r.HandleFunc("/categories", h.CreateCategory).Methods("POST")
	r.HandleFunc("/subjects", h.ListSubjects).Methods("GET")
	r.HandleFunc("/subjects", h.CreateSubject).Methods("POST")
}

// decodeNamed decodes and validates a name/color body
func decodeNamed(w http.ResponseWriter, r *http.Request) (CreateCategoryRequest, bool) {
	var req CreateCategoryRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	req.Name = validation.SanitizeText(req.Name)
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.FirstError(err))
		return req, false
	}
	return req, true
}

// ListCategories lists the user's categories, defaults first
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	categories, err := h.categories.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed_to_list_categories", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve categories")
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// CreateCategory creates a non-default category
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	req, ok := decodeNamed(w, r)
	if !ok {
		return
	}

	category := &models.Category{
		UserID: user.ID,
		Name:   req.Name,
		Color:  req.Color,
	}
	if category.Color == "" {
		category.Color = models.DefaultCategoryColor
	}

	if err := h.categories.Create(r.Context(), category); err != nil {
		respondRepoError(w, err, "Category", "create")
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

// ListSubjects lists the user's subjects by name
func (h *CategoryHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	subjects, err := h.subjects.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed_to_list_subjects", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve subjects")
		return
	}
	respondJSON(w, http.StatusOK, subjects)
}

// CreateSubject creates a subject. Without a color one is picked from the palette.
func (h *CategoryHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	req, ok := decodeNamed(w, r)
	if !ok {
		return
	}

	subject := &models.Subject{
		UserID: user.ID,
		Name:   req.Name,
		Color:  req.Color,
	}
	if subject.Color == "" {
		subject.Color = h.pickColor()
	}

	if err := h.subjects.Create(r.Context(), subject); err != nil {
		respondRepoError(w, err, "Subject", "create")
		return
	}
	respondJSON(w, http.StatusCreated, subject)
}
