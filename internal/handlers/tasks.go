package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/validation"
)

// TaskEvents records task lifecycle events on the productivity aggregates
type TaskEvents interface {
	TaskCreated(ctx context.Context, userID uuid.UUID) error
	TaskCompleted(ctx context.Context, userID uuid.UUID) error
}

// TaskHandler handles task-related requests
type TaskHandler struct {
	tasks      database.TaskRepositoryInterface
	categories database.CategoryRepositoryInterface
	subjects   database.SubjectRepositoryInterface
	events     TaskEvents
	logger     *zap.Logger
	now        func() time.Time
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(
	tasks database.TaskRepositoryInterface,
	categories database.CategoryRepositoryInterface,
	subjects database.SubjectRepositoryInterface,
	events TaskEvents,
	logger *zap.Logger,
) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{
		tasks:      tasks,
		categories: categories,
		subjects:   subjects,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterRoutes registers task routes on the given router.
// The router should already have the /tasks prefix.
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.CompleteTask).Methods("POST")
}

// CreateTaskRequest represents a create task request
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=500"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=10000"`
	CategoryID  uuid.UUID  `json:"category_id"`
	SubjectID   *uuid.UUID `json:"subject_id,omitempty"`
	Priority    int        `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// UpdateTaskRequest represents a partial task update. ClearSubject and
// ClearDueDate remove the optional fields.
type UpdateTaskRequest struct {
	Title        *string            `json:"title,omitempty" validate:"omitempty,max=500"`
	Description  *string            `json:"description,omitempty" validate:"omitempty,max=10000"`
	CategoryID   *uuid.UUID         `json:"category_id,omitempty"`
	SubjectID    *uuid.UUID         `json:"subject_id,omitempty"`
	ClearSubject bool               `json:"clear_subject,omitempty"`
	Status       *models.TaskStatus `json:"status,omitempty" validate:"omitempty,task_status"`
	Priority     *int               `json:"priority,omitempty"`
	DueDate      *time.Time         `json:"due_date,omitempty"`
	ClearDueDate bool               `json:"clear_due_date,omitempty"`
}

// ListTasksResponse represents the paginated response for listing tasks
type ListTasksResponse struct {
	Tasks      []*models.Task `json:"tasks"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// normalizePriority maps out-of-range priorities to the lowest priority
func normalizePriority(p int) int {
	if !models.ValidPriority(p) {
		return models.PriorityLow
	}
	return p
}

// sanitizeDescription trims the description; an empty result clears it
func sanitizeDescription(d *string) *string {
	if d == nil {
		return nil
	}
	s := validation.SanitizeText(*d)
	if s == "" {
		return nil
	}
	return &s
}

// setStatus moves the task to status, maintaining completed_at. It reports
// whether the task entered the completed state.
func setStatus(task *models.Task, status models.TaskStatus, now time.Time) bool {
	wasCompleted := task.IsCompleted()
	task.Status = status
	switch {
	case status == models.TaskStatusCompleted && !wasCompleted:
		completedAt := now.UTC()
		task.CompletedAt = &completedAt
		return true
	case status != models.TaskStatusCompleted:
		task.CompletedAt = nil
	}
	return false
}

// ListTasks lists tasks for the authenticated user with pagination
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	page, pageSize := pagination(r)

	var filter database.TaskFilter
	if s := r.URL.Query().Get("status"); s != "" {
		if err := validation.ValidateTaskStatus(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		status := models.TaskStatus(s)
		filter.Status = &status
	}
	var err error
	if filter.CategoryID, err = queryID(r, "category_id"); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if filter.SubjectID, err = queryID(r, "subject_id"); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	tasks, total, err := h.tasks.ListByUser(r.Context(), user.ID, filter, page, pageSize)
	if err != nil {
		h.logger.Error("failed_to_list_tasks", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	respondJSON(w, http.StatusOK, ListTasksResponse{
		Tasks:      tasks,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

// CreateTask creates a new task in the todo state and records it on today's aggregate
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.FirstError(err))
		return
	}

	title := validation.SanitizeText(req.Title)
	if title == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title is required and cannot be empty after sanitization")
		return
	}
	if req.CategoryID == uuid.Nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "category_id is required")
		return
	}

	ctx := r.Context()
	category, ok := h.ownedCategory(ctx, w, user.ID, req.CategoryID)
	if !ok {
		return
	}
	var subject *models.Subject
	if req.SubjectID != nil && *req.SubjectID != uuid.Nil {
		if subject, ok = h.ownedSubject(ctx, w, user.ID, *req.SubjectID); !ok {
			return
		}
	}

	task := &models.Task{
		ID:          uuid.New(),
		UserID:      user.ID,
		CategoryID:  category.ID,
		Title:       title,
		Description: sanitizeDescription(req.Description),
		Status:      models.TaskStatusTodo,
		Priority:    normalizePriority(req.Priority),
		DueDate:     req.DueDate,
		Category:    category,
		Subject:     subject,
	}
	if subject != nil {
		task.SubjectID = &subject.ID
	}

	if err := h.tasks.Create(ctx, task); err != nil {
		h.logger.Error("failed_to_create_task", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
		return
	}

	if err := h.events.TaskCreated(ctx, user.ID); err != nil {
		h.logTaskEventFailure("task_created", user.ID, task.ID, err)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Task was created but productivity stats could not be updated")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// GetTask retrieves a task by ID
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "task")
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(r.Context(), user.ID, id)
	if err != nil {
		respondRepoError(w, err, "Task", "retrieve")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTask applies a partial update. Entering the completed state sets
// completed_at and counts the completion; leaving it clears completed_at.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "task")
	if !ok {
		return
	}

	ctx := r.Context()
	task, err := h.tasks.GetByID(ctx, user.ID, id)
	if err != nil {
		respondRepoError(w, err, "Task", "retrieve")
		return
	}

	var req UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.FirstError(err))
		return
	}

	if req.Title != nil {
		title := validation.SanitizeText(*req.Title)
		if title == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title cannot be empty after sanitization")
			return
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = sanitizeDescription(req.Description)
	}
	if req.CategoryID != nil && *req.CategoryID != task.CategoryID {
		category, ok := h.ownedCategory(ctx, w, user.ID, *req.CategoryID)
		if !ok {
			return
		}
		task.CategoryID = category.ID
		task.Category = category
	}
	switch {
	case req.ClearSubject:
		task.SubjectID = nil
		task.Subject = nil
	case req.SubjectID != nil:
		subject, ok := h.ownedSubject(ctx, w, user.ID, *req.SubjectID)
		if !ok {
			return
		}
		task.SubjectID = &subject.ID
		task.Subject = subject
	}
	if req.Priority != nil {
		task.Priority = normalizePriority(*req.Priority)
	}
	switch {
	case req.ClearDueDate:
		task.DueDate = nil
	case req.DueDate != nil:
		task.DueDate = req.DueDate
	}

	prevStatus := task.Status
	completed := false
	if req.Status != nil {
		completed = setStatus(task, *req.Status, h.now())
	}

	applied, err := h.tasks.UpdateFromStatus(ctx, task, prevStatus)
	if err != nil {
		respondRepoError(w, err, "Task", "update")
		return
	}
	if !applied {
		h.respondStaleWrite(w, r, user.ID, id, false)
		return
	}

	if completed && !h.recordCompletion(ctx, w, user.ID, task.ID) {
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "task")
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), user.ID, id); err != nil {
		respondRepoError(w, err, "Task", "delete")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CompleteTask marks a task as completed. Completing an already completed
// task is a no-op.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "task")
	if !ok {
		return
	}

	ctx := r.Context()
	task, err := h.tasks.GetByID(ctx, user.ID, id)
	if err != nil {
		respondRepoError(w, err, "Task", "retrieve")
		return
	}

	prevStatus := task.Status
	if !setStatus(task, models.TaskStatusCompleted, h.now()) {
		respondJSON(w, http.StatusOK, task)
		return
	}

	applied, err := h.tasks.UpdateFromStatus(ctx, task, prevStatus)
	if err != nil {
		respondRepoError(w, err, "Task", "complete")
		return
	}
	if !applied {
		h.respondStaleWrite(w, r, user.ID, id, true)
		return
	}
	if !h.recordCompletion(ctx, w, user.ID, task.ID) {
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// respondStaleWrite answers a write that lost a race on the task's status.
// A completion that lost to another completion is answered with the stored
// task and records nothing.
func (h *TaskHandler) respondStaleWrite(w http.ResponseWriter, r *http.Request, userID, id uuid.UUID, completing bool) {
	current, err := h.tasks.GetByID(r.Context(), userID, id)
	if err != nil {
		respondRepoError(w, err, "Task", "retrieve")
		return
	}
	if completing && current.IsCompleted() {
		respondJSON(w, http.StatusOK, current)
		return
	}
	respondJSONError(w, http.StatusConflict, "Conflict", "Task status changed concurrently; retry the update")
}

func (h *TaskHandler) recordCompletion(ctx context.Context, w http.ResponseWriter, userID, taskID uuid.UUID) bool {
	if err := h.events.TaskCompleted(ctx, userID); err != nil {
		h.logTaskEventFailure("task_completed", userID, taskID, err)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Task was completed but productivity stats could not be updated")
		return false
	}
	return true
}

func (h *TaskHandler) logTaskEventFailure(event string, userID, taskID uuid.UUID, err error) {
	h.logger.Error("failed_to_record_task_event",
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("task_id", taskID.String()),
		zap.Error(err))
}

func (h *TaskHandler) ownedCategory(ctx context.Context, w http.ResponseWriter, userID, id uuid.UUID) (*models.Category, bool) {
	category, err := h.categories.GetByID(ctx, userID, id)
	if err != nil {
		if database.IsNotFound(err) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "The selected category does not exist")
			return nil, false
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve category")
		return nil, false
	}
	return category, true
}

func (h *TaskHandler) ownedSubject(ctx context.Context, w http.ResponseWriter, userID, id uuid.UUID) (*models.Subject, bool) {
	subject, err := h.subjects.GetByID(ctx, userID, id)
	if err != nil {
		if database.IsNotFound(err) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("The selected subject %s does not exist", id))
			return nil, false
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve subject")
		return nil, false
	}
	return subject, true
}
