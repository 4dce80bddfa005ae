package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/clock"
	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/validation"
)

// CreateTimerSessionRequest records a finished timer interval
type CreateTimerSessionRequest struct {
	TaskID          uuid.UUID          `json:"task_id"`
	DurationMinutes int                `json:"duration_minutes" validate:"min=1,max=1440"`
	SessionType     models.SessionType `json:"session_type,omitempty" validate:"omitempty,session_type"`
	SubjectID       *uuid.UUID         `json:"subject_id,omitempty"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	EndedAt         *time.Time         `json:"ended_at,omitempty"`
}

// PartialTimerRequest credits elapsed minutes of a running timer to a task
type PartialTimerRequest struct {
	TaskID         uuid.UUID `json:"task_id"`
	MinutesElapsed int       `json:"minutes_elapsed" validate:"min=0,max=1440"`
}

// TimerSessionHandler handles timer session requests
type TimerSessionHandler struct {
	tasks    database.TaskRepositoryInterface
	sessions database.TimerSessionRepositoryInterface
	subjects database.SubjectRepositoryInterface
	study    database.StudySessionRepositoryInterface
	calendar *clock.Calendar
	logger   *zap.Logger
}

// NewTimerSessionHandler creates a new timer session handler
func NewTimerSessionHandler(
	tasks database.TaskRepositoryInterface,
	sessions database.TimerSessionRepositoryInterface,
	subjects database.SubjectRepositoryInterface,
	study database.StudySessionRepositoryInterface,
	calendar *clock.Calendar,
	logger *zap.Logger,
) *TimerSessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimerSessionHandler{
		tasks:    tasks,
		sessions: sessions,
		subjects: subjects,
		study:    study,
		calendar: calendar,
		logger:   logger,
	}
}

// RegisterRoutes registers timer session routes.
// The router should already have the /timer-sessions prefix.
func (h *TimerSessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListSessions).Methods("GET")
	r.HandleFunc("", h.CreateSession).Methods("POST")
	r.HandleFunc("/partial", h.RecordPartial).Methods("PUT")
}

// ListSessions lists a task's sessions, newest first
func (h *TimerSessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	taskID, err := queryID(r, "task_id")
	if err != nil || taskID == nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "A valid task_id is required")
		return
	}

	sessions, err := h.sessions.ListByTask(r.Context(), user.ID, *taskID)
	if err != nil {
		h.logger.Error("failed_to_list_timer_sessions", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve timer sessions")
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// CreateSession stores a finished session. Work sessions add their minutes
// to the task and, when a subject applies, to the subject and today's study session.
func (h *TimerSessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CreateTimerSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.FirstError(err))
		return
	}
	if req.TaskID == uuid.Nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "task_id is required")
		return
	}
	if req.SessionType == "" {
		req.SessionType = models.SessionTypeWork
	}

	ctx := r.Context()
	task, err := h.tasks.GetByID(ctx, user.ID, req.TaskID)
	if err != nil {
		respondRepoError(w, err, "Task", "retrieve")
		return
	}

	subjectID := task.SubjectID
	if req.SubjectID != nil && *req.SubjectID != uuid.Nil {
		if _, err := h.subjects.GetByID(ctx, user.ID, *req.SubjectID); err != nil {
			if database.IsNotFound(err) {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", "The selected subject does not exist")
				return
			}
			respondRepoError(w, err, "Subject", "retrieve")
			return
		}
		subjectID = req.SubjectID
	}

	endedAt := h.calendar.Now()
	if req.EndedAt != nil {
		endedAt = *req.EndedAt
	}
	startedAt := endedAt.Add(-time.Duration(req.DurationMinutes) * time.Minute)
	if req.StartedAt != nil {
		startedAt = *req.StartedAt
	}
	if endedAt.Before(startedAt) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "ended_at must not be before started_at")
		return
	}

	session := &models.TimerSession{
		UserID:          user.ID,
		TaskID:          task.ID,
		SessionType:     req.SessionType,
		DurationMinutes: req.DurationMinutes,
		StartedAt:       startedAt,
		EndedAt:         endedAt,
	}
	if err := h.sessions.Create(ctx, session); err != nil {
		h.logger.Error("failed_to_create_timer_session", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create timer session")
		return
	}

	if session.SessionType == models.SessionTypeWork {
		if err := h.creditMinutes(ctx, user.ID, task.ID, subjectID, session.DurationMinutes); err != nil {
			h.logger.Error("failed_to_credit_session_minutes",
				zap.String("user_id", user.ID.String()),
				zap.String("task_id", task.ID.String()),
				zap.Error(err))
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Session was saved but time totals could not be updated")
			return
		}
	}

	respondJSON(w, http.StatusCreated, session)
}

// RecordPartial credits minutes from a timer that is still running or was
// abandoned, without storing a session
func (h *TimerSessionHandler) RecordPartial(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req PartialTimerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.FirstError(err))
		return
	}
	if req.TaskID == uuid.Nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "task_id is required")
		return
	}

	ctx := r.Context()
	task, err := h.tasks.GetByID(ctx, user.ID, req.TaskID)
	if err != nil {
		respondRepoError(w, err, "Task", "retrieve")
		return
	}

	if req.MinutesElapsed > 0 {
		if err := h.creditMinutes(ctx, user.ID, task.ID, task.SubjectID, req.MinutesElapsed); err != nil {
			h.logger.Error("failed_to_credit_partial_minutes",
				zap.String("user_id", user.ID.String()),
				zap.String("task_id", task.ID.String()),
				zap.Error(err))
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update time totals")
			return
		}
		task.TimeSpentMinutes += req.MinutesElapsed
	}

	respondJSON(w, http.StatusOK, task)
}

func (h *TimerSessionHandler) creditMinutes(ctx context.Context, userID, taskID uuid.UUID, subjectID *uuid.UUID, minutes int) error {
	if err := h.tasks.AddTimeSpent(ctx, userID, taskID, minutes); err != nil {
		return err
	}
	if subjectID == nil {
		return nil
	}
	if err := h.subjects.AddMinutes(ctx, userID, *subjectID, minutes); err != nil {
		return err
	}
	if err := h.study.AddMinutes(ctx, userID, *subjectID, h.calendar.Today(), minutes); err != nil {
		return fmt.Errorf("failed to record study session: %w", err)
	}
	return nil
}
