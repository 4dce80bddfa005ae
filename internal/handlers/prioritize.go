package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/prioritizer"
	"github.com/benvon/taskpulse/internal/queue"
)

// PrioritizeResponse reports the priorities changed by a synchronous run
type PrioritizeResponse struct {
	Strategy string                  `json:"strategy"`
	Updates  []models.PriorityUpdate `json:"updates"`
	Updated  int                     `json:"updated"`
	Partial  bool                    `json:"partial"`
}

// PrioritizeJobResponse acknowledges a queued prioritization
type PrioritizeJobResponse struct {
	Strategy string `json:"strategy"`
	JobID    string `json:"job_id"`
}

// PrioritizeHandler re-ranks the user's open tasks
type PrioritizeHandler struct {
	strategies *prioritizer.Registry
	jobs       queue.Enqueuer
	aiEnabled  bool
	logger     *zap.Logger
}

// NewPrioritizeHandler creates a new prioritize handler. jobs may be nil, in
// which case model-assisted prioritization is unavailable.
func NewPrioritizeHandler(strategies *prioritizer.Registry, jobs queue.Enqueuer, aiEnabled bool, logger *zap.Logger) *PrioritizeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrioritizeHandler{
		strategies: strategies,
		jobs:       jobs,
		aiEnabled:  aiEnabled,
		logger:     logger,
	}
}

// RegisterRoutes registers the prioritize route on the API router
func (h *PrioritizeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/prioritize", h.Prioritize).Methods("POST")
}

// Prioritize runs the heuristic inline. With strategy=ai the work is queued
// for the worker and 202 is returned.
func (h *PrioritizeHandler) Prioritize(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	name := r.URL.Query().Get("strategy")
	if name == prioritizer.StrategyAI {
		h.enqueue(w, r, user)
		return
	}

	strategy, err := h.strategies.Get(name)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	updates, err := strategy.Prioritize(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed_to_prioritize_tasks",
			zap.String("user_id", user.ID.String()),
			zap.String("strategy", strategy.Name()),
			zap.Int("applied", len(updates)),
			zap.Error(err))
		if updates == nil {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to prioritize tasks")
			return
		}
	}

	respondJSON(w, http.StatusOK, PrioritizeResponse{
		Strategy: strategy.Name(),
		Updates:  updates,
		Updated:  len(updates),
		Partial:  err != nil,
	})
}

func (h *PrioritizeHandler) enqueue(w http.ResponseWriter, r *http.Request, user *models.User) {
	if h.jobs == nil || !h.aiEnabled {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "AI prioritization is not available")
		return
	}

	job := queue.NewJob(queue.JobTypeAIPrioritize, user.ID)
	job.Metadata["reason"] = "requested"
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed_to_enqueue_prioritize_job",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to queue AI prioritization")
		return
	}

	respondJSON(w, http.StatusAccepted, PrioritizeJobResponse{
		Strategy: prioritizer.StrategyAI,
		JobID:    job.ID.String(),
	})
}
