package prioritizer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/productivity"
)

// Heuristic re-ranks tasks from due dates and work-hour category signals
type Heuristic struct {
	store       TaskStore
	now         func() time.Time
	concurrency int
}

// NewHeuristic creates the deterministic strategy. now supplies the instant
// priorities are evaluated against, in the user's calendar location.
func NewHeuristic(store TaskStore, now func() time.Time, concurrency int) *Heuristic {
	return &Heuristic{store: store, now: now, concurrency: concurrency}
}

// Name implements Strategy
func (h *Heuristic) Name() string {
	return StrategyHeuristic
}

// Plan computes the changes Prioritize would make without writing them
func (h *Heuristic) Plan(ctx context.Context, userID uuid.UUID) ([]models.PriorityUpdate, error) {
	tasks, err := h.store.ListOpenTasks(ctx, userID)
	if err != nil {
		return nil, &productivity.PersistenceError{Op: "list open tasks", UserID: userID, Err: err}
	}

	now := h.now()
	updates := make([]models.PriorityUpdate, 0)
	for _, task := range tasks {
		if task.IsCompleted() {
			continue
		}
		newPriority, reason := computePriority(task, now)
		if newPriority == task.Priority {
			continue
		}
		updates = append(updates, models.PriorityUpdate{
			TaskID:      task.ID,
			Title:       task.Title,
			OldPriority: task.Priority,
			NewPriority: newPriority,
			Reason:      reason,
		})
	}
	return updates, nil
}

// Prioritize implements Strategy. Each changed task is written independently;
// the result lists only the updates that were stored.
func (h *Heuristic) Prioritize(ctx context.Context, userID uuid.UUID) ([]models.PriorityUpdate, error) {
	updates, err := h.Plan(ctx, userID)
	if err != nil {
		return nil, err
	}
	return writeBack(ctx, userID, updates, h.concurrency, func(ctx context.Context, u models.PriorityUpdate) error {
		return h.store.SetPriority(ctx, userID, u.TaskID, u.NewPriority)
	})
}
