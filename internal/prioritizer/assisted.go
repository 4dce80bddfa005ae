package prioritizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/productivity"
)

// Suggestion is a model's proposed priority for one task
type Suggestion struct {
	TaskID    uuid.UUID
	Priority  int
	Reasoning string
}

// Suggester proposes priorities for a set of tasks
type Suggester interface {
	SuggestPriorities(ctx context.Context, tasks []models.Task) ([]Suggestion, error)
}

// ErrSuggesterUnavailable is returned while the circuit breaker is open
var ErrSuggesterUnavailable = errors.New("priority suggester unavailable")

// BreakerSettings configures the circuit breaker around the suggester
type BreakerSettings struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Assisted re-ranks tasks from a language model's suggestions
type Assisted struct {
	store       AssistedTaskStore
	suggester   Suggester
	breaker     *gobreaker.CircuitBreaker[[]Suggestion]
	concurrency int
	logger      *zap.Logger
}

// NewAssisted creates the model-backed strategy
func NewAssisted(store AssistedTaskStore, suggester Suggester, settings BreakerSettings, concurrency int, logger *zap.Logger) *Assisted {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 3
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]Suggestion](gobreaker.Settings{
		Name:        "priority-suggester",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit_breaker_state_changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Assisted{
		store:       store,
		suggester:   suggester,
		breaker:     breaker,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Name implements Strategy
func (a *Assisted) Name() string {
	return StrategyAI
}

// Prioritize implements Strategy. Suggestions for unknown tasks or outside
// the priority range are ignored.
func (a *Assisted) Prioritize(ctx context.Context, userID uuid.UUID) ([]models.PriorityUpdate, error) {
	tasks, err := a.store.ListOpenTasks(ctx, userID)
	if err != nil {
		return nil, &productivity.PersistenceError{Op: "list open tasks", UserID: userID, Err: err}
	}
	if len(tasks) == 0 {
		return []models.PriorityUpdate{}, nil
	}

	suggestions, err := a.breaker.Execute(func() ([]Suggestion, error) {
		return a.suggester.SuggestPriorities(ctx, tasks)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrSuggesterUnavailable, err)
		}
		return nil, fmt.Errorf("failed to get priority suggestions: %w", err)
	}

	byID := make(map[uuid.UUID]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	updates := make([]models.PriorityUpdate, 0, len(suggestions))
	seen := make(map[uuid.UUID]bool, len(suggestions))
	for _, s := range suggestions {
		task, ok := byID[s.TaskID]
		if !ok || seen[s.TaskID] || !models.ValidPriority(s.Priority) {
			a.logger.Debug("ignoring_priority_suggestion",
				zap.String("task_id", s.TaskID.String()),
				zap.Int("priority", s.Priority))
			continue
		}
		seen[s.TaskID] = true
		updates = append(updates, models.PriorityUpdate{
			TaskID:      task.ID,
			Title:       task.Title,
			OldPriority: task.Priority,
			NewPriority: s.Priority,
			Reason:      s.Reasoning,
		})
	}

	return writeBack(ctx, userID, updates, a.concurrency, func(ctx context.Context, u models.PriorityUpdate) error {
		return a.store.SetAIPriority(ctx, userID, u.TaskID, u.NewPriority)
	})
}
