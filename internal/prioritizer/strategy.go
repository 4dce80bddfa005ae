package prioritizer

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/benvon/taskpulse/internal/models"
)

// Strategy names
const (
	StrategyHeuristic = "heuristic"
	StrategyAI        = "ai"
)

// Strategy re-ranks a user's open tasks and persists the changes
type Strategy interface {
	Name() string
	Prioritize(ctx context.Context, userID uuid.UUID) ([]models.PriorityUpdate, error)
}

// TaskStore is the task storage the strategies read and write
type TaskStore interface {
	// ListOpenTasks returns the user's tasks that are not completed, with
	// their category populated.
	ListOpenTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error)
	SetPriority(ctx context.Context, userID, taskID uuid.UUID, priority int) error
}

// AssistedTaskStore also records the model's suggestion
type AssistedTaskStore interface {
	TaskStore
	// SetAIPriority stores priority as both the suggested and the effective priority.
	SetAIPriority(ctx context.Context, userID, taskID uuid.UUID, priority int) error
}

// Registry looks up strategies by name
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates a registry holding the given strategies. Nil entries are skipped.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	for _, s := range strategies {
		if s != nil {
			r.strategies[s.Name()] = s
		}
	}
	return r
}

// Get returns the named strategy. An empty name selects the heuristic.
func (r *Registry) Get(name string) (Strategy, error) {
	if name == "" {
		name = StrategyHeuristic
	}
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown prioritization strategy %q", name)
	}
	return s, nil
}

// Has reports whether the named strategy is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.strategies[name]
	return ok
}

// Names lists the registered strategies
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
