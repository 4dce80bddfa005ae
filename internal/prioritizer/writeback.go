package prioritizer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/productivity"
)

// DefaultConcurrency bounds parallel priority writes
const DefaultConcurrency = 4

type writeFunc func(ctx context.Context, update models.PriorityUpdate) error

// writeBack persists each update independently. It returns the updates that
// were stored, in input order, and the joined errors of those that were not.
func writeBack(ctx context.Context, userID uuid.UUID, updates []models.PriorityUpdate, concurrency int, write writeFunc) ([]models.PriorityUpdate, error) {
	if len(updates) == 0 {
		return []models.PriorityUpdate{}, nil
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	errs := make([]error, len(updates))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, u := range updates {
		g.Go(func() error {
			if err := write(ctx, u); err != nil {
				errs[i] = &productivity.PersistenceError{Op: "set task priority " + u.TaskID.String(), UserID: userID, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	applied := make([]models.PriorityUpdate, 0, len(updates))
	for i, u := range updates {
		if errs[i] == nil {
			applied = append(applied, u)
		}
	}
	return applied, errors.Join(errs...)
}
