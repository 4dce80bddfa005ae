package productivity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskpulse/internal/models"
)

// AggregateStore is the storage the updater reads and writes. Increments must
// be atomic upserts so concurrent requests for the same day never lose counts.
type AggregateStore interface {
	IncrementCreated(ctx context.Context, userID uuid.UUID, day time.Time) error
	IncrementCompleted(ctx context.Context, userID uuid.UUID, day time.Time) error
	// Ensure returns the row for day, creating it with zero counters if absent.
	Ensure(ctx context.Context, userID uuid.UUID, day time.Time) (*models.DailyAggregate, error)
	// ListRecent returns up to limit rows on or before through, newest first.
	ListRecent(ctx context.Context, userID uuid.UUID, through time.Time, limit int) ([]models.DailyAggregate, error)
	SetDerived(ctx context.Context, userID uuid.UUID, day time.Time, streakDays, score int) error
}

// Updater records task events on today's aggregate row and refreshes the
// cached streak and score
type Updater struct {
	store AggregateStore
	today func() time.Time
}

// NewUpdater creates an updater. today must return a calendar day already
// truncated to midnight.
func NewUpdater(store AggregateStore, today func() time.Time) *Updater {
	return &Updater{store: store, today: today}
}

// RecordTaskCreated increments today's created counter
func (u *Updater) RecordTaskCreated(ctx context.Context, userID uuid.UUID) error {
	return persistenceErr("increment tasks created", userID,
		u.store.IncrementCreated(ctx, userID, u.today()))
}

// RecordTaskCompleted increments today's completed counter
func (u *Updater) RecordTaskCompleted(ctx context.Context, userID uuid.UUID) error {
	return persistenceErr("increment tasks completed", userID,
		u.store.IncrementCompleted(ctx, userID, u.today()))
}

// RecomputeDerived recalculates streak and score for today from the stored
// counters and writes them back. Repeated calls without counter changes
// produce the same result.
func (u *Updater) RecomputeDerived(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error) {
	today := u.today()

	row, err := u.store.Ensure(ctx, userID, today)
	if err != nil {
		return nil, persistenceErr("ensure daily aggregate", userID, err)
	}

	history, err := u.store.ListRecent(ctx, userID, today, LookbackDays)
	if err != nil {
		return nil, persistenceErr("list daily aggregates", userID, err)
	}

	streak := Streak(history, today)
	score := Score(ScoreInput{
		TasksCompleted: row.TasksCompleted,
		TasksCreated:   row.TasksCreated,
		StreakDays:     streak,
		TodayCompleted: row.TasksCompleted,
	})

	if err := u.store.SetDerived(ctx, userID, today, streak, score); err != nil {
		return nil, persistenceErr("set derived fields", userID, err)
	}

	row.StreakDays = streak
	row.ProductivityScore = score
	return row, nil
}
