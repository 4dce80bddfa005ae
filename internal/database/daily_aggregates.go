package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskpulse/internal/models"
)

// DailyAggregateRepository stores per-user, per-day productivity counters.
// Counter changes are single upsert statements so concurrent requests for
// the same day never lose increments.
type DailyAggregateRepository struct {
	db *DB
}

// NewDailyAggregateRepository creates a new daily aggregate repository
func NewDailyAggregateRepository(db *DB) *DailyAggregateRepository {
	return &DailyAggregateRepository{db: db}
}

const aggregateColumns = `user_id, day, tasks_created, tasks_completed, streak_days, productivity_score, created_at, updated_at`

func scanAggregate(row rowScanner) (*models.DailyAggregate, error) {
	a := &models.DailyAggregate{}
	var day string
	err := row.Scan(&a.UserID, &day, &a.TasksCreated, &a.TasksCompleted, &a.StreakDays, &a.ProductivityScore, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if a.Day, err = parseDay(day); err != nil {
		return nil, err
	}
	return a, nil
}

// IncrementCreated adds one to the day's created counter, creating the row if needed
func (r *DailyAggregateRepository) IncrementCreated(ctx context.Context, userID uuid.UUID, day time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_aggregates (user_id, day, tasks_created, tasks_completed, streak_days, productivity_score, created_at, updated_at)
		VALUES ($1, $2, 1, 0, 0, 0, $3, $3)
		ON CONFLICT (user_id, day) DO UPDATE SET
			tasks_created = daily_aggregates.tasks_created + 1,
			updated_at = EXCLUDED.updated_at
	`, userID, dayKey(day), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to increment tasks created: %w", err)
	}
	return nil
}

// IncrementCompleted adds one to the day's completed counter, creating the row if needed
func (r *DailyAggregateRepository) IncrementCompleted(ctx context.Context, userID uuid.UUID, day time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_aggregates (user_id, day, tasks_created, tasks_completed, streak_days, productivity_score, created_at, updated_at)
		VALUES ($1, $2, 0, 1, 0, 0, $3, $3)
		ON CONFLICT (user_id, day) DO UPDATE SET
			tasks_completed = daily_aggregates.tasks_completed + 1,
			updated_at = EXCLUDED.updated_at
	`, userID, dayKey(day), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to increment tasks completed: %w", err)
	}
	return nil
}

// Ensure returns the day's row, creating it with zero counters when absent
func (r *DailyAggregateRepository) Ensure(ctx context.Context, userID uuid.UUID, day time.Time) (*models.DailyAggregate, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_aggregates (user_id, day, tasks_created, tasks_completed, streak_days, productivity_score, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, 0, $3, $3)
		ON CONFLICT (user_id, day) DO NOTHING
	`, userID, dayKey(day), now)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure daily aggregate: %w", err)
	}

	a, err := r.Get(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns the row for a day
func (r *DailyAggregateRepository) Get(ctx context.Context, userID uuid.UUID, day time.Time) (*models.DailyAggregate, error) {
	a, err := scanAggregate(r.db.QueryRowContext(ctx, `
		SELECT `+aggregateColumns+` FROM daily_aggregates WHERE user_id = $1 AND day = $2
	`, userID, dayKey(day)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("daily aggregate: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily aggregate: %w", err)
	}
	return a, nil
}

// Latest returns the most recent row for the user
func (r *DailyAggregateRepository) Latest(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error) {
	a, err := scanAggregate(r.db.QueryRowContext(ctx, `
		SELECT `+aggregateColumns+` FROM daily_aggregates WHERE user_id = $1 ORDER BY day DESC LIMIT 1
	`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("daily aggregate: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest daily aggregate: %w", err)
	}
	return a, nil
}

// ListRecent returns up to limit rows on or before through, newest first
func (r *DailyAggregateRepository) ListRecent(ctx context.Context, userID uuid.UUID, through time.Time, limit int) ([]models.DailyAggregate, error) {
	return r.list(ctx, `
		SELECT `+aggregateColumns+` FROM daily_aggregates
		WHERE user_id = $1 AND day <= $2
		ORDER BY day DESC
		LIMIT $3
	`, userID, dayKey(through), limit)
}

// ListRange returns rows between from and to inclusive, oldest first
func (r *DailyAggregateRepository) ListRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.DailyAggregate, error) {
	return r.list(ctx, `
		SELECT `+aggregateColumns+` FROM daily_aggregates
		WHERE user_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day ASC
	`, userID, dayKey(from), dayKey(to))
}

func (r *DailyAggregateRepository) list(ctx context.Context, query string, args ...any) ([]models.DailyAggregate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily aggregates: %w", err)
	}
	defer closeRows(rows)

	out := make([]models.DailyAggregate, 0)
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily aggregate: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily aggregates: %w", err)
	}
	return out, nil
}

// SetDerived overwrites the cached streak and score of a day's row
func (r *DailyAggregateRepository) SetDerived(ctx context.Context, userID uuid.UUID, day time.Time, streakDays, score int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE daily_aggregates
		SET streak_days = $3, productivity_score = $4, updated_at = $5
		WHERE user_id = $1 AND day = $2
	`, userID, dayKey(day), streakDays, score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set derived fields: %w", err)
	}
	return expectOneRow(result, "daily aggregate")
}
