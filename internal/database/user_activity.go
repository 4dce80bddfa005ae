package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserActivityRepository tracks when users last used the API
type UserActivityRepository struct {
	db *DB
}

// NewUserActivityRepository creates a new user activity repository
func NewUserActivityRepository(db *DB) *UserActivityRepository {
	return &UserActivityRepository{db: db}
}

// UpdateLastInteraction records an API interaction at now
func (r *UserActivityRepository) UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_seen_at = $2 WHERE id = $1
	`, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update last interaction: %w", err)
	}
	return nil
}

// GetActiveUsersSince returns users who interacted with the API at or after since
func (r *UserActivityRepository) GetActiveUsersSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM users
		WHERE last_seen_at IS NOT NULL AND last_seen_at >= $1
		ORDER BY id
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer closeRows(rows)

	var userIDs []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return userIDs, nil
}
