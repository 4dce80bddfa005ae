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

// SubjectRepository handles study subject database operations
type SubjectRepository struct {
	db *DB
}

// NewSubjectRepository creates a new subject repository
func NewSubjectRepository(db *DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByUser returns the user's subjects ordered by name
func (r *SubjectRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Subject, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, color, total_minutes, created_at
		FROM subjects
		WHERE user_id = $1
		ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	defer closeRows(rows)

	subjects := make([]*models.Subject, 0)
	for rows.Next() {
		s := &models.Subject{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &s.Color, &s.TotalMinutes, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subjects: %w", err)
	}
	return subjects, nil
}

// GetByID returns a subject owned by userID
func (r *SubjectRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Subject, error) {
	s := &models.Subject{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, color, total_minutes, created_at
		FROM subjects
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&s.ID, &s.UserID, &s.Name, &s.Color, &s.TotalMinutes, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subject: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	return s, nil
}

// Create inserts a subject. Names are unique per user.
func (r *SubjectRepository) Create(ctx context.Context, s *models.Subject) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subjects (id, user_id, name, color, total_minutes, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
	`, s.ID, s.UserID, s.Name, s.Color, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("subject %q: %w", s.Name, ErrConflict)
		}
		return fmt.Errorf("failed to create subject: %w", err)
	}
	return nil
}

// AddMinutes atomically adds focused minutes to a subject's total
func (r *SubjectRepository) AddMinutes(ctx context.Context, userID, id uuid.UUID, minutes int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subjects SET total_minutes = total_minutes + $3
		WHERE id = $1 AND user_id = $2
	`, id, userID, minutes)
	if err != nil {
		return fmt.Errorf("failed to add subject minutes: %w", err)
	}
	return expectOneRow(result, "subject")
}
