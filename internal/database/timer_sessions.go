package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskpulse/internal/models"
)

// TimerSessionRepository stores finished Pomodoro intervals
type TimerSessionRepository struct {
	db *DB
}

// NewTimerSessionRepository creates a new timer session repository
func NewTimerSessionRepository(db *DB) *TimerSessionRepository {
	return &TimerSessionRepository{db: db}
}

// Create inserts a timer session
func (r *TimerSessionRepository) Create(ctx context.Context, s *models.TimerSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timer_sessions (id, user_id, task_id, session_type, duration_minutes, started_at, ended_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.UserID, s.TaskID, s.SessionType, s.DurationMinutes, s.StartedAt.UTC(), s.EndedAt.UTC(), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create timer session: %w", err)
	}
	return nil
}

// ListByTask returns a task's sessions, newest first
func (r *TimerSessionRepository) ListByTask(ctx context.Context, userID, taskID uuid.UUID) ([]*models.TimerSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, task_id, session_type, duration_minutes, started_at, ended_at, created_at
		FROM timer_sessions
		WHERE user_id = $1 AND task_id = $2
		ORDER BY started_at DESC
	`, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timer sessions: %w", err)
	}
	defer closeRows(rows)

	sessions := make([]*models.TimerSession, 0)
	for rows.Next() {
		s := &models.TimerSession{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.TaskID, &s.SessionType, &s.DurationMinutes, &s.StartedAt, &s.EndedAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timer session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timer sessions: %w", err)
	}
	return sessions, nil
}

// StudySessionRepository accumulates focused minutes per subject and day
type StudySessionRepository struct {
	db *DB
}

// NewStudySessionRepository creates a new study session repository
func NewStudySessionRepository(db *DB) *StudySessionRepository {
	return &StudySessionRepository{db: db}
}

// AddMinutes adds minutes to the subject's study session for day
func (r *StudySessionRepository) AddMinutes(ctx context.Context, userID, subjectID uuid.UUID, day time.Time, minutes int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO study_sessions (user_id, subject_id, day, duration_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, subject_id, day) DO UPDATE SET
			duration_minutes = study_sessions.duration_minutes + EXCLUDED.duration_minutes
	`, userID, subjectID, dayKey(day), minutes)
	if err != nil {
		return fmt.Errorf("failed to add study minutes: %w", err)
	}
	return nil
}

// ListByDay returns the user's study sessions for a day
func (r *StudySessionRepository) ListByDay(ctx context.Context, userID uuid.UUID, day time.Time) ([]*models.StudySession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, subject_id, day, duration_minutes
		FROM study_sessions
		WHERE user_id = $1 AND day = $2
		ORDER BY subject_id
	`, userID, dayKey(day))
	if err != nil {
		return nil, fmt.Errorf("failed to query study sessions: %w", err)
	}
	defer closeRows(rows)

	sessions := make([]*models.StudySession, 0)
	for rows.Next() {
		s := &models.StudySession{}
		var d string
		if err := rows.Scan(&s.UserID, &s.SubjectID, &d, &s.DurationMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan study session: %w", err)
		}
		if s.Day, err = parseDay(d); err != nil {
			return nil, fmt.Errorf("failed to parse study session day: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating study sessions: %w", err)
	}
	return sessions, nil
}
