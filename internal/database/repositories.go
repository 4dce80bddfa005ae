package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/prioritizer"
	"github.com/benvon/taskpulse/internal/productivity"
)

// TaskRepositoryInterface defines the task operations handlers depend on
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Task, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter TaskFilter, page, pageSize int) ([]*models.Task, int, error)
	UpdateFromStatus(ctx context.Context, task *models.Task, from models.TaskStatus) (bool, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	AddTimeSpent(ctx context.Context, userID, taskID uuid.UUID, minutes int) error
	CountByStatus(ctx context.Context, userID uuid.UUID) (map[models.TaskStatus]int, error)
	CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// CategoryRepositoryInterface defines category operations
type CategoryRepositoryInterface interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Category, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
}

// SubjectRepositoryInterface defines subject operations
type SubjectRepositoryInterface interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Subject, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Subject, error)
	Create(ctx context.Context, s *models.Subject) error
	AddMinutes(ctx context.Context, userID, id uuid.UUID, minutes int) error
}

// DailyAggregateReader defines the read side used by dashboards and charts
type DailyAggregateReader interface {
	Latest(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error)
	ListRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.DailyAggregate, error)
}

// TimerSessionRepositoryInterface defines timer session operations
type TimerSessionRepositoryInterface interface {
	Create(ctx context.Context, s *models.TimerSession) error
	ListByTask(ctx context.Context, userID, taskID uuid.UUID) ([]*models.TimerSession, error)
}

// StudySessionRepositoryInterface defines study session operations
type StudySessionRepositoryInterface interface {
	AddMinutes(ctx context.Context, userID, subjectID uuid.UUID, day time.Time, minutes int) error
}

// UserActivityRepositoryInterface defines user activity operations
type UserActivityRepositoryInterface interface {
	UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error
	GetActiveUsersSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface         = (*TaskRepository)(nil)
	_ CategoryRepositoryInterface     = (*CategoryRepository)(nil)
	_ SubjectRepositoryInterface      = (*SubjectRepository)(nil)
	_ DailyAggregateReader            = (*DailyAggregateRepository)(nil)
	_ TimerSessionRepositoryInterface = (*TimerSessionRepository)(nil)
	_ StudySessionRepositoryInterface = (*StudySessionRepository)(nil)
	_ UserActivityRepositoryInterface = (*UserActivityRepository)(nil)

	_ productivity.AggregateStore   = (*DailyAggregateRepository)(nil)
	_ prioritizer.AssistedTaskStore = (*TaskRepository)(nil)
)
