package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the workflow state of a task
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task priorities. Higher is more urgent.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
	PriorityUrgent = 4

	MinPriority = PriorityLow
	MaxPriority = PriorityUrgent
)

// ValidPriority reports whether p is inside [MinPriority, MaxPriority]
func ValidPriority(p int) bool {
	return p >= MinPriority && p <= MaxPriority
}

// Task represents a user's task
type Task struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	CategoryID       uuid.UUID  `json:"category_id"`
	SubjectID        *uuid.UUID `json:"subject_id,omitempty"`
	Title            string     `json:"title"`
	Description      *string    `json:"description,omitempty"`
	Status           TaskStatus `json:"status"`
	Priority         int        `json:"priority"`
	AIPriority       *int       `json:"ai_priority,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	TimeSpentMinutes int        `json:"time_spent_minutes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`

	// Category is populated by queries that join the owning category.
	Category *Category `json:"category,omitempty"`
	Subject  *Subject  `json:"subject,omitempty"`
}

// IsCompleted reports whether the task is in the completed state
func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// CategoryName returns the joined category name, or "" when the category was not loaded
func (t *Task) CategoryName() string {
	if t.Category == nil {
		return ""
	}
	return t.Category.Name
}

// PriorityUpdate reports a priority change applied to a task
type PriorityUpdate struct {
	TaskID      uuid.UUID `json:"task_id"`
	Title       string    `json:"title"`
	OldPriority int       `json:"old_priority"`
	NewPriority int       `json:"new_priority"`
	Reason      string    `json:"reason,omitempty"`
}
