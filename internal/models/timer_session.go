package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionType distinguishes focus time from breaks
type SessionType string

const (
	SessionTypeWork       SessionType = "work"
	SessionTypeShortBreak SessionType = "short_break"
	SessionTypeLongBreak  SessionType = "long_break"
)

// TimerSession is a finished Pomodoro interval attached to a task
type TimerSession struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	TaskID          uuid.UUID   `json:"task_id"`
	SessionType     SessionType `json:"session_type"`
	DurationMinutes int         `json:"duration_minutes"`
	StartedAt       time.Time   `json:"started_at"`
	EndedAt         time.Time   `json:"ended_at"`
	CreatedAt       time.Time   `json:"created_at"`
}

// StudySession accumulates focused minutes per user, subject and day
type StudySession struct {
	UserID          uuid.UUID `json:"user_id"`
	SubjectID       uuid.UUID `json:"subject_id"`
	Day             time.Time `json:"day"`
	DurationMinutes int       `json:"duration_minutes"`
}
