package models

import (
	"time"

	"github.com/google/uuid"
)

// DayLayout is the storage format of a calendar day
const DayLayout = "2006-01-02"

// DailyAggregate is the per-user, per-calendar-day productivity record.
// Counters only ever grow; StreakDays and ProductivityScore are recomputed.
type DailyAggregate struct {
	UserID            uuid.UUID `json:"user_id"`
	Day               time.Time `json:"day"`
	TasksCreated      int       `json:"tasks_created"`
	TasksCompleted    int       `json:"tasks_completed"`
	StreakDays        int       `json:"streak_days"`
	ProductivityScore int       `json:"productivity_score"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Qualifies reports whether the day counts towards a streak
func (a DailyAggregate) Qualifies() bool {
	return a.TasksCompleted > 0
}

// DayKey formats a calendar day for storage and comparison
func DayKey(day time.Time) string {
	return day.Format(DayLayout)
}
