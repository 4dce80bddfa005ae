package queue

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeRecomputeProductivity refreshes a user's cached streak and score
	JobTypeRecomputeProductivity JobType = "recompute_productivity"
	// JobTypeAIPrioritize re-ranks a user's open tasks with the language model
	JobTypeAIPrioritize JobType = "ai_prioritize"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID      `json:"id"`
	Type       JobType        `json:"type"`
	UserID     uuid.UUID      `json:"user_id"`
	NotBefore  *time.Time     `json:"not_before,omitempty"` // earliest processing time, nil = immediate
	NotAfter   *time.Time     `json:"not_after,omitempty"`  // latest processing time, nil = no expiry
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// RetryDelay is the backoff before the next attempt: 2^RetryCount seconds, capped at five minutes
func (j *Job) RetryDelay() time.Duration {
	d := time.Duration(math.Pow(2, float64(j.RetryCount))) * time.Second
	if d > 5*time.Minute || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Reason returns the metadata "reason" entry, if any
func (j *Job) Reason() string {
	if j.Metadata == nil {
		return ""
	}
	s, _ := j.Metadata["reason"].(string)
	return s
}
