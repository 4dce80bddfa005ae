package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/queue"
)

// ActiveUserLister returns users who used the API since a point in time
type ActiveUserLister interface {
	GetActiveUsersSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// Scheduler periodically enqueues productivity recomputes for recently active
// users so cached streaks and scores roll over at day boundaries.
type Scheduler struct {
	jobs     queue.Enqueuer
	activity ActiveUserLister
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewScheduler creates a scheduler that runs every interval and targets users
// seen within window
func NewScheduler(jobs queue.Enqueuer, activity ActiveUserLister, interval, window time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:     jobs,
		activity: activity,
		interval: interval,
		window:   window,
		now:      time.Now,
		logger:   logger,
	}
}

// Start schedules once immediately and then on every tick until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.ScheduleRecomputeJobs(ctx); err != nil {
		s.logger.Error("failed_to_schedule_recompute_jobs", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.ScheduleRecomputeJobs(ctx); err != nil {
				s.logger.Error("failed_to_schedule_recompute_jobs", zap.Error(err))
			}
		}
	}
}

// ScheduleRecomputeJobs enqueues one recompute job per active user and returns
// how many were published. A failed publish is logged and skipped.
func (s *Scheduler) ScheduleRecomputeJobs(ctx context.Context) (int, error) {
	now := s.now()
	users, err := s.activity.GetActiveUsersSince(ctx, now.Add(-s.window))
	if err != nil {
		return 0, fmt.Errorf("failed to get active users: %w", err)
	}

	// A job still queued when the next round starts is superseded by it.
	notAfter := now.Add(s.interval)
	scheduled := 0
	for _, userID := range users {
		job := queue.NewJob(queue.JobTypeRecomputeProductivity, userID)
		job.Metadata["reason"] = "scheduled"
		job.NotAfter = &notAfter

		if err := s.jobs.Enqueue(ctx, job); err != nil {
			s.logger.Warn("failed_to_schedule_recompute_job",
				zap.String("user_id", userID.String()),
				zap.Error(err))
			continue
		}
		scheduled++
	}

	s.logger.Info("scheduled_recompute_jobs",
		zap.Int("user_count", len(users)),
		zap.Int("scheduled", scheduled))
	return scheduled, nil
}
