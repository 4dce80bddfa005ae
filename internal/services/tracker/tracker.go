// Package tracker records task lifecycle events on the productivity
// aggregates and keeps the cached streak and score current.
package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/queue"
)

// Recorder is the productivity updater the tracker drives
type Recorder interface {
	RecordTaskCreated(ctx context.Context, userID uuid.UUID) error
	RecordTaskCompleted(ctx context.Context, userID uuid.UUID) error
	RecomputeDerived(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error)
}

// Service records task events. Counter failures are returned to the caller;
// the recompute that follows is best effort and never fails the event.
type Service struct {
	recorder Recorder
	jobs     queue.Enqueuer
	logger   *zap.Logger
}

// New creates a tracker. jobs may be nil, in which case failed recomputes
// are only logged.
func New(recorder Recorder, jobs queue.Enqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{recorder: recorder, jobs: jobs, logger: logger}
}

// TaskCreated records a new task for today
func (s *Service) TaskCreated(ctx context.Context, userID uuid.UUID) error {
	if err := s.recorder.RecordTaskCreated(ctx, userID); err != nil {
		return err
	}
	s.refresh(ctx, userID)
	return nil
}

// TaskCompleted records a task entering the completed state today
func (s *Service) TaskCompleted(ctx context.Context, userID uuid.UUID) error {
	if err := s.recorder.RecordTaskCompleted(ctx, userID); err != nil {
		return err
	}
	s.refresh(ctx, userID)
	return nil
}

// Recalculate recomputes today's streak and score on request. Unlike the
// implicit recompute, failures are returned.
func (s *Service) Recalculate(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error) {
	return s.recorder.RecomputeDerived(ctx, userID)
}

func (s *Service) refresh(ctx context.Context, userID uuid.UUID) {
	if _, err := s.recorder.RecomputeDerived(ctx, userID); err != nil {
		s.logger.Warn("failed_to_recompute_productivity",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		s.enqueueRecompute(ctx, userID)
	}
}

func (s *Service) enqueueRecompute(ctx context.Context, userID uuid.UUID) {
	if s.jobs == nil {
		return
	}

	// The request may already be finishing; the job should still be published.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	job := queue.NewJob(queue.JobTypeRecomputeProductivity, userID)
	job.Metadata["reason"] = "inline_recompute_failed"
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.logger.Error("failed_to_enqueue_recompute",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}
