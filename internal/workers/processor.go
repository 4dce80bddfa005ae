package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/prioritizer"
	"github.com/benvon/taskpulse/internal/queue"
	"github.com/benvon/taskpulse/internal/services/ai"
	"github.com/benvon/taskpulse/internal/telemetry"
)

// ErrUnknownJobType is returned for jobs no handler is registered for
var ErrUnknownJobType = errors.New("unknown job type")

// ErrAssistedDisabled is returned for ai_prioritize jobs when no model is configured
var ErrAssistedDisabled = errors.New("assisted prioritization is not configured")

// Recalculator recomputes a user's cached streak and score
type Recalculator interface {
	Recalculate(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error)
}

// Processor executes queued jobs
type Processor struct {
	recalc   Recalculator
	assisted prioritizer.Strategy
	jobs     queue.Enqueuer
	now      func() time.Time
	logger   *zap.Logger
}

// NewProcessor creates a processor. assisted may be nil when no model is
// configured; jobs may be nil, in which case failed jobs are dead-lettered
// instead of retried.
func NewProcessor(recalc Recalculator, assisted prioritizer.Strategy, jobs queue.Enqueuer, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		recalc:   recalc,
		assisted: assisted,
		jobs:     jobs,
		now:      time.Now,
		logger:   logger,
	}
}

// ProcessJob runs one message and settles it with the broker
func (p *Processor) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	ctx, span := telemetry.StartSpan(ctx, "job.process",
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.type", string(job.Type)),
		attribute.Int("job.retry_count", job.RetryCount))
	defer span.End()

	err := p.run(ctx, job)
	telemetry.RecordError(span, err)
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil
	}

	if !retryable(err) {
		p.logger.Error("job_failed_permanently",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Error(err))
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
		}
		return fmt.Errorf("job %s failed: %w", job.ID, err)
	}

	return p.handleJobError(ctx, msg, job, err)
}

func (p *Processor) run(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeRecomputeProductivity:
		agg, err := p.recalc.Recalculate(ctx, job.UserID)
		if err != nil {
			return err
		}
		p.logger.Info("recomputed_productivity",
			zap.String("user_id", job.UserID.String()),
			zap.String("reason", job.Reason()),
			zap.Int("streak_days", agg.StreakDays),
			zap.Int("productivity_score", agg.ProductivityScore))
		return nil

	case queue.JobTypeAIPrioritize:
		if p.assisted == nil {
			return ErrAssistedDisabled
		}
		updates, err := p.assisted.Prioritize(ctx, job.UserID)
		if err != nil {
			return err
		}
		p.logger.Info("assisted_prioritization_applied",
			zap.String("user_id", job.UserID.String()),
			zap.Int("updated", len(updates)))
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	}
}

// handleJobError re-publishes the job with a delay while retries remain and
// dead-letters it afterwards
func (p *Processor) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if !job.CanRetry() {
		p.logger.Error("job_failed_max_retries",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err))
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (max retries): %w", err)
	}

	if p.jobs == nil {
		p.logger.Error("job_failed_no_retry_queue",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Error(err))
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (no retry queue): %w", err)
	}

	delay := p.retryDelay(job, err)
	notBefore := p.now().Add(delay)
	delayed := *job
	delayed.NotBefore = &notBefore
	delayed.RetryCount = job.RetryCount + 1

	if enqueueErr := p.jobs.Enqueue(ctx, &delayed); enqueueErr != nil {
		p.logger.Warn("failed_to_reenqueue_job",
			zap.String("job_id", job.ID.String()),
			zap.Error(enqueueErr))
		if nackErr := msg.Nack(true); nackErr != nil {
			p.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue job: %w", errors.Join(err, enqueueErr))
	}

	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Warn("failed_to_ack_retried_job", zap.Error(ackErr))
	}

	p.logger.Warn("job_retry_scheduled",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("attempt", delayed.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Duration("delay", delay),
		zap.Error(err))
	return fmt.Errorf("job failed (will retry): %w", err)
}

func (p *Processor) retryDelay(job *queue.Job, err error) time.Duration {
	if job.Type == queue.JobTypeAIPrioritize && (ai.IsRateLimitError(err) || ai.IsQuotaError(err)) {
		return ai.GetRetryDelay(err, job.RetryCount)
	}
	return job.RetryDelay()
}

func retryable(err error) bool {
	return !errors.Is(err, ErrUnknownJobType) && !errors.Is(err, ErrAssistedDisabled)
}
