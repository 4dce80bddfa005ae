package workers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/prioritizer"
	"github.com/benvon/taskpulse/internal/queue"
	"github.com/benvon/taskpulse/internal/services/ai"
)

var errStore = errors.New("store unavailable")

type mockMessage struct {
	job     *queue.Job
	acked   int
	nacked  int
	requeue bool
}

func (m *mockMessage) Ack() error { m.acked++; return nil }

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked++
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job { return m.job }

type mockRecalculator struct {
	recalcFunc func(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error)
	calls      int
}

func (m *mockRecalculator) Recalculate(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error) {
	m.calls++
	if m.recalcFunc != nil {
		return m.recalcFunc(ctx, userID)
	}
	return &models.DailyAggregate{UserID: userID, StreakDays: 2, ProductivityScore: 40}, nil
}

type mockStrategy struct {
	prioritizeFunc func(ctx context.Context, userID uuid.UUID) ([]models.PriorityUpdate, error)
}

func (m *mockStrategy) Name() string { return prioritizer.StrategyAI }

func (m *mockStrategy) Prioritize(ctx context.Context, userID uuid.UUID) ([]models.PriorityUpdate, error) {
	return m.prioritizeFunc(ctx, userID)
}

type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (m *mockEnqueuer) Enqueue(_ context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func TestProcessJob_Success(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	recalc := &mockRecalculator{}
	var prioritized uuid.UUID
	assisted := &mockStrategy{prioritizeFunc: func(_ context.Context, id uuid.UUID) ([]models.PriorityUpdate, error) {
		prioritized = id
		return []models.PriorityUpdate{{TaskID: uuid.New(), NewPriority: 3}}, nil
	}}
	p := NewProcessor(recalc, assisted, &mockEnqueuer{}, nil)

	for _, jobType := range []queue.JobType{queue.JobTypeRecomputeProductivity, queue.JobTypeAIPrioritize} {
		msg := &mockMessage{job: queue.NewJob(jobType, userID)}
		if err := p.ProcessJob(context.Background(), msg); err != nil {
			t.Fatalf("ProcessJob(%s) error = %v", jobType, err)
		}
		if msg.acked != 1 || msg.nacked != 0 {
			t.Errorf("Expected %s to be acked once, got acked=%d nacked=%d", jobType, msg.acked, msg.nacked)
		}
	}
	if recalc.calls != 1 {
		t.Errorf("Expected 1 recalculation, got %d", recalc.calls)
	}
	if prioritized != userID {
		t.Errorf("Expected assisted prioritization for %s, got %s", userID, prioritized)
	}
}

func TestProcessJob_PermanentFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		jobType  queue.JobType
		assisted prioritizer.Strategy
		wantErr  error
	}{
		{name: "unknown job type", jobType: "reindex", wantErr: ErrUnknownJobType},
		{name: "assisted not configured", jobType: queue.JobTypeAIPrioritize, wantErr: ErrAssistedDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			jobs := &mockEnqueuer{}
			p := NewProcessor(&mockRecalculator{}, tt.assisted, jobs, nil)
			msg := &mockMessage{job: queue.NewJob(tt.jobType, uuid.New())}

			err := p.ProcessJob(context.Background(), msg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if msg.nacked != 1 || msg.requeue || msg.acked != 0 {
				t.Errorf("Expected dead-letter nack, got acked=%d nacked=%d requeue=%v", msg.acked, msg.nacked, msg.requeue)
			}
			if len(jobs.jobs) != 0 {
				t.Errorf("Expected no retries, got %d", len(jobs.jobs))
			}
		})
	}
}

func TestProcessJob_RetryWithBackoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		jobType   queue.JobType
		retries   int
		err       error
		wantDelay time.Duration
	}{
		{name: "first recompute failure", jobType: queue.JobTypeRecomputeProductivity, err: errStore, wantDelay: time.Second},
		{name: "second recompute failure", jobType: queue.JobTypeRecomputeProductivity, retries: 2, err: errStore, wantDelay: 4 * time.Second},
		{
			name:      "rate limited model",
			jobType:   queue.JobTypeAIPrioritize,
			err:       &ai.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"},
			wantDelay: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			recalc := &mockRecalculator{recalcFunc: func(context.Context, uuid.UUID) (*models.DailyAggregate, error) {
				return nil, tt.err
			}}
			assisted := &mockStrategy{prioritizeFunc: func(context.Context, uuid.UUID) ([]models.PriorityUpdate, error) {
				return nil, tt.err
			}}
			jobs := &mockEnqueuer{}
			p := NewProcessor(recalc, assisted, jobs, nil)
			p.now = func() time.Time { return now }

			job := queue.NewJob(tt.jobType, uuid.New())
			job.RetryCount = tt.retries
			msg := &mockMessage{job: job}

			if err := p.ProcessJob(context.Background(), msg); !errors.Is(err, tt.err) {
				t.Errorf("Expected wrapped %v, got %v", tt.err, err)
			}
			if msg.acked != 1 || msg.nacked != 0 {
				t.Errorf("Expected original to be acked, got acked=%d nacked=%d", msg.acked, msg.nacked)
			}
			if len(jobs.jobs) != 1 {
				t.Fatalf("Expected 1 re-enqueued job, got %d", len(jobs.jobs))
			}
			retry := jobs.jobs[0]
			if retry.ID != job.ID || retry.RetryCount != tt.retries+1 {
				t.Errorf("Expected same job with retry %d, got %s retry %d", tt.retries+1, retry.ID, retry.RetryCount)
			}
			if retry.NotBefore == nil || !retry.NotBefore.Equal(now.Add(tt.wantDelay)) {
				t.Errorf("Expected NotBefore %v, got %v", now.Add(tt.wantDelay), retry.NotBefore)
			}
			if job.RetryCount != tt.retries {
				t.Errorf("Expected original job to be untouched, got retry %d", job.RetryCount)
			}
		})
	}
}

func TestProcessJob_DeadLettersAfterMaxRetries(t *testing.T) {
	t.Parallel()

	recalc := &mockRecalculator{recalcFunc: func(context.Context, uuid.UUID) (*models.DailyAggregate, error) {
		return nil, errStore
	}}
	jobs := &mockEnqueuer{}
	p := NewProcessor(recalc, nil, jobs, nil)

	job := queue.NewJob(queue.JobTypeRecomputeProductivity, uuid.New())
	job.RetryCount = job.MaxRetries
	msg := &mockMessage{job: job}

	if err := p.ProcessJob(context.Background(), msg); !errors.Is(err, errStore) {
		t.Errorf("Expected wrapped store error, got %v", err)
	}
	if msg.nacked != 1 || msg.requeue {
		t.Errorf("Expected dead-letter nack, got nacked=%d requeue=%v", msg.nacked, msg.requeue)
	}
	if len(jobs.jobs) != 0 {
		t.Errorf("Expected no re-enqueue, got %d", len(jobs.jobs))
	}
}

func TestProcessJob_DeadLettersWithoutRetryQueue(t *testing.T) {
	t.Parallel()

	recalc := &mockRecalculator{recalcFunc: func(context.Context, uuid.UUID) (*models.DailyAggregate, error) {
		return nil, errStore
	}}
	p := NewProcessor(recalc, nil, nil, nil)

	job := queue.NewJob(queue.JobTypeRecomputeProductivity, uuid.New())
	msg := &mockMessage{job: job}

	if err := p.ProcessJob(context.Background(), msg); !errors.Is(err, errStore) {
		t.Errorf("Expected wrapped store error, got %v", err)
	}
	if msg.nacked != 1 || msg.requeue || msg.acked != 0 {
		t.Errorf("Expected dead-letter nack, got acked=%d nacked=%d requeue=%v", msg.acked, msg.nacked, msg.requeue)
	}
	if recalc.calls != 1 {
		t.Errorf("Expected one attempt, got %d", recalc.calls)
	}
}

func TestProcessJob_RequeuesWhenRepublishFails(t *testing.T) {
	t.Parallel()

	recalc := &mockRecalculator{recalcFunc: func(context.Context, uuid.UUID) (*models.DailyAggregate, error) {
		return nil, errStore
	}}
	p := NewProcessor(recalc, nil, &mockEnqueuer{err: errors.New("broker down")}, nil)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypeRecomputeProductivity, uuid.New())}

	if err := p.ProcessJob(context.Background(), msg); err == nil {
		t.Error("Expected an error")
	}
	if msg.nacked != 1 || !msg.requeue || msg.acked != 0 {
		t.Errorf("Expected requeue nack, got acked=%d nacked=%d requeue=%v", msg.acked, msg.nacked, msg.requeue)
	}
}
