package queue

import (
	"context"
	"time"
)

// MessageInterface defines the interface for queue messages
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// Enqueuer publishes jobs. Producers depend on this rather than the full queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// JobQueue is the interface for job queues
type JobQueue interface {
	Enqueuer

	// Consume returns a channel of messages from the queue. The caller must
	// acknowledge each message. prefetchCount bounds unacknowledged messages
	// per consumer. Both channels close when ctx is cancelled or delivery stops.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered messages older than a retention period
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
