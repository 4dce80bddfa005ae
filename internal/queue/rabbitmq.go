package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// DefaultQueueName is the default queue name
	DefaultQueueName = "taskpulse_jobs"
	// DefaultDLQName is the default dead letter queue name
	DefaultDLQName = "taskpulse_jobs_dlq"
	// DefaultExchangeName is the default exchange name
	DefaultExchangeName = "taskpulse"
	// DefaultDelayedExchangeName is the delayed exchange name (requires the delayed message plugin)
	DefaultDelayedExchangeName = "taskpulse_delayed"
	// DefaultWaitQueueName holds delayed jobs until their per-message TTL
	// dead-letters them into the jobs queue. Used without the delayed message plugin.
	DefaultWaitQueueName = "taskpulse_jobs_wait"

	jobsRoutingKey = "jobs"
	dlqRoutingKey  = "dlq"
	waitRoutingKey = "wait"

	// redeliverPause bounds how fast a delivery that cannot be deferred is requeued
	redeliverPause = time.Second
)

// RabbitMQQueue implements JobQueue using RabbitMQ
type RabbitMQQueue struct {
	conn                *amqp.Connection
	channel             *amqp.Channel
	mu                  sync.Mutex // guards channel
	queueName           string
	dlqName             string
	waitQueueName       string
	exchangeName        string
	delayedExchangeName string
	delayedAvailable    bool
	logger              *zap.Logger
}

var (
	_ JobQueue  = (*RabbitMQQueue)(nil)
	_ DLQPurger = (*RabbitMQQueue)(nil)
)

// NewRabbitMQQueue connects to RabbitMQ and declares the exchanges and queues
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &RabbitMQQueue{
		conn:                conn,
		channel:             ch,
		queueName:           DefaultQueueName,
		dlqName:             DefaultDLQName,
		waitQueueName:       DefaultWaitQueueName,
		exchangeName:        DefaultExchangeName,
		delayedExchangeName: DefaultDelayedExchangeName,
		logger:              logger,
	}

	if err := q.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return q, nil
}

func (q *RabbitMQQueue) setup() error {
	err := q.channel.ExchangeDeclare(
		q.delayedExchangeName,
		"x-delayed-message",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	)
	if err != nil {
		// A failed declare closes the channel.
		if q.channel.IsClosed() {
			newCh, openErr := q.conn.Channel()
			if openErr != nil {
				return fmt.Errorf("failed to reopen channel after delayed exchange error: %w", openErr)
			}
			q.channel = newCh
		}
		q.logger.Warn("delayed_exchange_unavailable", zap.Error(err))
	} else {
		q.delayedAvailable = true
	}

	if err := q.channel.ExchangeDeclare(q.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := q.channel.QueueDeclare(q.dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err := q.channel.QueueBind(q.dlqName, dlqRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	if _, err := q.channel.QueueDeclare(q.queueName, true, false, false, false, queueArgs); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := q.channel.QueueBind(q.queueName, jobsRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}
	if q.delayedAvailable {
		if err := q.channel.QueueBind(q.queueName, jobsRoutingKey, q.delayedExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to delayed exchange: %w", err)
		}
		return nil
	}

	// No consumer reads the wait queue; expired messages move to the jobs queue.
	waitArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": jobsRoutingKey,
	}
	if _, err := q.channel.QueueDeclare(q.waitQueueName, true, false, false, false, waitArgs); err != nil {
		return fmt.Errorf("failed to declare wait queue: %w", err)
	}
	if err := q.channel.QueueBind(q.waitQueueName, waitRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind wait queue: %w", err)
	}
	return nil
}

// Enqueue adds a job to the queue. A job with a future NotBefore goes through
// the delayed exchange when the plugin is present and the wait queue otherwise.
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	exchange, routingKey, publishing, err := q.publishing(job, time.Now())
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.channel.PublishWithContext(ctx, exchange, routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// publishing decides where job is published and builds the message
func (q *RabbitMQQueue) publishing(job *Job, now time.Time) (string, string, amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", "", amqp.Publishing{}, fmt.Errorf("failed to marshal job: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
		Type:         string(job.Type),
	}

	if job.NotAfter != nil {
		if ttl := job.NotAfter.Sub(now); ttl > 0 {
			publishing.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}
	}

	if job.NotBefore == nil {
		return q.exchangeName, jobsRoutingKey, publishing, nil
	}
	delay := job.NotBefore.Sub(now)
	switch {
	case delay <= 0:
		return q.exchangeName, jobsRoutingKey, publishing, nil
	case q.delayedAvailable:
		publishing.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
		return q.delayedExchangeName, jobsRoutingKey, publishing, nil
	default:
		// Dead-lettering strips the expiration, so the TTL only governs the wait.
		// NotAfter is still enforced by the consumer.
		publishing.Expiration = strconv.FormatInt(max(delay.Milliseconds(), 1), 10)
		return q.exchangeName, waitRoutingKey, publishing, nil
	}
}

// Consume returns a channel of messages using async delivery on a dedicated channel
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- errors.New("delivery channel closed")
					return
				}

				var job Job
				if err := json.Unmarshal(delivery.Body, &job); err != nil {
					_ = delivery.Nack(false, false)
					q.logger.Error("failed_to_unmarshal_job", zap.Error(err), zap.String("message_id", delivery.MessageId))
					continue
				}

				if job.IsExpired() {
					_ = delivery.Ack(false)
					q.logger.Info("dropped_expired_job", zap.String("job_id", job.ID.String()))
					continue
				}

				if !job.ShouldProcess() {
					q.deferDelivery(ctx, delivery, &job)
					continue
				}

				msg := &Message{Job: &job, DeliveryTag: delivery.DeliveryTag, Channel: consumeCh}
				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// deferDelivery re-publishes a job that arrived before its NotBefore so it
// waits in the broker instead of cycling through the consumer
func (q *RabbitMQQueue) deferDelivery(ctx context.Context, delivery amqp.Delivery, job *Job) {
	if err := q.Enqueue(ctx, job); err != nil {
		q.logger.Warn("failed_to_defer_job", zap.String("job_id", job.ID.String()), zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(redeliverPause):
		}
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

// PurgeOlderThan removes dead-lettered messages published more than retention
// ago. The DLQ is FIFO, so purging stops at the first younger message.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return 0, fmt.Errorf("failed to open purge channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	cutoff := time.Now().Add(-retention)
	purged := 0
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}

		msg, ok, err := ch.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			return purged, nil
		}

		if msg.Timestamp.IsZero() || msg.Timestamp.Before(cutoff) {
			if err := msg.Ack(false); err != nil {
				return purged, fmt.Errorf("failed to ack DLQ message: %w", err)
			}
			purged++
			continue
		}

		if err := msg.Nack(false, true); err != nil {
			return purged, fmt.Errorf("failed to requeue DLQ message: %w", err)
		}
		return purged, nil
	}
}

// HealthCheck verifies the connection and publishing channel are open
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.channel == nil || q.channel.IsClosed() {
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
