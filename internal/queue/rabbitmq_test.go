package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPublishingRoutesDelayedJobs(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name             string
		delayedAvailable bool
		notBefore        *time.Time
		notAfter         *time.Time
		wantExchange     string
		wantRoutingKey   string
		wantExpiration   string
		wantDelayHeader  int64
	}{
		{name: "immediate job", wantExchange: DefaultExchangeName, wantRoutingKey: jobsRoutingKey},
		{
			name:           "due job ignores past not-before",
			notBefore:      timePtr(now.Add(-time.Minute)),
			wantExchange:   DefaultExchangeName,
			wantRoutingKey: jobsRoutingKey,
		},
		{
			name:             "delayed exchange when the plugin is present",
			delayedAvailable: true,
			notBefore:        timePtr(now.Add(4 * time.Second)),
			wantExchange:     DefaultDelayedExchangeName,
			wantRoutingKey:   jobsRoutingKey,
			wantDelayHeader:  4000,
		},
		{
			name:           "wait queue without the plugin",
			notBefore:      timePtr(now.Add(4 * time.Second)),
			notAfter:       timePtr(now.Add(time.Hour)),
			wantExchange:   DefaultExchangeName,
			wantRoutingKey: waitRoutingKey,
			wantExpiration: "4000",
		},
		{
			name:           "expiring job",
			notAfter:       timePtr(now.Add(time.Minute)),
			wantExchange:   DefaultExchangeName,
			wantRoutingKey: jobsRoutingKey,
			wantExpiration: "60000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := &RabbitMQQueue{
				exchangeName:        DefaultExchangeName,
				delayedExchangeName: DefaultDelayedExchangeName,
				delayedAvailable:    tt.delayedAvailable,
			}
			job := NewJob(JobTypeRecomputeProductivity, uuid.New())
			job.NotBefore = tt.notBefore
			job.NotAfter = tt.notAfter

			exchange, routingKey, pub, err := q.publishing(job, now)
			if err != nil {
				t.Fatalf("publishing() error = %v", err)
			}
			if exchange != tt.wantExchange || routingKey != tt.wantRoutingKey {
				t.Errorf("Expected %s/%s, got %s/%s", tt.wantExchange, tt.wantRoutingKey, exchange, routingKey)
			}
			if pub.Expiration != tt.wantExpiration {
				t.Errorf("Expected expiration %q, got %q", tt.wantExpiration, pub.Expiration)
			}
			delay, _ := pub.Headers["x-delay"].(int64)
			if delay != tt.wantDelayHeader {
				t.Errorf("Expected x-delay %d, got %d", tt.wantDelayHeader, delay)
			}

			var decoded Job
			if err := json.Unmarshal(pub.Body, &decoded); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if decoded.ID != job.ID || pub.MessageId != job.ID.String() {
				t.Errorf("Expected body and message id for job %s", job.ID)
			}
		})
	}
}
