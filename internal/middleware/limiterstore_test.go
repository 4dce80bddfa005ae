package middleware

import (
	"context"
	"testing"

	"github.com/ulule/limiter/v3"
)

func TestNewLimiterStore_Memory(t *testing.T) {
	t.Parallel()

	store, err := NewLimiterStore("")
	if err != nil {
		t.Fatalf("NewLimiterStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if store.Shared() {
		t.Error("Expected an in-memory store")
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	rate, err := limiter.NewRateFromFormatted("2-M")
	if err != nil {
		t.Fatalf("NewRateFromFormatted() error = %v", err)
	}
	lim := limiter.New(store, rate)
	for i := range 3 {
		c, err := lim.Get(context.Background(), "203.0.113.7")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if wantReached := i == 2; c.Reached != wantReached {
			t.Errorf("request %d: reached = %v, want %v", i+1, c.Reached, wantReached)
		}
	}
}

func TestNewLimiterStore_InvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := NewLimiterStore("not-a-redis-url"); err == nil {
		t.Error("Expected an error for an invalid Redis URL")
	}
}
