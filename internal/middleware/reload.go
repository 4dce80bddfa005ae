package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// reloadable swaps its wrapped handler whenever build produces a new one.
// CORS and rate limiting both hot-reload their settings from the database this way.
type reloadable struct {
	build    func(ctx context.Context, next http.Handler) http.Handler
	interval time.Duration

	mu      sync.RWMutex
	next    http.Handler
	current http.Handler
}

func (h *reloadable) wrap(next http.Handler) http.Handler {
	h.mu.Lock()
	h.next = next
	h.mu.Unlock()
	h.reload(context.Background())
	return h
}

func (h *reloadable) reload(ctx context.Context) {
	h.mu.RLock()
	next := h.next
	h.mu.RUnlock()
	if next == nil {
		return
	}
	built := h.build(ctx, next)
	if built == nil {
		return
	}
	h.mu.Lock()
	h.current = built
	h.mu.Unlock()
}

// Start reloads on every tick until ctx is cancelled. Call after the middleware is applied.
func (h *reloadable) Start(ctx context.Context) {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reload(ctx)
		}
	}
}

func (h *reloadable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current, next := h.current, h.next
	h.mu.RUnlock()
	if current != nil {
		current.ServeHTTP(w, r)
		return
	}
	if next != nil {
		next.ServeHTTP(w, r)
	}
}
