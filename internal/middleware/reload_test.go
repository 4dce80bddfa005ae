package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
)

type mockCORSSource struct {
	mu  sync.Mutex
	cfg *models.CorsConfig
	err error
}

func (m *mockCORSSource) Get(context.Context) (*models.CorsConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, m.err
}

type mockRateStore struct {
	mu    sync.Mutex
	cfg   *models.RatelimitConfig
	saved []string
}

func (m *mockRateStore) Get(context.Context) (*models.RatelimitConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return nil, database.ErrNotFound
	}
	return m.cfg, nil
}

func (m *mockRateStore) Set(_ context.Context, c *models.RatelimitConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, c.Rate)
	return nil
}

func preflight(handler http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCORSReloader(t *testing.T) {
	t.Parallel()

	source := &mockCORSSource{err: database.ErrNotFound}
	reloader := NewCORSReloader(source, "https://app.example.com", zap.NewNop(), 0)
	handler := reloader.Middleware()(okHandler)

	if got := preflight(handler, "https://app.example.com").Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Expected fallback origin to be allowed, got %q", got)
	}

	source.mu.Lock()
	source.cfg, source.err = &models.CorsConfig{AllowedOrigins: "https://new.example.com", MaxAge: 60}, nil
	source.mu.Unlock()
	reloader.reload(context.Background())

	if got := preflight(handler, "https://new.example.com").Header().Get("Access-Control-Allow-Origin"); got != "https://new.example.com" {
		t.Errorf("Expected reloaded origin to be allowed, got %q", got)
	}
	if got := preflight(handler, "https://app.example.com").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected old origin to be rejected, got %q", got)
	}
}

func TestCORSReloader_SourceErrorUsesFallback(t *testing.T) {
	t.Parallel()

	reloader := NewCORSReloader(&mockCORSSource{err: errors.New("db down")}, "", zap.NewNop(), 0)
	handler := reloader.Middleware()(okHandler)
	if got := preflight(handler, defaultCORSOrigin).Header().Get("Access-Control-Allow-Origin"); got != defaultCORSOrigin {
		t.Errorf("Expected default origin, got %q", got)
	}
}

func TestRateLimitReloader(t *testing.T) {
	t.Parallel()

	store := &mockRateStore{}
	reloader := NewRateLimitReloader(memory.NewStore(), store, "2-M", zap.NewNop(), 0)
	handler := reloader.Middleware()(okHandler)

	if len(store.saved) != 1 || store.saved[0] != "2-M" {
		t.Fatalf("Expected default rate to be seeded, got %v", store.saved)
	}

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: expected %d, got %d", i, want[i], codes[i])
		}
	}

	store.mu.Lock()
	store.cfg = &models.RatelimitConfig{Rate: "100-M"}
	store.mu.Unlock()
	reloader.reload(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.RemoteAddr = "10.0.0.8:5555"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected new client under raised rate to pass, got %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("Expected limit header 100, got %q", got)
	}
}
