package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/middleware"
	"github.com/benvon/taskpulse/internal/models"
)

var errStore = errors.New("store unavailable")

type fakeTaskRepo struct {
	mu        sync.Mutex
	tasks     map[uuid.UUID]*models.Task
	createErr error
	updateErr error
	listErr   error
}

func newFakeTaskRepo(tasks ...*models.Task) *fakeTaskRepo {
	r := &fakeTaskRepo{tasks: make(map[uuid.UUID]*models.Task)}
	for _, t := range tasks {
		r.tasks[t.ID] = t
	}
	return r
}

func (r *fakeTaskRepo) get(id uuid.UUID) *models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (r *fakeTaskRepo) Create(_ context.Context, task *models.Task) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, database.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) ListByUser(_ context.Context, userID uuid.UUID, filter database.TaskFilter, _, _ int) ([]*models.Task, int, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Task, 0)
	for _, t := range r.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.CategoryID != nil && t.CategoryID != *filter.CategoryID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, len(out), nil
}

func (r *fakeTaskRepo) UpdateFromStatus(_ context.Context, task *models.Task, from models.TaskStatus) (bool, error) {
	if r.updateErr != nil {
		return false, r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok || existing.UserID != task.UserID || existing.Status != from {
		return false, nil
	}
	cp := *task
	r.tasks[task.ID] = &cp
	return true, nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return database.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) AddTimeSpent(_ context.Context, userID, taskID uuid.UUID, minutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok || t.UserID != userID {
		return database.ErrNotFound
	}
	t.TimeSpentMinutes += minutes
	return nil
}

func (r *fakeTaskRepo) CountByStatus(_ context.Context, userID uuid.UUID) (map[models.TaskStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.TaskStatus]int{}
	for _, t := range r.tasks {
		if t.UserID == userID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (r *fakeTaskRepo) CountCompletedSince(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if t.UserID == userID && t.CompletedAt != nil && !t.CompletedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeCategoryRepo struct {
	mu         sync.Mutex
	categories []*models.Category
}

func (r *fakeCategoryRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Category, 0)
	for _, c := range r.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCategoryRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.categories {
		if c.ID == id && c.UserID == userID {
			return c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *fakeCategoryRepo) Create(_ context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.categories {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return database.ErrConflict
		}
	}
	c.ID = uuid.New()
	r.categories = append(r.categories, c)
	return nil
}

type fakeSubjectRepo struct {
	mu       sync.Mutex
	subjects []*models.Subject
	addErr   error
}

func (r *fakeSubjectRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Subject, 0)
	for _, s := range r.subjects {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubjectRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*models.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subjects {
		if s.ID == id && s.UserID == userID {
			return s, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *fakeSubjectRepo) Create(_ context.Context, s *models.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.subjects {
		if existing.UserID == s.UserID && existing.Name == s.Name {
			return database.ErrConflict
		}
	}
	s.ID = uuid.New()
	r.subjects = append(r.subjects, s)
	return nil
}

func (r *fakeSubjectRepo) AddMinutes(_ context.Context, userID, id uuid.UUID, minutes int) error {
	if r.addErr != nil {
		return r.addErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subjects {
		if s.ID == id && s.UserID == userID {
			s.TotalMinutes += minutes
			return nil
		}
	}
	return database.ErrNotFound
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions []*models.TimerSession
}

func (r *fakeSessionRepo) Create(_ context.Context, s *models.TimerSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New()
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *fakeSessionRepo) ListByTask(_ context.Context, userID, taskID uuid.UUID) ([]*models.TimerSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.TimerSession, 0)
	for _, s := range r.sessions {
		if s.UserID == userID && s.TaskID == taskID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeStudyRepo struct {
	mu      sync.Mutex
	minutes map[string]int
}

func (r *fakeStudyRepo) AddMinutes(_ context.Context, _, subjectID uuid.UUID, day time.Time, minutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.minutes == nil {
		r.minutes = make(map[string]int)
	}
	r.minutes[subjectID.String()+"/"+models.DayKey(day)] += minutes
	return nil
}

func (r *fakeStudyRepo) get(subjectID uuid.UUID, day time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minutes[subjectID.String()+"/"+models.DayKey(day)]
}

type fakeAggregates struct {
	rows []models.DailyAggregate
	err  error
}

func (f *fakeAggregates) Latest(_ context.Context, userID uuid.UUID) (*models.DailyAggregate, error) {
	if f.err != nil {
		return nil, f.err
	}
	var latest *models.DailyAggregate
	for i := range f.rows {
		row := f.rows[i]
		if row.UserID == userID && (latest == nil || row.Day.After(latest.Day)) {
			latest = &row
		}
	}
	if latest == nil {
		return nil, database.ErrNotFound
	}
	return latest, nil
}

func (f *fakeAggregates) ListRange(_ context.Context, userID uuid.UUID, from, to time.Time) ([]models.DailyAggregate, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.DailyAggregate, 0)
	for _, row := range f.rows {
		key := models.DayKey(row.Day)
		if row.UserID == userID && key >= models.DayKey(from) && key <= models.DayKey(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

type mockEvents struct {
	mu            sync.Mutex
	created       int
	completed     int
	createdFunc   func(ctx context.Context, userID uuid.UUID) error
	completedFunc func(ctx context.Context, userID uuid.UUID) error
	recalcFunc    func(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error)
}

func (m *mockEvents) TaskCreated(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	m.created++
	m.mu.Unlock()
	if m.createdFunc != nil {
		return m.createdFunc(ctx, userID)
	}
	return nil
}

func (m *mockEvents) TaskCompleted(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	m.completed++
	m.mu.Unlock()
	if m.completedFunc != nil {
		return m.completedFunc(ctx, userID)
	}
	return nil
}

func (m *mockEvents) Recalculate(ctx context.Context, userID uuid.UUID) (*models.DailyAggregate, error) {
	if m.recalcFunc != nil {
		return m.recalcFunc(ctx, userID)
	}
	return &models.DailyAggregate{UserID: userID}, nil
}

func (m *mockEvents) counts() (created, completed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created, m.completed
}

// serve routes req through register and returns the recorded response.
// A nil user sends the request unauthenticated.
func serve(t *testing.T, register func(*mux.Router), user *models.User, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(middleware.SetUserInContext(req.Context(), user))
	}

	router := mux.NewRouter()
	register(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// envelope decodes the response envelope, unmarshalling data into dst when non-nil
func envelope(t *testing.T, rec *httptest.ResponseRecorder, dst any) map[string]any {
	t.Helper()

	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	if dst != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, dst); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
	}
	return map[string]any{"success": raw.Success, "error": raw.Error, "message": raw.Message}
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Email: "user@example.com"}
}

func ptr[T any](v T) *T {
	return &v
}
