package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
)

var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

type taskFixture struct {
	user       *models.User
	category   *models.Category
	subject    *models.Subject
	tasks      *fakeTaskRepo
	categories *fakeCategoryRepo
	subjects   *fakeSubjectRepo
	events     *mockEvents
	handler    *TaskHandler
}

func newTaskFixture(tasks ...*models.Task) *taskFixture {
	user := testUser()
	f := &taskFixture{
		user:     user,
		category: &models.Category{ID: uuid.New(), UserID: user.ID, Name: "Work"},
		subject:  &models.Subject{ID: uuid.New(), UserID: user.ID, Name: "Math"},
		tasks:    newFakeTaskRepo(tasks...),
		events:   &mockEvents{},
	}
	f.categories = &fakeCategoryRepo{categories: []*models.Category{f.category}}
	f.subjects = &fakeSubjectRepo{subjects: []*models.Subject{f.subject}}
	f.handler = NewTaskHandler(f.tasks, f.categories, f.subjects, f.events, nil)
	f.handler.now = func() time.Time { return fixedNow }
	return f
}

func (f *taskFixture) routes(r *mux.Router) {
	f.handler.RegisterRoutes(r.PathPrefix("/api/v1/tasks").Subrouter())
}

func (f *taskFixture) addTask(status models.TaskStatus) *models.Task {
	task := &models.Task{
		ID:         uuid.New(),
		UserID:     f.user.ID,
		CategoryID: f.category.ID,
		Title:      "Write report",
		Status:     status,
		Priority:   models.PriorityMedium,
	}
	if status == models.TaskStatusCompleted {
		done := fixedNow.Add(-time.Hour)
		task.CompletedAt = &done
	}
	_ = f.tasks.Create(context.Background(), task)
	return task
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		body          func(f *taskFixture) any
		anonymous     bool
		wantStatus    int
		wantCreated   int
		wantPriority  int
		wantSubjectID bool
	}{
		{
			name: "creates todo task and records creation",
			body: func(f *taskFixture) any {
				return map[string]any{"title": "  Write report  ", "category_id": f.category.ID, "priority": 3}
			},
			wantStatus:   http.StatusCreated,
			wantCreated:  1,
			wantPriority: 3,
		},
		{
			name: "out of range priority defaults to low",
			body: func(f *taskFixture) any {
				return map[string]any{"title": "Task", "category_id": f.category.ID, "priority": 9}
			},
			wantStatus:   http.StatusCreated,
			wantCreated:  1,
			wantPriority: models.PriorityLow,
		},
		{
			name: "attaches subject",
			body: func(f *taskFixture) any {
				return map[string]any{"title": "Task", "category_id": f.category.ID, "subject_id": f.subject.ID}
			},
			wantStatus:    http.StatusCreated,
			wantCreated:   1,
			wantPriority:  models.PriorityLow,
			wantSubjectID: true,
		},
		{
			name: "category of another user",
			body: func(*taskFixture) any {
				return map[string]any{"title": "Task", "category_id": uuid.New()}
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown subject",
			body: func(f *taskFixture) any {
				return map[string]any{"title": "Task", "category_id": f.category.ID, "subject_id": uuid.New()}
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing category",
			body: func(*taskFixture) any {
				return map[string]any{"title": "Task"}
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "blank title",
			body: func(f *taskFixture) any {
				return map[string]any{"title": "   ", "category_id": f.category.ID}
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       func(*taskFixture) any { return "{not json" },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unauthenticated",
			body:       func(f *taskFixture) any { return map[string]any{"title": "Task", "category_id": f.category.ID} },
			anonymous:  true,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newTaskFixture()
			user := f.user
			if tt.anonymous {
				user = nil
			}

			rec := serve(t, f.routes, user, http.MethodPost, "/api/v1/tasks", tt.body(f))
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if created, _ := f.events.counts(); created != tt.wantCreated {
				t.Errorf("Expected %d created events, got %d", tt.wantCreated, created)
			}
			if tt.wantStatus != http.StatusCreated {
				return
			}

			var task models.Task
			envelope(t, rec, &task)
			if task.Status != models.TaskStatusTodo {
				t.Errorf("Expected status todo, got %s", task.Status)
			}
			if task.Priority != tt.wantPriority {
				t.Errorf("Expected priority %d, got %d", tt.wantPriority, task.Priority)
			}
			if task.Category == nil || task.Category.Name != "Work" {
				t.Errorf("Expected category Work, got %+v", task.Category)
			}
			if (task.SubjectID != nil) != tt.wantSubjectID {
				t.Errorf("Expected subject set = %v, got %v", tt.wantSubjectID, task.SubjectID)
			}
			if f.tasks.get(task.ID) == nil {
				t.Error("Expected task to be stored")
			}
		})
	}
}

func TestCreateTask_EventFailureKeepsTask(t *testing.T) {
	t.Parallel()

	f := newTaskFixture()
	f.events.createdFunc = func(context.Context, uuid.UUID) error { return errStore }

	rec := serve(t, f.routes, f.user, http.MethodPost, "/api/v1/tasks",
		map[string]any{"title": "Task", "category_id": f.category.ID})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rec.Code)
	}
	tasks, _, _ := f.tasks.ListByUser(context.Background(), f.user.ID, database.TaskFilter{}, 1, 10)
	if len(tasks) != 1 {
		t.Errorf("Expected the task to stay persisted, got %d tasks", len(tasks))
	}
}

func TestUpdateTask_StatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		initial         models.TaskStatus
		status          models.TaskStatus
		wantCompleted   int
		wantCompletedAt bool
	}{
		{name: "todo to completed", initial: models.TaskStatusTodo, status: models.TaskStatusCompleted, wantCompleted: 1, wantCompletedAt: true},
		{name: "in progress to completed", initial: models.TaskStatusInProgress, status: models.TaskStatusCompleted, wantCompleted: 1, wantCompletedAt: true},
		{name: "completed to completed", initial: models.TaskStatusCompleted, status: models.TaskStatusCompleted, wantCompletedAt: true},
		{name: "completed to todo clears completed_at", initial: models.TaskStatusCompleted, status: models.TaskStatusTodo},
		{name: "todo to in progress", initial: models.TaskStatusTodo, status: models.TaskStatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newTaskFixture()
			task := f.addTask(tt.initial)

			rec := serve(t, f.routes, f.user, http.MethodPatch, "/api/v1/tasks/"+task.ID.String(),
				map[string]any{"status": tt.status})
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
			}

			stored := f.tasks.get(task.ID)
			if stored.Status != tt.status {
				t.Errorf("Expected status %s, got %s", tt.status, stored.Status)
			}
			if (stored.CompletedAt != nil) != tt.wantCompletedAt {
				t.Errorf("Expected completed_at set = %v, got %v", tt.wantCompletedAt, stored.CompletedAt)
			}
			if tt.wantCompleted == 1 && !stored.CompletedAt.Equal(fixedNow) {
				t.Errorf("Expected completed_at %v, got %v", fixedNow, stored.CompletedAt)
			}
			if _, completed := f.events.counts(); completed != tt.wantCompleted {
				t.Errorf("Expected %d completion events, got %d", tt.wantCompleted, completed)
			}
		})
	}
}

func TestUpdateTask_Fields(t *testing.T) {
	t.Parallel()

	f := newTaskFixture()
	task := f.addTask(models.TaskStatusTodo)
	other := &models.Category{ID: uuid.New(), UserID: f.user.ID, Name: "Health"}
	f.categories.categories = append(f.categories.categories, other)

	rec := serve(t, f.routes, f.user, http.MethodPatch, "/api/v1/tasks/"+task.ID.String(), map[string]any{
		"title":       "Renamed",
		"category_id": other.ID,
		"subject_id":  f.subject.ID,
		"priority":    0,
		"due_date":    fixedNow.Add(24 * time.Hour),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	stored := f.tasks.get(task.ID)
	if stored.Title != "Renamed" || stored.CategoryID != other.ID {
		t.Errorf("Expected title and category to change, got %q %s", stored.Title, stored.CategoryID)
	}
	if stored.SubjectID == nil || *stored.SubjectID != f.subject.ID {
		t.Errorf("Expected subject %s, got %v", f.subject.ID, stored.SubjectID)
	}
	if stored.Priority != models.PriorityLow {
		t.Errorf("Expected priority to default to low, got %d", stored.Priority)
	}
	if stored.DueDate == nil {
		t.Error("Expected due date to be set")
	}

	rec = serve(t, f.routes, f.user, http.MethodPatch, "/api/v1/tasks/"+task.ID.String(),
		map[string]any{"clear_subject": true, "clear_due_date": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	stored = f.tasks.get(task.ID)
	if stored.SubjectID != nil || stored.DueDate != nil {
		t.Errorf("Expected subject and due date cleared, got %v %v", stored.SubjectID, stored.DueDate)
	}
}

func TestUpdateTask_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       any
		otherUser  bool
		wantStatus int
	}{
		{name: "invalid status", body: map[string]any{"status": "done"}, wantStatus: http.StatusBadRequest},
		{name: "foreign category", body: map[string]any{"category_id": uuid.New()}, wantStatus: http.StatusBadRequest},
		{name: "empty title", body: map[string]any{"title": " "}, wantStatus: http.StatusBadRequest},
		{name: "task of another user", body: map[string]any{"title": "x"}, otherUser: true, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newTaskFixture()
			task := f.addTask(models.TaskStatusTodo)
			user := f.user
			if tt.otherUser {
				user = testUser()
			}

			rec := serve(t, f.routes, user, http.MethodPatch, "/api/v1/tasks/"+task.ID.String(), tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if stored := f.tasks.get(task.ID); stored.Status != models.TaskStatusTodo || stored.Title != "Write report" {
				t.Errorf("Expected task unchanged, got %+v", stored)
			}
		})
	}
}

func TestCompleteTask(t *testing.T) {
	t.Parallel()

	f := newTaskFixture()
	task := f.addTask(models.TaskStatusInProgress)
	target := "/api/v1/tasks/" + task.ID.String() + "/complete"

	for range 2 {
		rec := serve(t, f.routes, f.user, http.MethodPost, target, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	if _, completed := f.events.counts(); completed != 1 {
		t.Errorf("Expected exactly one completion event, got %d", completed)
	}
	stored := f.tasks.get(task.ID)
	if !stored.IsCompleted() || stored.CompletedAt == nil {
		t.Errorf("Expected completed task with completed_at, got %+v", stored)
	}
}

func TestCompleteTask_EventFailure(t *testing.T) {
	t.Parallel()

	f := newTaskFixture()
	f.events.completedFunc = func(context.Context, uuid.UUID) error { return errStore }
	task := f.addTask(models.TaskStatusTodo)

	rec := serve(t, f.routes, f.user, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/complete", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rec.Code)
	}
	if !f.tasks.get(task.ID).IsCompleted() {
		t.Error("Expected the completion to stay persisted")
	}
}

func TestGetAndDeleteTask(t *testing.T) {
	t.Parallel()

	f := newTaskFixture()
	task := f.addTask(models.TaskStatusTodo)
	target := "/api/v1/tasks/" + task.ID.String()

	if rec := serve(t, f.routes, testUser(), http.MethodGet, target, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another user's task, got %d", rec.Code)
	}
	if rec := serve(t, f.routes, f.user, http.MethodGet, "/api/v1/tasks/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed id, got %d", rec.Code)
	}

	rec := serve(t, f.routes, f.user, http.MethodGet, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var got models.Task
	envelope(t, rec, &got)
	if got.ID != task.ID {
		t.Errorf("Expected task %s, got %s", task.ID, got.ID)
	}

	if rec := serve(t, f.routes, f.user, http.MethodDelete, target, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rec.Code)
	}
	if rec := serve(t, f.routes, f.user, http.MethodDelete, target, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", rec.Code)
	}
}

func TestListTasks(t *testing.T) {
	t.Parallel()

	f := newTaskFixture()
	f.addTask(models.TaskStatusTodo)
	f.addTask(models.TaskStatusCompleted)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{name: "all", query: "", wantStatus: http.StatusOK, wantCount: 2},
		{name: "by status", query: "?status=completed", wantStatus: http.StatusOK, wantCount: 1},
		{name: "by category", query: "?category_id=" + f.category.ID.String(), wantStatus: http.StatusOK, wantCount: 2},
		{name: "invalid status", query: "?status=archived", wantStatus: http.StatusBadRequest},
		{name: "invalid category", query: "?category_id=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, f.routes, f.user, http.MethodGet, "/api/v1/tasks"+tt.query, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp ListTasksResponse
			envelope(t, rec, &resp)
			if len(resp.Tasks) != tt.wantCount || resp.Total != tt.wantCount {
				t.Errorf("Expected %d tasks, got %d (total %d)", tt.wantCount, len(resp.Tasks), resp.Total)
			}
			if resp.TotalPages != 1 {
				t.Errorf("Expected 1 page, got %d", resp.TotalPages)
			}
		})
	}
}
