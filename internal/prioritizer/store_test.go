package prioritizer

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/benvon/taskpulse/internal/models"
)

type fakeTaskStore struct {
	mu         sync.Mutex
	tasks      []models.Task
	aiPriority map[uuid.UUID]int
	failIDs    map[uuid.UUID]bool
	listErr    error
	writes     int
}

func newFakeTaskStore(tasks ...models.Task) *fakeTaskStore {
	return &fakeTaskStore{
		tasks:      tasks,
		aiPriority: make(map[uuid.UUID]int),
		failIDs:    make(map[uuid.UUID]bool),
	}
}

func (s *fakeTaskStore) ListOpenTasks(_ context.Context, userID uuid.UUID) ([]models.Task, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.UserID == userID && !t.IsCompleted() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) SetPriority(_ context.Context, userID, taskID uuid.UUID, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failIDs[taskID] {
		return errors.New("write rejected")
	}
	for i := range s.tasks {
		if s.tasks[i].ID == taskID && s.tasks[i].UserID == userID {
			s.tasks[i].Priority = priority
			return nil
		}
	}
	return errors.New("task not found")
}

func (s *fakeTaskStore) SetAIPriority(ctx context.Context, userID, taskID uuid.UUID, priority int) error {
	if err := s.SetPriority(ctx, userID, taskID, priority); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiPriority[taskID] = priority
	return nil
}

func (s *fakeTaskStore) priority(taskID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == taskID {
			return t.Priority
		}
	}
	return 0
}
