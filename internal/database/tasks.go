package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskpulse/internal/models"
)

// TaskRepository handles task database operations
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// TaskFilter narrows ListByUser results. Nil fields do not filter.
type TaskFilter struct {
	Status     *models.TaskStatus
	CategoryID *uuid.UUID
	SubjectID  *uuid.UUID
}

const taskSelect = `
	SELECT t.id, t.user_id, t.category_id, t.subject_id, t.title, t.description,
	       t.status, t.priority, t.ai_priority, t.due_date, t.time_spent_minutes,
	       t.created_at, t.updated_at, t.completed_at,
	       c.name, c.color, c.is_default,
	       s.name, s.color
	FROM tasks t
	JOIN categories c ON c.id = t.category_id
	LEFT JOIN subjects s ON s.id = t.subject_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{Category: &models.Category{}}
	var (
		subjectID    uuid.NullUUID
		description  sql.NullString
		aiPriority   sql.NullInt64
		dueDate      sql.NullTime
		completedAt  sql.NullTime
		subjectName  sql.NullString
		subjectColor sql.NullString
	)

	err := row.Scan(
		&t.ID, &t.UserID, &t.CategoryID, &subjectID, &t.Title, &description,
		&t.Status, &t.Priority, &aiPriority, &dueDate, &t.TimeSpentMinutes,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
		&t.Category.Name, &t.Category.Color, &t.Category.IsDefault,
		&subjectName, &subjectColor,
	)
	if err != nil {
		return nil, err
	}

	t.Category.ID = t.CategoryID
	t.Category.UserID = t.UserID
	if subjectID.Valid {
		id := subjectID.UUID
		t.SubjectID = &id
		t.Subject = &models.Subject{ID: id, UserID: t.UserID, Name: subjectName.String, Color: subjectColor.String}
	}
	if description.Valid {
		t.Description = &description.String
	}
	if aiPriority.Valid {
		p := int(aiPriority.Int64)
		t.AIPriority = &p
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Create inserts a new task
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, category_id, subject_id, title, description, status,
		                   priority, ai_priority, due_date, time_spent_minutes, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12, $13)
	`,
		task.ID,
		task.UserID,
		task.CategoryID,
		task.SubjectID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.AIPriority,
		nullTime(task.DueDate),
		task.TimeSpentMinutes,
		now,
		nullTime(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	task.CreatedAt = now
	task.UpdatedAt = now
	return nil
}

// GetByID retrieves a task owned by userID, with its category and subject
func (r *TaskRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Task, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx, taskSelect+` WHERE t.id = $1 AND t.user_id = $2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListByUser returns a page of the user's tasks, highest priority first,
// and the total number of tasks matching the filter
func (r *TaskRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter TaskFilter, page, pageSize int) ([]*models.Task, int, error) {
	where := ` WHERE t.user_id = $1`
	args := []any{userID}
	argIndex := 2

	if filter.Status != nil {
		where += fmt.Sprintf(" AND t.status = $%d", argIndex)
		args = append(args, string(*filter.Status))
		argIndex++
	}
	if filter.CategoryID != nil {
		where += fmt.Sprintf(" AND t.category_id = $%d", argIndex)
		args = append(args, *filter.CategoryID)
		argIndex++
	}
	if filter.SubjectID != nil {
		where += fmt.Sprintf(" AND t.subject_id = $%d", argIndex)
		args = append(args, *filter.SubjectID)
		argIndex++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	if page < 1 {
		page = 1
	}
	query := taskSelect + where +
		fmt.Sprintf(" ORDER BY t.priority DESC, t.due_date ASC, t.created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, pageSize, (page-1)*pageSize)

	tasks, err := r.queryTasks(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListOpenTasks returns every task of the user that is not completed, oldest first
func (r *TaskRepository) ListOpenTasks(ctx context.Context, userID uuid.UUID) ([]models.Task, error) {
	tasks, err := r.queryTasks(ctx, taskSelect+`
		WHERE t.user_id = $1 AND t.status <> $2
		ORDER BY t.created_at ASC, t.id ASC
	`, userID, string(models.TaskStatusCompleted))
	if err != nil {
		return nil, err
	}
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = *t
	}
	return out, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer closeRows(rows)

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

const updateTaskSQL = `
		UPDATE tasks
		SET category_id = $3, subject_id = $4, title = $5, description = $6, status = $7,
		    priority = $8, due_date = $9, updated_at = $10, completed_at = $11
		WHERE id = $1 AND user_id = $2`

// Update writes the task's mutable fields
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, updateTaskSQL, updateArgs(task, now)...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if err := expectOneRow(result, "task"); err != nil {
		return err
	}
	task.UpdatedAt = now
	return nil
}

// UpdateFromStatus writes the task only while its stored status is still
// from. It reports false, without error, when the row is gone or another
// writer changed the status first.
func (r *TaskRepository) UpdateFromStatus(ctx context.Context, task *models.Task, from models.TaskStatus) (bool, error) {
	now := time.Now().UTC()
	args := append(updateArgs(task, now), from)
	result, err := r.db.ExecContext(ctx, updateTaskSQL+` AND status = $12`, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update task: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	task.UpdatedAt = now
	return true, nil
}

func updateArgs(task *models.Task, now time.Time) []any {
	return []any{
		task.ID,
		task.UserID,
		task.CategoryID,
		task.SubjectID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		nullTime(task.DueDate),
		now,
		nullTime(task.CompletedAt),
	}
}

// Delete deletes a task owned by userID
func (r *TaskRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return expectOneRow(result, "task")
}

// SetPriority stores a new effective priority
func (r *TaskRepository) SetPriority(ctx context.Context, userID, taskID uuid.UUID, priority int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET priority = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
	`, taskID, userID, priority, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set task priority: %w", err)
	}
	return expectOneRow(result, "task")
}

// SetAIPriority stores a model suggestion as both the suggested and effective priority
func (r *TaskRepository) SetAIPriority(ctx context.Context, userID, taskID uuid.UUID, priority int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET priority = $3, ai_priority = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
	`, taskID, userID, priority, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set task ai priority: %w", err)
	}
	return expectOneRow(result, "task")
}

// AddTimeSpent atomically adds focused minutes to a task
func (r *TaskRepository) AddTimeSpent(ctx context.Context, userID, taskID uuid.UUID, minutes int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET time_spent_minutes = time_spent_minutes + $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
	`, taskID, userID, minutes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add time spent: %w", err)
	}
	return expectOneRow(result, "task")
}

// CountByStatus returns the number of the user's tasks in each status
func (r *TaskRepository) CountByStatus(ctx context.Context, userID uuid.UUID) (map[models.TaskStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM tasks WHERE user_id = $1 GROUP BY status
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer closeRows(rows)

	counts := map[models.TaskStatus]int{
		models.TaskStatusTodo:       0,
		models.TaskStatusInProgress: 0,
		models.TaskStatusCompleted:  0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[models.TaskStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

// CountCompletedSince returns how many of the user's tasks were completed at or after since
func (r *TaskRepository) CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE user_id = $1 AND status = $2 AND completed_at >= $3
	`, userID, string(models.TaskStatusCompleted), since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed tasks: %w", err)
	}
	return n, nil
}
