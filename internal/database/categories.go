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

// CategoryRepository handles category database operations
type CategoryRepository struct {
	db *DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// ListByUser returns the user's categories, defaults first
func (r *CategoryRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, color, is_default, created_at
		FROM categories
		WHERE user_id = $1
		ORDER BY is_default DESC, name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer closeRows(rows)

	categories := make([]*models.Category, 0)
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.IsDefault, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

// GetByID returns a category owned by userID
func (r *CategoryRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Category, error) {
	c := &models.Category{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, color, is_default, created_at
		FROM categories
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.IsDefault, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

// Create inserts a user-defined category
func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Color == "" {
		c.Color = models.DefaultCategoryColor
	}
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, color, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.UserID, c.Name, c.Color, c.IsDefault, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", c.Name, ErrConflict)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}
