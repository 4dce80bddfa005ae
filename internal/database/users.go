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

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, provider_id, name, created_at, updated_at, last_seen_at`

// Create inserts a user together with the default categories every account starts with
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, provider_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, user.ID, user.Email, user.ProviderID, user.Name, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create user: %w", ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	for _, c := range models.DefaultCategories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, user_id, name, color, is_default, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, name) DO NOTHING
		`, uuid.New(), user.ID, c.Name, c.Color, true, now)
		if err != nil {
			return fmt.Errorf("failed to create default category %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByProviderID retrieves a user by the identity provider's subject
func (r *UserRepository) GetByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE provider_id = $1`, providerID)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var lastSeen sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.ProviderID,
		&user.Name,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if lastSeen.Valid {
		user.LastSeenAt = &lastSeen.Time
	}
	return user, nil
}

// Update updates a user's profile fields
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, provider_id = $3, name = $4, updated_at = $5
		WHERE id = $1
	`, user.ID, user.Email, user.ProviderID, user.Name, now)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := expectOneRow(result, "user"); err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}

// FindOrCreateFromClaims returns the user owning the token's subject,
// creating the account on first sight and refreshing email and name when
// the provider reports new values
func (r *UserRepository) FindOrCreateFromClaims(ctx context.Context, claims *models.TokenClaims) (*models.User, error) {
	user, err := r.GetByProviderID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		sub := claims.Subject
		user = &models.User{
			ID:         uuid.New(),
			Email:      claims.Email,
			ProviderID: &sub,
		}
		if claims.Name != "" {
			name := claims.Name
			user.Name = &name
		}
		if err := r.Create(ctx, user); err != nil {
			if errors.Is(err, ErrConflict) {
				// Another request created the same subject concurrently.
				return r.GetByProviderID(ctx, claims.Subject)
			}
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	changed := false
	if claims.Email != "" && user.Email != claims.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.Name != "" && (user.Name == nil || *user.Name != claims.Name) {
		name := claims.Name
		user.Name = &name
		changed = true
	}
	if changed {
		if err := r.Update(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}
