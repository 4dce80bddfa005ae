package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"

	"github.com/benvon/taskpulse/internal/models"
)

// Both settings tables hold a single row under this key.
const defaultSettingsKey = "default"

// RatelimitConfigRepository stores the API rate limit.
type RatelimitConfigRepository struct {
	db *DB
}

// NewRatelimitConfigRepository creates a new ratelimit config repository.
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get returns the stored rate or ErrNotFound.
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	c := &models.RatelimitConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = $1
	`, defaultSettingsKey).Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ratelimit config: %w", err)
	}
	return c, nil
}

// Set upserts the rate. The value must parse in limiter format, e.g. "5-S" or "100-M".
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	rate := strings.TrimSpace(c.Rate)
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = excluded.rate,
			updated_at = excluded.updated_at
	`, defaultSettingsKey, rate, now, now)
	if err != nil {
		return fmt.Errorf("failed to set ratelimit config: %w", err)
	}
	c.Rate = rate
	return nil
}

// CorsConfigRepository stores the browser origins allowed to call the API.
type CorsConfigRepository struct {
	db *DB
}

// NewCorsConfigRepository creates a new CORS config repository.
func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db}
}

// Get returns the stored CORS settings or ErrNotFound.
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	c := &models.CorsConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		FROM cors_config WHERE config_key = $1
	`, defaultSettingsKey).Scan(&c.ConfigKey, &c.AllowedOrigins, &c.AllowCredentials, &c.MaxAge, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cors config: %w", err)
	}
	return c, nil
}

// Set upserts the CORS settings. AllowedOrigins is comma-separated and is
// stored normalised.
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	origins := AllowedOriginsSlice(c.AllowedOrigins)
	if len(origins) == 0 {
		return errors.New("allowed_origins cannot be empty")
	}
	if c.MaxAge < 0 {
		return errors.New("max_age cannot be negative")
	}
	joined := strings.Join(origins, ",")
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = excluded.allowed_origins,
			allow_credentials = excluded.allow_credentials,
			max_age = excluded.max_age,
			updated_at = excluded.updated_at
	`, defaultSettingsKey, joined, c.AllowCredentials, c.MaxAge, now, now)
	if err != nil {
		return fmt.Errorf("failed to set cors config: %w", err)
	}
	c.AllowedOrigins = joined
	return nil
}

// AllowedOriginsSlice splits a comma-separated origin list, dropping blanks and duplicates.
func AllowedOriginsSlice(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
