package commands

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
)

// These tests share process environment, so none of them run in parallel.

func setupEnv(t *testing.T) *database.DB {
	t.Helper()

	url := "sqlite://" + filepath.Join(t.TempDir(), "configure.db")
	t.Setenv("DATABASE_URL", url)
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("OIDC_ISSUER", "")
	t.Setenv("OIDC_JWKS_URL", "")
	t.Setenv("RATE_LIMIT_DEFAULT", "5-S")
	t.Setenv("FRONTEND_URL", "http://localhost:3000")

	out, err := run(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "Migrations applied (sqlite)")

	db, err := database.New(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func seedUser(t *testing.T, db *database.DB) *models.User {
	t.Helper()

	sub := uuid.NewString()
	user := &models.User{Email: sub + "@example.com", ProviderID: &sub}
	require.NoError(t, database.NewUserRepository(db).Create(context.Background(), user))
	return user
}

func TestMigrateIsRepeatable(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations applied")
}

func TestRatelimitCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "ratelimit", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "RATE_LIMIT_DEFAULT (5-S)")

	_, err = run(t, "ratelimit", "set")
	assert.ErrorContains(t, err, "--rate is required")

	_, err = run(t, "ratelimit", "set", "--rate", "lots")
	assert.ErrorContains(t, err, "invalid rate")

	out, err = run(t, "ratelimit", "set", "--rate", " 100-M ")
	require.NoError(t, err)
	assert.Contains(t, out, "Rate limit set to 100-M.")

	out, err = run(t, "ratelimit", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Rate: 100-M")
}

func TestCorsCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "cors", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "FRONTEND_URL (http://localhost:3000)")

	_, err = run(t, "cors", "set", "--origins", " ")
	assert.ErrorContains(t, err, "--origins is required")

	out, err = run(t, "cors", "set", "--origins", "https://a.example, https://b.example,https://a.example", "--max-age", "600")
	require.NoError(t, err)
	assert.Contains(t, out, "CORS origins set to https://a.example,https://b.example.")

	out, err = run(t, "cors", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Origin: https://a.example")
	assert.Contains(t, out, "Origin: https://b.example")
	assert.Contains(t, out, "Max-Age: 600")
}

func TestProductivityRecompute(t *testing.T) {
	db := setupEnv(t)
	user := seedUser(t, db)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	aggregates := database.NewDailyAggregateRepository(db)
	require.NoError(t, aggregates.IncrementCreated(context.Background(), user.ID, today))
	require.NoError(t, aggregates.IncrementCompleted(context.Background(), user.ID, today))

	_, err := run(t, "productivity", "recompute")
	assert.ErrorContains(t, err, "--user is required")

	_, err = run(t, "productivity", "recompute", "--user", "nobody@example.com")
	assert.ErrorContains(t, err, "no user with email")

	out, err := run(t, "productivity", "recompute", "--user", user.Email)
	require.NoError(t, err)
	assert.Contains(t, out, "Completed: 1")
	assert.Contains(t, out, "Streak: 1")

	stored, err := aggregates.Get(context.Background(), user.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.StreakDays)
	assert.Positive(t, stored.ProductivityScore)
}

func TestPrioritizeDryRunThenApply(t *testing.T) {
	db := setupEnv(t)
	user := seedUser(t, db)

	categories, err := database.NewCategoryRepository(db).ListByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, categories)

	due := time.Now().UTC().Add(-48 * time.Hour)
	tasks := database.NewTaskRepository(db)
	task := &models.Task{
		UserID:     user.ID,
		CategoryID: categories[0].ID,
		Title:      "Overdue report",
		Status:     models.TaskStatusTodo,
		Priority:   models.PriorityLow,
		DueDate:    &due,
	}
	require.NoError(t, tasks.Create(context.Background(), task))

	out, err := run(t, "prioritize", "--user", user.ID.String(), "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Would update "+task.ID.String())
	assert.Contains(t, out, "1 -> 4")

	stored, err := tasks.GetByID(context.Background(), user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, stored.Priority)

	out, err = run(t, "prioritize", "--user", user.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Updated "+task.ID.String())

	stored, err = tasks.GetByID(context.Background(), user.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityUrgent, stored.Priority)

	out, err = run(t, "prioritize", "--user", user.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "already have the expected priority")
}

func TestOIDCCheckWithoutConfiguration(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "oidc", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "OIDC is not configured")
}

func TestOIDCCheckFetchesKeys(t *testing.T) {
	setupEnv(t)

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw.Public())
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "signing-1"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(key))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	defer srv.Close()

	t.Setenv("OIDC_ISSUER", "https://issuer.example")
	t.Setenv("OIDC_JWKS_URL", srv.URL)

	out, err := run(t, "oidc", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 keys)")
	assert.Contains(t, out, "kid=signing-1 kty=RSA alg=RS256")
}
