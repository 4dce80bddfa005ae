package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvon/taskpulse/internal/models"
)

func TestAllowedOriginsSlice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "https://app.example.com", []string{"https://app.example.com"}},
		{"dedup and trim", " https://a.com , https://b.com,https://a.com ", []string{"https://a.com", "https://b.com"}},
		{"only separators", " , ,", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, AllowedOriginsSlice(tt.raw))
		})
	}
}

func TestSettingsRepositories(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	rl := NewRatelimitConfigRepository(db)
	_, err := rl.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, rl.Set(ctx, &models.RatelimitConfig{Rate: "10-S"}))
	require.NoError(t, rl.Set(ctx, &models.RatelimitConfig{Rate: " 20-M "}))
	got, err := rl.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20-M", got.Rate)
	assert.Error(t, rl.Set(ctx, &models.RatelimitConfig{Rate: " "}))
	assert.Error(t, rl.Set(ctx, &models.RatelimitConfig{Rate: "fast"}))

	cors := NewCorsConfigRepository(db)
	_, err = cors.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, cors.Set(ctx, &models.CorsConfig{AllowedOrigins: " , "}))
	require.NoError(t, cors.Set(ctx, &models.CorsConfig{AllowedOrigins: " https://app.example.com ,https://app.example.com", AllowCredentials: true, MaxAge: 600}))
	c, err := cors.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com", c.AllowedOrigins)
	assert.True(t, c.AllowCredentials)
	assert.Equal(t, 600, c.MaxAge)
}
