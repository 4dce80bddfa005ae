package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
)

const defaultCORSOrigin = "http://localhost:3000"

// CORSConfigSource supplies the stored CORS settings
type CORSConfigSource interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// CORSReloader applies rs/cors with settings reloaded from the database.
// FRONTEND_URL is used until a row exists.
type CORSReloader struct {
	reloadable
	source   CORSConfigSource
	fallback string
	log      *zap.Logger
}

// NewCORSReloader creates a CORS middleware that hot-reloads its settings
func NewCORSReloader(source CORSConfigSource, frontendURL string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	r := &CORSReloader{
		source:   source,
		fallback: strings.TrimSpace(frontendURL),
		log:      log,
	}
	r.reloadable.interval = reloadInterval
	r.reloadable.build = r.build
	return r
}

// Middleware returns the middleware function for the router
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return r.wrap
}

func (r *CORSReloader) options(ctx context.Context) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   database.AllowedOriginsSlice(r.fallback),
		AllowCredentials: true,
		MaxAge:           86400,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch,
			http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}

	cfg, err := r.source.Get(ctx)
	switch {
	case err == nil:
		opts.AllowedOrigins = database.AllowedOriginsSlice(cfg.AllowedOrigins)
		opts.AllowCredentials = cfg.AllowCredentials
		opts.MaxAge = cfg.MaxAge
	case !database.IsNotFound(err):
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	}

	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{defaultCORSOrigin}
	}
	return opts
}

func (r *CORSReloader) build(ctx context.Context, next http.Handler) http.Handler {
	return cors.New(r.options(ctx)).Handler(next)
}
