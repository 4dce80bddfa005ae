package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/request"
)

// DefaultRate is used until a rate is stored
const DefaultRate = "5-S"

// RateConfigStore reads and seeds the stored rate limit
type RateConfigStore interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// RateLimitReloader applies ulule/limiter keyed by client IP, with the rate
// reloaded from the database. The limiter store is shared across reloads so
// counters survive a rate change.
type RateLimitReloader struct {
	reloadable
	store       limiter.Store
	config      RateConfigStore
	defaultRate string
	log         *zap.Logger
}

// NewRateLimitReloader creates a rate limit middleware over store
func NewRateLimitReloader(store limiter.Store, config RateConfigStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = DefaultRate
	}
	r := &RateLimitReloader{
		store:       store,
		config:      config,
		defaultRate: defaultRate,
		log:         log,
	}
	r.reloadable.interval = reloadInterval
	r.reloadable.build = r.build
	return r
}

// Middleware returns the middleware function for the router
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return r.wrap
}

func (r *RateLimitReloader) currentRate(ctx context.Context) string {
	cfg, err := r.config.Get(ctx)
	switch {
	case err == nil && cfg.Rate != "":
		return cfg.Rate
	case err == nil || database.IsNotFound(err):
		if err := r.config.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		}
	default:
		r.log.Warn("failed_to_load_ratelimit_config_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	}
	return r.defaultRate
}

func (r *RateLimitReloader) build(ctx context.Context, next http.Handler) http.Handler {
	rateStr := r.currentRate(ctx)
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate", rateStr),
		)
		if rate, err = limiter.NewRateFromFormatted(r.defaultRate); err != nil {
			r.log.Error("failed_to_parse_default_rate_limit", zap.Error(err))
			return nil
		}
	}

	instance := limiter.New(r.store, rate)
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			writeErrorResponse(w, req, http.StatusTooManyRequests, "Rate limit exceeded")
		}),
	)
	return mw.Handler(next)
}
