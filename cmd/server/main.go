package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/clock"
	"github.com/benvon/taskpulse/internal/config"
	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/handlers"
	"github.com/benvon/taskpulse/internal/logger"
	"github.com/benvon/taskpulse/internal/middleware"
	"github.com/benvon/taskpulse/internal/prioritizer"
	"github.com/benvon/taskpulse/internal/productivity"
	"github.com/benvon/taskpulse/internal/queue"
	"github.com/benvon/taskpulse/internal/services/oidc"
	"github.com/benvon/taskpulse/internal/services/tracker"
	"github.com/benvon/taskpulse/internal/telemetry"
)

const serviceName = "taskpulse-api"

// Set at build time with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag
	zapLogger, err := logger.New(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync(zapLogger)

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("app_timezone", cfg.AppTimezone),
		zap.Bool("auth_enabled", cfg.AuthEnabled()),
		zap.Bool("ai_enabled", cfg.AIEnabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
				ServiceName:    serviceName,
				ServiceVersion: version,
				Endpoint:       cfg.OTELEndpoint,
				Insecure:       cfg.OTELInsecure,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	calendar, err := clock.New(cfg.AppTimezone)
	if err != nil {
		zapLogger.Fatal("invalid_app_timezone", zap.Error(err))
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database", zap.String("dialect", string(db.Dialect())))

	if db.Dialect() == database.DialectSQLite {
		if err := db.Migrate(context.Background()); err != nil {
			zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
		}
		zapLogger.Info("applied_sqlite_migrations")
	}

	limiterStore, err := middleware.NewLimiterStore(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := limiterStore.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("rate_limit_store_ready", zap.Bool("shared", limiterStore.Shared()))

	var jobs queue.Enqueuer
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue = connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		jobs = jobQueue
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	} else {
		zapLogger.Warn("rabbitmq_not_configured_background_jobs_disabled")
	}

	// Repositories
	userRepo := database.NewUserRepository(db)
	activityRepo := database.NewUserActivityRepository(db)
	taskRepo := database.NewTaskRepository(db)
	categoryRepo := database.NewCategoryRepository(db)
	subjectRepo := database.NewSubjectRepository(db)
	sessionRepo := database.NewTimerSessionRepository(db)
	studyRepo := database.NewStudySessionRepository(db)
	aggregateRepo := database.NewDailyAggregateRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Core services
	updater := productivity.NewUpdater(aggregateRepo, calendar.Today)
	events := tracker.New(updater, jobs, zapLogger)
	heuristic := prioritizer.NewHeuristic(taskRepo, calendar.Now, cfg.PrioritizerConcurrency)
	strategies := prioritizer.NewRegistry(heuristic)

	// Handlers
	healthChecker := handlers.NewHealthChecker(db, handlers.VersionInfo{Version: version, Commit: commit})
	if limiterStore.Shared() {
		healthChecker.AddCheck("redis", limiterStore.Ping)
	}
	if jobQueue != nil {
		healthChecker.AddCheck("rabbitmq", jobQueue.HealthCheck)
	}
	taskHandler := handlers.NewTaskHandler(taskRepo, categoryRepo, subjectRepo, events, zapLogger)
	categoryHandler := handlers.NewCategoryHandler(categoryRepo, subjectRepo, zapLogger)
	timerHandler := handlers.NewTimerSessionHandler(taskRepo, sessionRepo, subjectRepo, studyRepo, calendar, zapLogger)
	dashboardHandler := handlers.NewDashboardHandler(taskRepo, categoryRepo, aggregateRepo, events, calendar, zapLogger)
	prioritizeHandler := handlers.NewPrioritizeHandler(strategies, jobs, cfg.AIEnabled(), zapLogger)
	openAPIHandler := handlers.NewOpenAPIHandler(cfg.OpenAPIPath)

	r := mux.NewRouter()

	// Registered first runs outermost.
	if tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, time.Minute)
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	healthChecker.RegisterRoutes(r)
	openAPIHandler.RegisterRoutes(r)

	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, cfg.RateLimitDefault, zapLogger, time.Minute)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitReloader.Middleware())
	if cfg.AuthEnabled() {
		verifier := oidc.NewVerifier(oidc.NewJWKSManager(nil), cfg.OIDCIssuer, cfg.OIDCJWKSURL, cfg.OIDCAudience)
		apiRouter.Use(middleware.Auth(verifier, userRepo, zapLogger))
	} else {
		zapLogger.Warn("oidc_not_configured_serving_local_user")
		apiRouter.Use(middleware.LocalUser(userRepo, zapLogger))
	}
	apiRouter.Use(middleware.ActivityTracking(activityRepo, zapLogger))

	taskHandler.RegisterRoutes(apiRouter.PathPrefix("/tasks").Subrouter())
	timerHandler.RegisterRoutes(apiRouter.PathPrefix("/timer-sessions").Subrouter())
	categoryHandler.RegisterRoutes(apiRouter)
	dashboardHandler.RegisterRoutes(apiRouter)
	prioritizeHandler.RegisterRoutes(apiRouter)

	// Preflight requests are answered by the CORS middleware; this gives them a route to match.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   35 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go corsReloader.Start(bgCtx)
	go rateLimitReloader.Start(bgCtx)

	go func() {
		zapLogger.Info("server_listening", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries with exponential backoff so the server survives
// the broker starting after it
func connectRabbitMQ(url string, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := range maxRetries {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err

		delay := min(initialDelay*time.Duration(1<<uint(attempt)), 30*time.Second)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}
