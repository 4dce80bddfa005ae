package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benvon/taskpulse/internal/clock"
	"github.com/benvon/taskpulse/internal/config"
	"github.com/benvon/taskpulse/internal/database"
	"github.com/benvon/taskpulse/internal/logger"
	"github.com/benvon/taskpulse/internal/prioritizer"
	"github.com/benvon/taskpulse/internal/productivity"
	"github.com/benvon/taskpulse/internal/queue"
	"github.com/benvon/taskpulse/internal/services/ai"
	"github.com/benvon/taskpulse/internal/services/tracker"
	"github.com/benvon/taskpulse/internal/telemetry"
	"github.com/benvon/taskpulse/internal/workers"
)

const serviceName = "taskpulse-worker"

var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including model prompts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireQueue(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag
	zapLogger, err := logger.New(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync(zapLogger)

	zapLogger.Info("starting_worker",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.Bool("ai_enabled", cfg.AIEnabled()),
		zap.String("ai_model", cfg.AIModel),
		zap.Duration("scheduler_interval", cfg.SchedulerInterval),
	)

	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
			Insecure:       cfg.OTELInsecure,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
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

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	taskRepo := database.NewTaskRepository(db)
	aggregateRepo := database.NewDailyAggregateRepository(db)
	activityRepo := database.NewUserActivityRepository(db)

	// A failed recompute is retried by the processor itself, so the tracker does not re-enqueue.
	events := tracker.New(productivity.NewUpdater(aggregateRepo, calendar.Today), nil, zapLogger)

	var assisted prioritizer.Strategy
	if cfg.AIEnabled() {
		registry := ai.NewProviderRegistry()
		ai.RegisterOpenAI(registry, zapLogger)
		provider, err := registry.GetProvider(ai.ProviderOpenAI, ai.ProviderConfig{
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.AIBaseURL,
			Model:     cfg.AIModel,
			DebugMode: debugMode,
		})
		if err != nil {
			zapLogger.Fatal("failed_to_create_ai_provider", zap.Error(err))
		}
		assisted = prioritizer.NewAssisted(taskRepo, provider, prioritizer.BreakerSettings{}, cfg.PrioritizerConcurrency, zapLogger)
		zapLogger.Info("initialized_ai_provider", zap.String("model", provider.Model()))
	}

	processor := workers.NewProcessor(events, assisted, jobQueue, zapLogger)
	scheduler := workers.NewScheduler(jobQueue, activityRepo, cfg.SchedulerInterval, cfg.ActiveUserWindow, zapLogger)
	dlqGC := queue.NewGarbageCollector(jobQueue, time.Hour, cfg.DLQRetention, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Start(gctx) })
	g.Go(func() error { return dlqGC.Start(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case msg, ok := <-msgChan:
				if !ok {
					return errors.New("message channel closed")
				}
				if err := processor.ProcessJob(gctx, msg); err != nil {
					zapLogger.Warn("job_not_completed",
						zap.String("job_id", msg.GetJob().ID.String()),
						zap.String("job_type", string(msg.GetJob().Type)),
						zap.Error(err),
					)
				}
			}
		}
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case err, ok := <-errChan:
			if !ok {
				return nil
			}
			return err
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
		return
	}
	zapLogger.Info("worker_stopped")
}
