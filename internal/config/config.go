package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	OpenAPIPath      string
	EnableHSTS       bool
	ServerDebugMode  bool
	WorkerDebugMode  bool
	RedisURL         string
	RateLimitDefault string
	RabbitMQURL      string
	RabbitMQPrefetch int

	OIDCIssuer   string
	OIDCJWKSURL  string
	OIDCAudience string

	OpenAIKey string
	AIModel   string
	AIBaseURL string

	// AppTimezone decides which calendar day an event belongs to.
	AppTimezone            string
	PrioritizerConcurrency int
	SchedulerInterval      time.Duration
	ActiveUserWindow       time.Duration
	DLQRetention           time.Duration

	OTELEnabled  bool
	OTELEndpoint string
	OTELInsecure bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		OpenAPIPath:      getEnv("OPENAPI_PATH", "api/openapi/openapi.yaml"),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		RedisURL:         getEnv("REDIS_URL", ""),
		RateLimitDefault: getEnv("RATE_LIMIT_DEFAULT", "5-S"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),

		OIDCIssuer:   getEnv("OIDC_ISSUER", ""),
		OIDCJWKSURL:  getEnv("OIDC_JWKS_URL", ""),
		OIDCAudience: getEnv("OIDC_AUDIENCE", ""),

		OpenAIKey: getEnv("OPENAI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", ""),
		AIBaseURL: getEnv("AI_BASE_URL", ""),

		AppTimezone:            getEnv("APP_TIMEZONE", "UTC"),
		PrioritizerConcurrency: getEnvInt("PRIORITIZER_CONCURRENCY", 4),
		SchedulerInterval:      getEnvDuration("SCHEDULER_INTERVAL", time.Hour),
		ActiveUserWindow:       getEnvDuration("ACTIVE_USER_WINDOW", 72*time.Hour),
		DLQRetention:           getEnvDuration("DLQ_RETENTION", 7*24*time.Hour),

		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if _, err := time.LoadLocation(c.AppTimezone); err != nil {
		errs = append(errs, fmt.Errorf("APP_TIMEZONE %q is invalid: %w", c.AppTimezone, err))
	}
	if c.PrioritizerConcurrency < 1 {
		errs = append(errs, errors.New("PRIORITIZER_CONCURRENCY must be at least 1"))
	}
	if c.RabbitMQPrefetch < 1 {
		errs = append(errs, errors.New("RABBITMQ_PREFETCH must be at least 1"))
	}
	if c.SchedulerInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_INTERVAL must be positive"))
	}
	if (c.OIDCIssuer == "") != (c.OIDCJWKSURL == "") {
		errs = append(errs, errors.New("OIDC_ISSUER and OIDC_JWKS_URL must be set together"))
	}
	return errors.Join(errs...)
}

// AuthEnabled reports whether bearer token verification is configured
func (c *Config) AuthEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCJWKSURL != ""
}

// AIEnabled reports whether the model-backed prioritizer can run
func (c *Config) AIEnabled() bool {
	return c.OpenAIKey != ""
}

// RequireQueue returns an error when RabbitMQ is not configured
func (c *Config) RequireQueue() error {
	if c.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is required for the worker")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
