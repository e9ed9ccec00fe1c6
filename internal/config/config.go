package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ulule/limiter/v3"

	"github.com/benvon/smart-health/internal/storage"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	BaseURL         string
	FrontendURL     string
	EnableHSTS      bool
	StoreBackend    string
	StoreKey        string
	StoreDir        string
	SQLitePath      string
	DatabaseURL     string
	RedisURL        string
	PersistDebounce time.Duration
	RateLimit       string
	RateLimitRedis  bool
	RabbitMQURL     string
	OpenAPIPath     string
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
	OTELInsecure    bool

	// Analytics worker
	AnalyticsQueue   string
	RabbitMQPrefetch int
	WorkerPort       string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:      getEnvBool("ENABLE_HSTS", false),
		StoreBackend:    getEnv("STORE_BACKEND", storage.BackendFile),
		StoreKey:        getEnv("STORE_KEY", "smart-health:user-interactions"),
		StoreDir:        getEnv("STORE_DIR", "./data"),
		SQLitePath:      getEnv("SQLITE_PATH", "./data/smart-health.db"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		PersistDebounce: getEnvDuration("PERSIST_DEBOUNCE", 0),
		RateLimit:       getEnv("RATE_LIMIT", "20-S"),
		RateLimitRedis:  getEnvBool("RATE_LIMIT_REDIS", false),
		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		OpenAPIPath:     getEnv("OPENAPI_PATH", "api/openapi/openapi.yaml"),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),

		AnalyticsQueue:   getEnv("ANALYTICS_QUEUE", "smart_health_interaction_analytics"),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 10),
		WorkerPort:       getEnv("WORKER_PORT", "9091"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case storage.BackendMemory, storage.BackendFile, storage.BackendRedis, storage.BackendSQLite:
	case storage.BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", storage.BackendPostgres)
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	if c.StoreKey == "" {
		return fmt.Errorf("STORE_KEY must not be empty")
	}
	if c.PersistDebounce < 0 {
		return fmt.Errorf("PERSIST_DEBOUNCE must not be negative")
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT %q: %w", c.RateLimit, err)
	}
	if c.RabbitMQPrefetch < 1 {
		return fmt.Errorf("RABBITMQ_PREFETCH must be at least 1")
	}
	if c.OTELEnabled && c.OTELEndpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is set")
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

// getEnvDuration accepts Go durations ("250ms") or a bare number of milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms := getEnvInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
