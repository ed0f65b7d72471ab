// Package config loads process-wide configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Log       LogConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Storage   StorageConfig
	Executor  ExecutorConfig
	Retention RetentionConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	Enabled         bool
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
}

// SchedulerConfig holds scheduler core configuration. Values are read at
// start; runtime changes are not supported.
type SchedulerConfig struct {
	// MaxWorkers bounds total concurrently executing jobs.
	MaxWorkers int
	// MaxActiveUsers bounds how many tenants may be active concurrently.
	MaxActiveUsers int
	// EventMailboxSize bounds each progress subscriber's mailbox.
	EventMailboxSize int
	// LatencyWindow is the sliding window for the dashboard latency average.
	LatencyWindow time.Duration
}

// StorageConfig holds result storage configuration.
type StorageConfig struct {
	ResultPath string
}

// ExecutorConfig holds tile processing parameters for the image executors.
type ExecutorConfig struct {
	TileSize    int
	TileOverlap int
	WSILevel    int
}

// RetentionConfig holds terminal-workflow retention configuration.
type RetentionConfig struct {
	Enabled  bool
	MaxAge   time.Duration
	Schedule string // cron expression
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "workflow-scheduler"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8000),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 4*1024*1024),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "X-User-ID"}),
			MaxAge:         getEnvInt("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSec:  getEnvFloat("RATE_LIMIT_REQUESTS_PER_SEC", 50),
			Burst:           getEnvInt("RATE_LIMIT_BURST", 100),
			CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 3*time.Minute),
		},
		Scheduler: SchedulerConfig{
			MaxWorkers:       getEnvInt("SCHEDULER_MAX_WORKERS", 10),
			MaxActiveUsers:   getEnvInt("SCHEDULER_MAX_ACTIVE_USERS", 3),
			EventMailboxSize: getEnvInt("SCHEDULER_EVENT_MAILBOX_SIZE", 64),
			LatencyWindow:    getEnvDuration("SCHEDULER_LATENCY_WINDOW", 60*time.Second),
		},
		Storage: StorageConfig{
			ResultPath: getEnv("STORAGE_RESULT_PATH", "./results"),
		},
		Executor: ExecutorConfig{
			TileSize:    getEnvInt("EXECUTOR_TILE_SIZE", 512),
			TileOverlap: getEnvInt("EXECUTOR_TILE_OVERLAP", 64),
			WSILevel:    getEnvInt("EXECUTOR_WSI_LEVEL", 0),
		},
		Retention: RetentionConfig{
			Enabled:  getEnvBool("RETENTION_ENABLED", false),
			MaxAge:   getEnvDuration("RETENTION_MAX_AGE", 24*time.Hour),
			Schedule: getEnv("RETENTION_SCHEDULE", "@every 10m"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Scheduler.MaxWorkers < 1 {
		return fmt.Errorf("SCHEDULER_MAX_WORKERS must be at least 1, got %d", c.Scheduler.MaxWorkers)
	}
	if c.Scheduler.MaxActiveUsers < 1 {
		return fmt.Errorf("SCHEDULER_MAX_ACTIVE_USERS must be at least 1, got %d", c.Scheduler.MaxActiveUsers)
	}
	if c.Scheduler.EventMailboxSize < 1 {
		return fmt.Errorf("SCHEDULER_EVENT_MAILBOX_SIZE must be at least 1, got %d", c.Scheduler.EventMailboxSize)
	}
	if c.Scheduler.LatencyWindow <= 0 {
		return fmt.Errorf("SCHEDULER_LATENCY_WINDOW must be positive, got %v", c.Scheduler.LatencyWindow)
	}
	if c.Executor.TileSize < 1 {
		return fmt.Errorf("EXECUTOR_TILE_SIZE must be at least 1, got %d", c.Executor.TileSize)
	}
	if c.Executor.TileOverlap < 0 || c.Executor.TileOverlap >= c.Executor.TileSize {
		return fmt.Errorf("EXECUTOR_TILE_OVERLAP must be in [0, tile size), got %d", c.Executor.TileOverlap)
	}
	if c.Retention.Enabled && c.Retention.MaxAge <= 0 {
		return fmt.Errorf("RETENTION_MAX_AGE must be positive when retention is enabled")
	}
	return nil
}

// Addr returns the HTTP server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true if the application is in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction returns true if the application is in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, p := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
