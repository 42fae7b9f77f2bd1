// Package config loads application configuration from environment
// variables and validates it at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coursehub-io/coursehub/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds token signing and revocation settings
type AuthConfig struct {
	// JWTSecret signs tokens. It has no default; an empty value fails
	// validation.
	JWTSecret string

	TokenTTL time.Duration

	// BcryptCost of 0 means the bcrypt default.
	BcryptCost int

	// SweepSchedule is the cron expression for the in-memory revocation
	// store sweep.
	SweepSchedule string

	// PolicyFile optionally overrides the built-in authorization rules
	// with a YAML rule file.
	PolicyFile string
}

// StorageConfig holds database and cache configuration
type StorageConfig struct {
	PostgresURL         string
	PostgresReplicaURLs string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// RedisURL is optional. When set, the redis-backed revocation store
	// is used instead of the in-memory one.
	RedisURL      string
	RedisPoolSize int

	CourseCacheSize int
	CourseCacheTTL  time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("COURSEHUB_HOST", "0.0.0.0"),
		Port:            getEnv("COURSEHUB_PORT", "8080"),
		ReadTimeout:     getEnvDuration("COURSEHUB_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("COURSEHUB_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("COURSEHUB_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("COURSEHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("COURSEHUB_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("COURSEHUB_HEALTH_PORT", "9090"),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:     getEnv("COURSEHUB_JWT_SECRET", ""),
		TokenTTL:      getEnvDuration("COURSEHUB_TOKEN_TTL", 24*time.Hour),
		BcryptCost:    getEnvInt("COURSEHUB_BCRYPT_COST", 0),
		SweepSchedule: getEnv("COURSEHUB_REVOCATION_SWEEP_SCHEDULE", "@every 10m"),
		PolicyFile:    getEnv("COURSEHUB_POLICY_FILE", ""),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		PostgresURL:         getEnv("COURSEHUB_POSTGRES_URL", "postgres://localhost:5432/coursehub?sslmode=disable"),
		PostgresReplicaURLs: getEnv("COURSEHUB_POSTGRES_REPLICA_URLS", ""),
		PostgresMaxConns:    getEnvInt("COURSEHUB_POSTGRES_MAX_CONNS", 25),
		PostgresMinConns:    getEnvInt("COURSEHUB_POSTGRES_MIN_CONNS", 5),
		PostgresTimeout:     getEnvDuration("COURSEHUB_POSTGRES_TIMEOUT", 30*time.Second),
		RedisURL:            getEnv("COURSEHUB_REDIS_URL", ""),
		RedisPoolSize:       getEnvInt("COURSEHUB_REDIS_POOL_SIZE", 10),
		CourseCacheSize:     getEnvInt("COURSEHUB_COURSE_CACHE_SIZE", 512),
		CourseCacheTTL:      getEnvDuration("COURSEHUB_COURSE_CACHE_TTL", 5*time.Minute),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("COURSEHUB_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("COURSEHUB_METRICS_ENABLED", true),
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("COURSEHUB_JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive, got %v", c.Auth.TokenTTL)
	}
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("COURSEHUB_POSTGRES_URL is required")
	}
	if !strings.HasPrefix(c.Storage.PostgresURL, "postgres://") && !strings.HasPrefix(c.Storage.PostgresURL, "postgresql://") {
		return fmt.Errorf("postgres URL must start with postgres:// or postgresql://")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}
	return nil
}

// Address returns the server's listen address
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// HealthAddress returns the health/metrics server's listen address
func (c *ServerConfig) HealthAddress() string {
	return c.Host + ":" + c.HealthPort
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
