// Package config loads the application's env-var-driven configuration,
// matching the shape and defaulting helpers the teacher used.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for a store process.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Postgres  PostgresConfig  `json:"postgres"`
	Redis     RedisConfig     `json:"redis"`
	NATS      NATSConfig      `json:"nats"`
	Driver    DriverConfig    `json:"driver"`
	Store     StoreConfig     `json:"store"`
	Recipe    RecipeConfig    `json:"recipe"`
	Logging   LoggingConfig   `json:"logging"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// DriverConfig selects which store.Driver backend a process wires up.
type DriverConfig struct {
	// Backend is one of "memory" (in-process, no external dependency),
	// "postgres-redis" (Postgres container store, Redis backing store)
	// or "nats" (two NATS connections, one for the container store and
	// one for the backing store, for a lightweight push-replicated
	// deployment).
	Backend string `json:"backend"`
}

// ServerConfig holds HTTP/gRPC/WS listener configuration.
type ServerConfig struct {
	Port         int           `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// PostgresConfig contains the container store's database connection.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig contains the backing store's Redis connection.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// NATSConfig contains the cross-replica delta propagation connection.
type NATSConfig struct {
	URL string `json:"url"`
}

// StoreConfig tunes the ReferenceModeStore's wait-queue and retry
// behavior.
type StoreConfig struct {
	InboxSize       int           `json:"inbox_size"`
	WaitQueueLimit  int           `json:"wait_queue_limit"`
	SyncInterval    time.Duration `json:"sync_interval"`
	RetryBackoff    time.Duration `json:"retry_backoff"`
}

// RecipeConfig controls how a Recipe handles orphaned slots during
// normalization — the open question spec.md §9 leaves to the
// implementation: strict rejects a recipe with any unfilled required
// slot as InvalidRecipe, lenient leaves it unresolved and lets
// isResolved report it instead of failing normalize outright.
type RecipeConfig struct {
	StrictOrphanSlots bool `json:"strict_orphan_slots"`
}

// LoggingConfig controls the zap logger's level.
type LoggingConfig struct {
	Level string `json:"level"`
}

// RateLimitConfig tunes the REST/gRPC transport's per-client rate
// limiting — a transport-layer concern, not something the store's
// internal dispatch loop enforces.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	Burst             int `json:"burst"`
}

// Load loads configuration from environment variables, falling back to
// development-friendly defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 8080),
			Host:         getEnv("HOST", "0.0.0.0"),
			ReadTimeout:  time.Duration(getEnvInt("READ_TIMEOUT_SECONDS", 10)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("WRITE_TIMEOUT_SECONDS", 10)) * time.Second,
			IdleTimeout:  time.Duration(getEnvInt("IDLE_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Postgres: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "arcs"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Driver: DriverConfig{
			Backend: getEnv("DRIVER_BACKEND", "memory"),
		},
		Store: StoreConfig{
			InboxSize:      getEnvInt("STORE_INBOX_SIZE", 256),
			WaitQueueLimit: getEnvInt("STORE_WAIT_QUEUE_LIMIT", 10000),
			SyncInterval:   time.Duration(getEnvInt("STORE_SYNC_INTERVAL_SECONDS", 5)) * time.Second,
			RetryBackoff:   time.Duration(getEnvInt("STORE_RETRY_BACKOFF_SECONDS", 2)) * time.Second,
		},
		Recipe: RecipeConfig{
			StrictOrphanSlots: getEnvBool("RECIPE_STRICT_ORPHAN_SLOTS", false),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 600),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 50),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
