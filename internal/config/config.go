package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	CORSOrigins []string
	RateLimit   float64 // requests per second per client, 0 disables limiting
	RateBurst   int

	SQLitePath string // empty disables run history and saved curves

	RedisAddr     string // empty disables the shared cache
	RedisPassword string
	RedisDB       int
	CacheSize     int
	CacheTTL      time.Duration

	MaxSteps int // upper bound on samples per simulation request
}

// Load reads .env files when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	cfg := &Config{
		Environment: getEnv("TRIP_ENV", "development"),
		HTTPBind:    getEnv("TRIP_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("TRIP_HTTP_PORT", 8000),
		CORSOrigins: getEnvList("TRIP_CORS_ORIGINS", []string{"*"}),
		RateLimit:   getEnvFloat("TRIP_RATE_LIMIT", 10),
		RateBurst:   getEnvInt("TRIP_RATE_BURST", 20),

		SQLitePath: getEnv("TRIP_SQLITE_PATH", ""),

		RedisAddr:     getEnv("TRIP_REDIS_ADDR", ""),
		RedisPassword: getEnv("TRIP_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("TRIP_REDIS_DB", 0),
		CacheSize:     getEnvInt("TRIP_CACHE_SIZE", 128),
		CacheTTL:      time.Duration(getEnvInt("TRIP_CACHE_TTL_SECONDS", 3600)) * time.Second,

		MaxSteps: getEnvInt("TRIP_MAX_STEPS", 2_000_000),
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("TRIP_HTTP_PORT must be between 1 and 65535, got %d", cfg.HTTPPort)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("TRIP_RATE_LIMIT must not be negative, got %g", cfg.RateLimit)
	}
	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		return nil, fmt.Errorf("TRIP_RATE_BURST must be positive when rate limiting is enabled, got %d", cfg.RateBurst)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("TRIP_CACHE_SIZE must be positive, got %d", cfg.CacheSize)
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("TRIP_CACHE_TTL_SECONDS must be positive")
	}
	if cfg.MaxSteps <= 0 {
		return nil, fmt.Errorf("TRIP_MAX_STEPS must be positive, got %d", cfg.MaxSteps)
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
