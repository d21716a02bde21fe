package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"tasksync/internal/logger"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	AppPort     string
	AppVersion  string
	StoreDriver string
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogJSON  bool
	LogFile  string

	// Rate limits
	APIRateLimit   int
	APIRateWindow  time.Duration
	SyncRateLimit  int
	SyncRateWindow time.Duration
}

// Load reads the config from env (and .env) and exits on invalid values.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := LoadFromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// LoadFromEnv reads the config from the process environment only.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		AppPort:        envString("APP_PORT", "8080"),
		AppVersion:     envString("APP_VERSION", "dev"),
		StoreDriver:    envString("STORE_DRIVER", StorePostgres),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         time.Duration(envInt("JWT_TTL_HOURS", 24)) * time.Hour,
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        envInt("REDIS_DB", 0),
		LogLevel:       envString("LOG_LEVEL", "info"),
		LogJSON:        os.Getenv("LOG_JSON") == "true",
		LogFile:        os.Getenv("LOG_FILE"),
		APIRateLimit:   envInt("API_RATE_LIMIT", 120),
		APIRateWindow:  time.Duration(envInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		SyncRateLimit:  envInt("SYNC_RATE_LIMIT", 30),
		SyncRateWindow: time.Duration(envInt("SYNC_RATE_WINDOW_SECONDS", 60)) * time.Second,
	}

	switch cfg.StoreDriver {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is not set")
		}
	case StoreMemory:
	default:
		return nil, errors.New("STORE_DRIVER must be postgres or memory")
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt falls back to def for missing or malformed values. Zero is only
// accepted when it is also the default.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	if n == 0 && def != 0 {
		return def
	}
	return n
}
