package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	SigningSecret string // Required: HMAC secret for capability tokens

	DatabaseFile        string        // Optional: path to SQLite database file (default: ./chat.db)
	TokenTTL            time.Duration // Optional: capability token lifetime (default: 1h)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// ErrMissingSigningSecret means CHAT_SIGNING_SECRET is unset. There is no
// generated fallback: a random per-boot secret would silently invalidate
// every token on restart in a multi-instance deployment.
var ErrMissingSigningSecret = errors.New("CHAT_SIGNING_SECRET is required")

func LoadConfig() (Config, error) {
	cfg := Config{
		SigningSecret:       os.Getenv("CHAT_SIGNING_SECRET"),
		DatabaseFile:        getEnvOrDefault("CHAT_DATABASE_FILE", "chat.db"),
		TokenTTL:            getEnvDurationOrDefault("CHAT_TOKEN_TTL", time.Hour),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if cfg.SigningSecret == "" {
		return Config{}, ErrMissingSigningSecret
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are read as seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
