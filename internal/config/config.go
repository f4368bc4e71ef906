package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Storage backends.
const (
	StorageFile  = "file"
	StorageRedis = "redis"
)

// Oracle providers.
const (
	OracleAnthropic = "anthropic"
	OracleOllama    = "ollama"
	OracleMock      = "mock"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	// Persistence
	StorageBackend string
	DataDir        string
	SnapshotDir    string
	RedisURL       string

	// Oracle
	OracleProvider  string
	AnthropicAPIKey string
	ModelName       string
	OllamaURL       string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageFile)),
		DataDir:        getEnv("DATA_DIR", "./data"),
		SnapshotDir:    getEnv("SNAPSHOT_DIR", "./data/worlds"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379"),

		OracleProvider:  strings.ToLower(getEnv("ORACLE_PROVIDER", OracleMock)),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		ModelName:       getEnv("MODEL_NAME", "claude-sonnet-4-20250514"),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
	}

	switch cfg.StorageBackend {
	case StorageFile, StorageRedis:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (supported: file, redis)", cfg.StorageBackend)
	}

	switch cfg.OracleProvider {
	case OracleAnthropic, OracleOllama, OracleMock:
	default:
		return nil, fmt.Errorf("invalid ORACLE_PROVIDER %q (supported: anthropic, ollama, mock)", cfg.OracleProvider)
	}

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
