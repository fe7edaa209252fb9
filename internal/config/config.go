package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	MarqetaAppToken    string
	MarqetaAccessToken string
	MarqetaProgram     string
	DivaBaseURL        string
	ValidateFilters    bool
	RateLimitMax       int
	RateLimitWindow    time.Duration
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	DBPath             string
	QdrantURL          string
	QdrantCollection   string
	QdrantVectorSize   int
	APIPort            string
	LogLevel           slog.Level
	LogFormat          string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	// Try to find project root by looking for .env
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		MarqetaAppToken:    os.Getenv("MARQETA_APP_TOKEN"),
		MarqetaAccessToken: os.Getenv("MARQETA_ACCESS_TOKEN"),
		MarqetaProgram:     os.Getenv("MARQETA_PROGRAM"),
		DivaBaseURL:        getEnv("DIVA_BASE_URL", "https://diva-api.marqeta.com/data/v2"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", "dummy-key"),
		DBPath:             getEnv("DB_PATH", "./data/marqeta-diva.db"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "marqeta_transactions"),
		APIPort:            getEnv("API_PORT", "9000"),
	}

	// Validate required credentials up front so a misconfigured deploy
	// fails at startup, not on the first upstream call.
	if cfg.MarqetaAppToken == "" {
		return nil, fmt.Errorf("MARQETA_APP_TOKEN is required")
	}
	if cfg.MarqetaAccessToken == "" {
		return nil, fmt.Errorf("MARQETA_ACCESS_TOKEN is required")
	}
	if cfg.MarqetaProgram == "" {
		return nil, fmt.Errorf("MARQETA_PROGRAM is required")
	}

	// Parse QDRANT_VECTOR_SIZE
	// This must match the output vector size of the embeddings model.
	// If the vector size changes, the Qdrant collection must be recreated.
	vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
	}
	cfg.QdrantVectorSize = vectorSize

	// Upstream enforces 300 requests per 300 seconds per program.
	rateMax, err := getEnvInt("RATE_LIMIT_MAX", 300)
	if err != nil {
		return nil, err
	}
	if rateMax <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must be greater than 0")
	}
	cfg.RateLimitMax = rateMax

	rateWindow, err := getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	if rateWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be greater than 0")
	}
	cfg.RateLimitWindow = time.Duration(rateWindow) * time.Second

	cfg.ValidateFilters = getEnv("DIVA_VALIDATE_FILTERS", "false") == "true"

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json")
	}

	// Create ./data directory if it doesn't exist (for future DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", raw)
	}
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}
