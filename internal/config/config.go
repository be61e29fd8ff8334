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

// Search backend selection.
const (
	SearchBackendVector  = "vector"
	SearchBackendKeyword = "keyword"
)

// Archive backend selection.
const (
	ArchiveBackendS3 = "s3"
	ArchiveBackendFS = "fs"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel  slog.Level
	LogFormat string

	APIPort string
	DBPath  string

	// SearchBackend is "vector" (Qdrant + embeddings) or "keyword" (bleve).
	SearchBackend string

	QdrantURL        string
	QdrantCollection string
	QdrantVectorSize int

	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string

	KeywordIndexPath string

	// ArchiveBackend is "s3" (any S3-compatible store) or "fs" (local dir).
	ArchiveBackend string

	ArchiveDir string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Prefix    string
	S3UseSSL    bool
	S3PublicURL string

	// BackendTimeout bounds each index/archive call made during a save or
	// delete fan-out.
	BackendTimeout time.Duration
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

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
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		APIPort:            getEnv("API_PORT", "9000"),
		DBPath:             getEnv("DB_PATH", "./data/matchbook.db"),
		SearchBackend:      getEnv("SEARCH_BACKEND", SearchBackendKeyword),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "profiles"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", "dummy-key"),
		KeywordIndexPath:   getEnv("KEYWORD_INDEX_PATH", "./data/keyword.bleve"),
		ArchiveBackend:     getEnv("ARCHIVE_BACKEND", ArchiveBackendFS),
		ArchiveDir:         getEnv("ARCHIVE_DIR", "./data/archive"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnv("S3_SECRET_KEY", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", ""),
		S3PublicURL:        getEnv("S3_PUBLIC_URL", ""),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	switch cfg.SearchBackend {
	case SearchBackendKeyword:
		if cfg.KeywordIndexPath == "" {
			return nil, fmt.Errorf("KEYWORD_INDEX_PATH is required for the keyword backend")
		}
	case SearchBackendVector:
		// The vector size must match the output size of the embeddings
		// model. Changing it requires recreating the Qdrant collection.
		vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
		if vectorSizeStr == "" {
			return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required for the vector backend")
		}
		vectorSize, err := strconv.Atoi(vectorSizeStr)
		if err != nil {
			return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
		}
		if vectorSize <= 0 {
			return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
		}
		cfg.QdrantVectorSize = vectorSize
	default:
		return nil, fmt.Errorf("SEARCH_BACKEND must be %q or %q, got %q",
			SearchBackendVector, SearchBackendKeyword, cfg.SearchBackend)
	}

	switch cfg.ArchiveBackend {
	case ArchiveBackendFS:
		if cfg.ArchiveDir == "" {
			return nil, fmt.Errorf("ARCHIVE_DIR is required for the fs backend")
		}
	case ArchiveBackendS3:
		if cfg.S3Endpoint == "" {
			return nil, fmt.Errorf("S3_ENDPOINT is required for the s3 backend")
		}
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
	default:
		return nil, fmt.Errorf("ARCHIVE_BACKEND must be %q or %q, got %q",
			ArchiveBackendS3, ArchiveBackendFS, cfg.ArchiveBackend)
	}

	useSSL, err := strconv.ParseBool(getEnv("S3_USE_SSL", "false"))
	if err != nil {
		return nil, fmt.Errorf("S3_USE_SSL must be a boolean: %w", err)
	}
	cfg.S3UseSSL = useSSL

	timeoutStr := getEnv("BACKEND_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("BACKEND_TIMEOUT must be a duration: %w", err)
	}
	cfg.BackendTimeout = timeout

	// Create ./data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
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
		return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", raw)
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
