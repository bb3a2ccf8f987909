package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string

	EmbeddingBaseURL    string
	EmbeddingModelName  string
	EmbeddingVectorSize int

	RerankBaseURL   string
	RerankModelName string
	TokenizeBaseURL string

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string
	PostgresDSN      string
	PostgresTable    string

	DBPath  string
	DocsDir string

	ChunkTargetTokens  int
	ChunkOverlapTokens int

	ConfidenceThreshold float64
	ExternalFallback    bool
	WebSearchBaseURL    string
	MaxWebSources       int
	WebFetchTimeout     time.Duration

	CacheSize int
	CacheTTL  time.Duration

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	// Try to find project root by looking for a .env file
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

	embeddingBaseURL := getEnv("EMBEDDING_BASE_URL", "http://localhost:8081")

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   embeddingBaseURL,
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"), // Default to granite embeddings model
		// Note: granite-embedding-278m-multilingual has n_ctx=512 tokens (hard limit enforced by model).
		// The --ctx-size flag in llama.cpp is ignored; the model enforces 512 tokens maximum.
		RerankBaseURL:      getEnv("RERANK_BASE_URL", ""), // Empty disables the cross-encoder; lexical re-ranking is used instead
		RerankModelName:    getEnv("RERANK_MODEL_NAME", "bge-reranker-v2-m3"),
		TokenizeBaseURL:    getEnv("TOKENIZE_BASE_URL", embeddingBaseURL), // llama.cpp serves /tokenize on the embeddings server
		VectorBackend:      getEnv("VECTOR_BACKEND", "qdrant"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "documents"),
		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		PostgresTable:      getEnv("POSTGRES_TABLE", "chunk_vectors"),
		DBPath:             getEnv("DB_PATH", "./data/askdocs-ai.db"),
		DocsDir:            getEnv("DOCS_DIR", ""), // Empty disables filesystem document sync
		WebSearchBaseURL:   getEnv("WEB_SEARCH_BASE_URL", ""), // Empty disables the external fallback entirely
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	// Parse EMBEDDING_VECTOR_SIZE
	// Note: This must match the output vector size of the embeddings model.
	// For granite-embedding-278m-multilingual, this is typically 768 dimensions.
	// Verify the actual output size by testing the model and update EMBEDDING_VECTOR_SIZE
	// in your .env file accordingly. If the vector size changes, the vector collection
	// must be recreated.
	vectorSizeStr := getEnv("EMBEDDING_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be greater than 0")
	}
	cfg.EmbeddingVectorSize = vectorSize

	cfg.ChunkTargetTokens, err = getEnvInt("CHUNK_TARGET_TOKENS", 768)
	if err != nil {
		return nil, err
	}
	cfg.ChunkOverlapTokens, err = getEnvInt("CHUNK_OVERLAP_TOKENS", 128)
	if err != nil {
		return nil, err
	}
	if cfg.ChunkTargetTokens > 0 && cfg.ChunkOverlapTokens >= cfg.ChunkTargetTokens {
		return nil, fmt.Errorf("CHUNK_OVERLAP_TOKENS must be smaller than CHUNK_TARGET_TOKENS")
	}

	cfg.ConfidenceThreshold, err = getEnvFloat("CONFIDENCE_THRESHOLD", 0.6)
	if err != nil {
		return nil, err
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold >= 1 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0, 1)")
	}

	cfg.ExternalFallback, err = getEnvBool("EXTERNAL_FALLBACK", true)
	if err != nil {
		return nil, err
	}
	cfg.MaxWebSources, err = getEnvInt("MAX_WEB_SOURCES", 5)
	if err != nil {
		return nil, err
	}

	fetchTimeoutSecs, err := getEnvInt("WEB_FETCH_TIMEOUT_SECONDS", 20)
	if err != nil {
		return nil, err
	}
	cfg.WebFetchTimeout = time.Duration(fetchTimeoutSecs) * time.Second

	cfg.CacheSize, err = getEnvInt("CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	cacheTTLSecs, err := getEnvInt("CACHE_TTL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = time.Duration(cacheTTLSecs) * time.Second

	cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	// Validate required fields
	switch cfg.VectorBackend {
	case "qdrant":
		if cfg.QdrantURL == "" {
			return nil, fmt.Errorf("QDRANT_URL is required when VECTOR_BACKEND is qdrant")
		}
	case "pgvector":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required when VECTOR_BACKEND is pgvector")
		}
	default:
		return nil, fmt.Errorf("VECTOR_BACKEND must be qdrant or pgvector, got %q", cfg.VectorBackend)
	}

	// Create the data directory if it doesn't exist (for the DB file)
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

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return value, nil
}

// getEnvFloat gets a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return value, nil
}

// getEnvBool gets a boolean environment variable or returns a default value.
func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return value, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", raw)
	}
}
