package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

func TestLoad(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	envVars := []string{
		"EMBEDDING_VECTOR_SIZE", "EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME",
		"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL",
		"RERANK_BASE_URL", "RERANK_MODEL_NAME", "TOKENIZE_BASE_URL",
		"VECTOR_BACKEND", "QDRANT_URL", "QDRANT_COLLECTION",
		"POSTGRES_DSN", "POSTGRES_TABLE",
		"DB_PATH", "DOCS_DIR",
		"CHUNK_TARGET_TOKENS", "CHUNK_OVERLAP_TOKENS",
		"CONFIDENCE_THRESHOLD", "EXTERNAL_FALLBACK", "WEB_SEARCH_BASE_URL",
		"MAX_WEB_SOURCES", "WEB_FETCH_TIMEOUT_SECONDS",
		"CACHE_SIZE", "CACHE_TTL_SECONDS",
		"API_PORT", "LOG_LEVEL", "LOG_FORMAT",
	}
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "valid config with required vector size",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.EmbeddingVectorSize == 768 &&
					cfg.VectorBackend == "qdrant"
			},
		},
		{
			name:     "missing EMBEDDING_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {},
			wantErr:  true,
		},
		{
			name: "invalid EMBEDDING_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "invalid")
			},
			wantErr: true,
		},
		{
			name: "zero EMBEDDING_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "0")
			},
			wantErr: true,
		},
		{
			name: "negative EMBEDDING_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "-1")
			},
			wantErr: true,
		},
		{
			name: "default values for optional fields",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.LLMBaseURL == "http://localhost:8080" &&
					cfg.LLMModelName == "Llama-3.1-8B-Instruct" &&
					cfg.LLMAPIKey == "dummy-key" &&
					cfg.EmbeddingBaseURL == "http://localhost:8081" &&
					cfg.EmbeddingModelName == "granite-embedding-278m-multilingual" &&
					cfg.RerankBaseURL == "" &&
					cfg.DBPath == "./data/askdocs-ai.db" &&
					cfg.DocsDir == "" &&
					cfg.QdrantURL == "http://localhost:6333" &&
					cfg.QdrantCollection == "documents" &&
					cfg.ChunkTargetTokens == 768 &&
					cfg.ChunkOverlapTokens == 128 &&
					cfg.ConfidenceThreshold == 0.6 &&
					cfg.ExternalFallback &&
					cfg.MaxWebSources == 5 &&
					cfg.WebFetchTimeout == 20*time.Second &&
					cfg.CacheSize == 256 &&
					cfg.CacheTTL == 5*time.Minute &&
					cfg.APIPort == "9000" &&
					cfg.LogLevel == slog.LevelInfo &&
					cfg.LogFormat == "text"
			},
		},
		{
			name: "tokenize base URL follows embedding server",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("EMBEDDING_BASE_URL", "http://custom:8091")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.TokenizeBaseURL == "http://custom:8091"
			},
		},
		{
			name: "explicit tokenize base URL wins",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("EMBEDDING_BASE_URL", "http://custom:8091")
				setEnv("TOKENIZE_BASE_URL", "http://tokenize:9999")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.TokenizeBaseURL == "http://tokenize:9999"
			},
		},
		{
			name: "pgvector backend requires POSTGRES_DSN",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("VECTOR_BACKEND", "pgvector")
			},
			wantErr: true,
		},
		{
			name: "pgvector backend with DSN",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("VECTOR_BACKEND", "pgvector")
				setEnv("POSTGRES_DSN", "postgres://localhost/askdocs?sslmode=disable")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.VectorBackend == "pgvector" &&
					cfg.PostgresTable == "chunk_vectors"
			},
		},
		{
			name: "unknown vector backend",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("VECTOR_BACKEND", "faiss")
			},
			wantErr: true,
		},
		{
			name: "overlap at least as large as window",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("CHUNK_TARGET_TOKENS", "200")
				setEnv("CHUNK_OVERLAP_TOKENS", "200")
			},
			wantErr: true,
		},
		{
			name: "confidence threshold out of range",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("CONFIDENCE_THRESHOLD", "1.5")
			},
			wantErr: true,
		},
		{
			name: "invalid EXTERNAL_FALLBACK",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("EXTERNAL_FALLBACK", "maybe")
			},
			wantErr: true,
		},
		{
			name: "invalid LOG_LEVEL",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("LOG_LEVEL", "loud")
			},
			wantErr: true,
		},
		{
			name: "custom optional values",
			setupEnv: func(t *testing.T) {
				tmpDir := t.TempDir()
				setEnv("EMBEDDING_VECTOR_SIZE", "1024")
				setEnv("LLM_BASE_URL", "http://custom:9090")
				setEnv("LLM_MODEL", "custom-model")
				setEnv("CONFIDENCE_THRESHOLD", "0.8")
				setEnv("EXTERNAL_FALLBACK", "false")
				setEnv("LOG_LEVEL", "debug")
				customDBPath := filepath.Join(tmpDir, "custom", "db.db")
				setEnv("DB_PATH", customDBPath)
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.LLMBaseURL == "http://custom:9090" &&
					cfg.LLMModelName == "custom-model" &&
					cfg.EmbeddingVectorSize == 1024 &&
					cfg.ConfidenceThreshold == 0.8 &&
					!cfg.ExternalFallback &&
					cfg.LogLevel == slog.LevelDebug &&
					filepath.Base(cfg.DBPath) == "db.db" // Just check filename, path will vary with temp dir
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Change to a temp directory without .env file to avoid loading it
			tmpDir := t.TempDir()
			originalWd, _ := os.Getwd()
			_ = os.Chdir(tmpDir) // Ignore error - test will fail if this doesn't work
			defer func() {
				_ = os.Chdir(originalWd) // Ignore error in cleanup
			}()

			// Clean up env vars before each test
			for _, key := range envVars {
				unsetEnv(key)
			}
			// Restore original values after test
			defer func() {
				for key, value := range originalEnv {
					if value != "" {
						setEnv(key, value)
					} else {
						unsetEnv(key)
					}
				}
			}()

			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error: %v", err)
				return
			}

			if cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed")
			}
		})
	}
}

func TestLoad_CreatesDataDirectory(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	envVars := []string{"EMBEDDING_VECTOR_SIZE", "DB_PATH"}
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	// Use a temporary directory for testing
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test", "db.db")

	setEnv("EMBEDDING_VECTOR_SIZE", "768")
	setEnv("DB_PATH", dbPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Check that directory was created
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("Load() should create data directory: %v", err)
	}

	if cfg.DBPath != dbPath {
		t.Errorf("Load() DBPath = %v, want %v", cfg.DBPath, dbPath)
	}
}

func TestGetEnv(t *testing.T) {
	originalValue := os.Getenv("TEST_ENV_VAR")
	defer func() {
		if originalValue != "" {
			setEnv("TEST_ENV_VAR", originalValue)
		} else {
			unsetEnv("TEST_ENV_VAR")
		}
	}()

	tests := []struct {
		name         string
		setupEnv     func()
		key          string
		defaultValue string
		want         string
	}{
		{
			name: "env var set",
			setupEnv: func() {
				setEnv("TEST_ENV_VAR", "set-value")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "set-value",
		},
		{
			name: "env var not set",
			setupEnv: func() {
				unsetEnv("TEST_ENV_VAR")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
		{
			name: "empty env var uses default",
			setupEnv: func() {
				setEnv("TEST_ENV_VAR", "")
			},
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()
			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	defer unsetEnv("TEST_INT_VAR")

	setEnv("TEST_INT_VAR", "42")
	got, err := getEnvInt("TEST_INT_VAR", 7)
	if err != nil || got != 42 {
		t.Errorf("getEnvInt() = %d, %v, want 42, nil", got, err)
	}

	unsetEnv("TEST_INT_VAR")
	got, err = getEnvInt("TEST_INT_VAR", 7)
	if err != nil || got != 7 {
		t.Errorf("getEnvInt() = %d, %v, want default 7, nil", got, err)
	}

	setEnv("TEST_INT_VAR", "not-a-number")
	if _, err = getEnvInt("TEST_INT_VAR", 7); err == nil {
		t.Error("getEnvInt() expected error for malformed value")
	}
}

func TestGetEnvBool(t *testing.T) {
	defer unsetEnv("TEST_BOOL_VAR")

	setEnv("TEST_BOOL_VAR", "false")
	got, err := getEnvBool("TEST_BOOL_VAR", true)
	if err != nil || got {
		t.Errorf("getEnvBool() = %v, %v, want false, nil", got, err)
	}

	unsetEnv("TEST_BOOL_VAR")
	got, err = getEnvBool("TEST_BOOL_VAR", true)
	if err != nil || !got {
		t.Errorf("getEnvBool() = %v, %v, want default true, nil", got, err)
	}

	setEnv("TEST_BOOL_VAR", "maybe")
	if _, err = getEnvBool("TEST_BOOL_VAR", true); err == nil {
		t.Error("getEnvBool() expected error for malformed value")
	}
}
