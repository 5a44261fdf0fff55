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

	"codeindex/internal/indexer"
	"codeindex/internal/llm"
	"codeindex/internal/router"
	"codeindex/internal/watcher"
)

// ModelEndpoint is the server configuration for one embedding model.
type ModelEndpoint struct {
	BaseURL     string
	Name        string
	Dimension   int
	QueryPrefix string
}

// Config holds all configuration for the application.
type Config struct {
	DBPath string

	WatchRoots        []string
	WatchDebounce     time.Duration
	WatchPollInterval time.Duration

	ChunkMaxTokens     int
	ChunkMinTokens     int
	ChunkOverlapTokens int
	ChunkHeaderContext bool
	Tokenizer          string

	// ForcedModel disables routing when set.
	ForcedModel      *router.EmbeddingModel
	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	Models           map[router.EmbeddingModel]ModelEndpoint

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	IndexWorkers int
	APIPort      string
	LogLevel     slog.Level
	LogFormat    string
}

// defaultModels are the server-side names and output sizes used when no
// EMBEDDING_<MODEL>_NAME or EMBEDDING_<MODEL>_DIM is set.
var defaultModels = map[router.EmbeddingModel]ModelEndpoint{
	router.Xtr:         {Name: "xtr-base-multilingual", Dimension: 768},
	router.UniXcoder:   {Name: "unixcoder-base", Dimension: 768},
	router.JinaColbert: {Name: "jina-colbert-v2", Dimension: 128},
	router.JinaCode:    {Name: "jina-embeddings-v2-base-code", Dimension: 768},
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// If a .env file exists in the current directory or a parent, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		DBPath:           getEnv("DB_PATH", "./data/codeindex.db"),
		Tokenizer:        getEnv("TOKENIZER", "heuristic"),
		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingAPIKey:  getEnv("EMBEDDING_API_KEY", ""),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "chunks"),
		APIPort:          getEnv("API_PORT", "9000"),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	if roots := getEnv("WATCH_ROOTS", ""); roots != "" {
		for _, root := range filepath.SplitList(roots) {
			if root = strings.TrimSpace(root); root != "" {
				cfg.WatchRoots = append(cfg.WatchRoots, root)
			}
		}
	}

	var err error
	if cfg.WatchDebounce, err = getDuration("WATCH_DEBOUNCE", watcher.DefaultDebounce); err != nil {
		return nil, err
	}
	if cfg.WatchPollInterval, err = getDuration("WATCH_POLL_INTERVAL", 250*time.Millisecond); err != nil {
		return nil, err
	}

	defaults := indexer.DefaultConfig()
	if cfg.ChunkMaxTokens, err = getInt("CHUNK_MAX_TOKENS", defaults.MaxTokens); err != nil {
		return nil, err
	}
	if cfg.ChunkMinTokens, err = getInt("CHUNK_MIN_TOKENS", defaults.MinTokens); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlapTokens, err = getInt("CHUNK_OVERLAP_TOKENS", defaults.OverlapTokens); err != nil {
		return nil, err
	}
	if cfg.ChunkHeaderContext, err = getBool("CHUNK_HEADER_CONTEXT", defaults.AddHeaderContext); err != nil {
		return nil, err
	}
	if err := cfg.Chunking().Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunk settings: %w", err)
	}

	if forced := getEnv("EMBEDDING_MODEL", ""); forced != "" {
		model, err := router.ParseModel(forced)
		if err != nil {
			return nil, fmt.Errorf("EMBEDDING_MODEL: %w", err)
		}
		cfg.ForcedModel = &model
	}

	cfg.Models = make(map[router.EmbeddingModel]ModelEndpoint, len(defaultModels))
	for _, model := range router.AllModels() {
		ep, err := loadModelEndpoint(model, cfg.EmbeddingBaseURL)
		if err != nil {
			return nil, err
		}
		cfg.Models[model] = ep
	}

	if cfg.IndexWorkers, err = getInt("INDEX_WORKERS", indexer.DefaultWorkers); err != nil {
		return nil, err
	}
	if cfg.IndexWorkers <= 0 {
		return nil, fmt.Errorf("INDEX_WORKERS must be greater than 0")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	// Create the database directory if it doesn't exist
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// Chunking returns the chunker settings.
func (c *Config) Chunking() indexer.Config {
	return indexer.Config{
		MaxTokens:        c.ChunkMaxTokens,
		MinTokens:        c.ChunkMinTokens,
		OverlapTokens:    c.ChunkOverlapTokens,
		AddHeaderContext: c.ChunkHeaderContext,
	}
}

// Endpoints returns the embedding server settings per model.
func (c *Config) Endpoints() map[router.EmbeddingModel]llm.Endpoint {
	endpoints := make(map[router.EmbeddingModel]llm.Endpoint, len(c.Models))
	for model, ep := range c.Models {
		endpoints[model] = llm.Endpoint{
			BaseURL:     ep.BaseURL,
			APIKey:      c.EmbeddingAPIKey,
			Name:        ep.Name,
			Dimension:   ep.Dimension,
			QueryPrefix: ep.QueryPrefix,
		}
	}
	return endpoints
}

// envPrefix turns "jina-colbert" into "EMBEDDING_JINA_COLBERT_".
func envPrefix(model router.EmbeddingModel) string {
	return "EMBEDDING_" + strings.ToUpper(strings.ReplaceAll(model.String(), "-", "_")) + "_"
}

func loadModelEndpoint(model router.EmbeddingModel, baseURL string) (ModelEndpoint, error) {
	prefix := envPrefix(model)
	def := defaultModels[model]

	ep := ModelEndpoint{
		BaseURL:     getEnv(prefix+"URL", baseURL),
		Name:        getEnv(prefix+"NAME", def.Name),
		QueryPrefix: getEnv(prefix+"QUERY_PREFIX", ""),
	}
	dim, err := getInt(prefix+"DIM", def.Dimension)
	if err != nil {
		return ModelEndpoint{}, err
	}
	if dim <= 0 {
		return ModelEndpoint{}, fmt.Errorf("%sDIM must be greater than 0", prefix)
	}
	ep.Dimension = dim
	return ep, nil
}

// loadDotEnv loads .env from the working directory, then from the first
// parent directory that has one.
func loadDotEnv() {
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return // Reached filesystem root
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
