package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int               `json:"port"`
	JWTSecret   string            `json:"jwt_secret"`
	CORSOrigins []string          `json:"cors_origins"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	Postgres    PostgresConfig    `json:"postgres"`
	VectorStore VectorStoreConfig `json:"vector_store"`
	AI          AIConfig          `json:"ai"`
	Rag         RagConfig         `json:"rag"`
	RateLimit   RateLimitConfig   `json:"rate_limit"`
}

type PostgresConfig struct {
	DSN           string `json:"dsn"`
	MigrationsDir string `json:"migrations_dir"`
}

type VectorStoreConfig struct {
	// Type selects the backend: qdrant, pgvector or memory. The
	// contract is identical across backends, only the store swaps.
	Type       string       `json:"type"`
	Qdrant     QdrantConfig `json:"qdrant"`
	Collection string       `json:"collection"`
	TimeoutSec int          `json:"timeout_sec"`
}

type QdrantConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
}

type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Args     interface{} `json:"args"`
}

type AIConfig struct {
	Embedder  ProviderConfig `json:"embedder"`
	Generator ProviderConfig `json:"generator"`
	// Fallback providers are tried in order when the primary fails.
	EmbedderFallbacks  []ProviderConfig `json:"embedder_fallbacks"`
	GeneratorFallbacks []ProviderConfig `json:"generator_fallbacks"`
	TimeoutSec         int              `json:"timeout_sec"`
	// Embedding retry policy.
	MaxRetries   int `json:"max_retries"`
	BaseDelayMS  int `json:"base_delay_ms"`
	CacheSize    int `json:"cache_size"`
	CacheTTLMin  int `json:"cache_ttl_min"`
	CacheMaxDays int `json:"cache_max_days"`
}

type RagConfig struct {
	Dimension     int `json:"dimension"`
	MaxChunkSize  int `json:"max_chunk_size"`
	ChunkOverlap  int `json:"chunk_overlap"`
	TopK          int `json:"top_k"`
	EmbedWorkers  int `json:"embed_workers"`
	HistoryWindow int `json:"history_window"`
	// NoMatchPolicy picks what happens when the tenant index has no
	// matches: "fallback_message" returns FallbackMessage verbatim,
	// "ungrounded" makes one generation call without context.
	NoMatchPolicy   string `json:"no_match_policy"`
	FallbackMessage string `json:"fallback_message"`
}

type RateLimitConfig struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
}

const (
	PolicyFallbackMessage = "fallback_message"
	PolicyUngrounded      = "ungrounded"

	defaultFallbackMessage = "The answer to this question is not present in the provided data."
)

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "qdrant"
	}
	switch cfg.VectorStore.Type {
	case "qdrant":
		if cfg.VectorStore.Qdrant.URL == "" {
			return nil, fmt.Errorf("vector_store.qdrant.url is required")
		}
	case "pgvector":
		if cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres.dsn is required for pgvector store")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("vector_store.type must be qdrant, pgvector or memory")
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "documents"
	}
	if cfg.VectorStore.TimeoutSec <= 0 {
		cfg.VectorStore.TimeoutSec = 10
	}
	if cfg.AI.Embedder.Provider == "" {
		return nil, fmt.Errorf("ai.embedder.provider is required")
	}
	if cfg.AI.Generator.Provider == "" {
		return nil, fmt.Errorf("ai.generator.provider is required")
	}
	if cfg.AI.TimeoutSec <= 0 {
		cfg.AI.TimeoutSec = 30
	}
	if cfg.AI.MaxRetries <= 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.AI.BaseDelayMS <= 0 {
		cfg.AI.BaseDelayMS = 1000
	}
	if cfg.AI.CacheSize <= 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTLMin <= 0 {
		cfg.AI.CacheTTLMin = 120
	}
	if cfg.Rag.Dimension <= 0 {
		cfg.Rag.Dimension = 1536
	}
	if cfg.Rag.MaxChunkSize <= 0 {
		cfg.Rag.MaxChunkSize = 2000
	}
	if cfg.Rag.ChunkOverlap <= 0 {
		cfg.Rag.ChunkOverlap = 200
	}
	if cfg.Rag.ChunkOverlap >= cfg.Rag.MaxChunkSize {
		return nil, fmt.Errorf("rag.chunk_overlap must be smaller than rag.max_chunk_size")
	}
	if cfg.Rag.TopK <= 0 {
		cfg.Rag.TopK = 5
	}
	if cfg.Rag.EmbedWorkers <= 0 {
		cfg.Rag.EmbedWorkers = 4
	}
	if cfg.Rag.HistoryWindow <= 0 {
		cfg.Rag.HistoryWindow = 4
	}
	if cfg.Rag.NoMatchPolicy == "" {
		cfg.Rag.NoMatchPolicy = PolicyFallbackMessage
	}
	if cfg.Rag.NoMatchPolicy != PolicyFallbackMessage && cfg.Rag.NoMatchPolicy != PolicyUngrounded {
		return nil, fmt.Errorf("rag.no_match_policy must be %s or %s", PolicyFallbackMessage, PolicyUngrounded)
	}
	if cfg.Rag.FallbackMessage == "" {
		cfg.Rag.FallbackMessage = defaultFallbackMessage
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		cfg.RateLimit.MaxRequests = 10
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = 3600
	}
	return &cfg, nil
}
