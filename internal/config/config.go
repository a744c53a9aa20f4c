package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	LogConfig logger.LogConfig `json:"log_config"`
	DB        DatabaseConfig   `json:"db"`
	Vault     VaultConfig      `json:"vault"`
	Chunking  ChunkingConfig   `json:"chunking"`
	AI        AIConfig         `json:"ai"`
	Search    SearchConfig     `json:"search"`
	Schedule  ScheduleConfig   `json:"schedule"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type VaultConfig struct {
	Name     string           `json:"name"`
	Store    VaultStoreConfig `json:"store"`
	Include  string           `json:"include"`
	Excludes []string         `json:"excludes"`
}

type VaultStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ChunkingConfig struct {
	TargetTokens  int `json:"target_tokens"`
	OverlapTokens int `json:"overlap_tokens"`
}

// EmbedProviderConfig is one provider entry in the fallback chain.
type EmbedProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	EmbedProvider     string                `json:"embed_provider"`
	EmbedModel        string                `json:"embed_model"`
	EmbedData         interface{}           `json:"embed_data"`
	Fallbacks         []EmbedProviderConfig `json:"fallbacks"`
	BatchSize         int                   `json:"batch_size"`
	MaxRetries        int                   `json:"max_retries"`
	RetryDelaySeconds int                   `json:"retry_delay_seconds"`
	EmbeddingDim      int                   `json:"embedding_dim"`
	CacheSize         int                   `json:"cache_size"`
	CacheTTLMinutes   int                   `json:"cache_ttl_minutes"`
}

type SearchConfig struct {
	Enable       bool    `json:"enable"`
	MinScore     float64 `json:"min_score"`
	TopK         int     `json:"top_k"`
	MaxCitations int     `json:"max_citations"`
}

type ScheduleConfig struct {
	Reindex       string `json:"reindex"`
	CacheCleanup  string `json:"cache_cleanup"`
	CacheKeepDays int    `json:"cache_keep_days"`
}

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
	if cfg.DB.DSN == "" && (cfg.DB.Host == "" || cfg.DB.DBName == "") {
		return nil, fmt.Errorf("db.dsn or db.host/db.db_name is required")
	}
	if cfg.Vault.Name == "" {
		return nil, fmt.Errorf("vault.name is required")
	}
	if cfg.Vault.Store.Type == "" {
		cfg.Vault.Store.Type = "local"
	}
	if cfg.Vault.Include == "" {
		cfg.Vault.Include = "**/*.md"
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Chunking.TargetTokens <= 0 {
		cfg.Chunking.TargetTokens = 500
	}
	if cfg.Chunking.OverlapTokens <= 0 {
		cfg.Chunking.OverlapTokens = 50
	}
	if cfg.AI.EmbedProvider == "" {
		return nil, fmt.Errorf("ai.embed_provider is required")
	}
	if cfg.AI.BatchSize <= 0 {
		cfg.AI.BatchSize = 100
	}
	if cfg.AI.MaxRetries <= 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.AI.RetryDelaySeconds <= 0 {
		cfg.AI.RetryDelaySeconds = 2
	}
	if cfg.AI.EmbeddingDim <= 0 {
		cfg.AI.EmbeddingDim = 768
	}
	if cfg.AI.CacheSize <= 0 {
		cfg.AI.CacheSize = 10000
	}
	if cfg.AI.CacheTTLMinutes <= 0 {
		cfg.AI.CacheTTLMinutes = 120
	}
	if cfg.Search.MinScore <= 0 {
		cfg.Search.MinScore = 0.55
	}
	if cfg.Search.TopK <= 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Search.MaxCitations <= 0 {
		cfg.Search.MaxCitations = 5
	}
	if cfg.Schedule.Reindex == "" {
		cfg.Schedule.Reindex = "*/30 * * * *"
	}
	if cfg.Schedule.CacheCleanup == "" {
		cfg.Schedule.CacheCleanup = "0 3 * * *"
	}
	if cfg.Schedule.CacheKeepDays <= 0 {
		cfg.Schedule.CacheKeepDays = 30
	}
	return &cfg, nil
}
