package config

import "time"

// Retrieval strategies.
const (
	StrategyTopK   = "top_k"
	StrategyMMR    = "mmr"
	StrategyHybrid = "hybrid"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Defaults for settings where zero is a meaningful value, so unset is told apart by a nil pointer.
const (
	DefaultTemperature  = 0.2
	DefaultChunkOverlap = 150
	DefaultLambda       = 0.5
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Documents.Directory == "" {
		cfg.Documents.Directory = "./data/docs"
	}
	if cfg.Documents.Extensions == nil {
		cfg.Documents.Extensions = []string{".txt"}
	}
	if cfg.Documents.WatchDebounce == 0 {
		cfg.Documents.WatchDebounce = 2 * time.Second
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "./data/index"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 800
	}
	if cfg.Chunking.Overlap == nil {
		overlap := cfg.Chunking.OverlapOrDefault()
		cfg.Chunking.Overlap = &overlap
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOpenAI
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 && cfg.Embedding.Provider == ProviderMock {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-3.5-turbo"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 5
	}
	if cfg.Retrieval.Strategy == "" {
		cfg.Retrieval.Strategy = StrategyMMR
	}
	if cfg.Retrieval.FetchK == 0 {
		cfg.Retrieval.FetchK = 20
	}
	if cfg.Retrieval.Lambda == nil {
		lambda := DefaultLambda
		cfg.Retrieval.Lambda = &lambda
	}
	if cfg.Retrieval.KeywordWeight == 0 && cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
		cfg.Retrieval.SemanticWeight = 0.7
	}
	if cfg.Agent.Domain == "" {
		cfg.Agent.Domain = "personal finance"
	}
	if cfg.Memory.MaxTurns == 0 {
		cfg.Memory.MaxTurns = 20
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Workers == 0 {
		cfg.Server.Workers = 4
	}
	if cfg.Server.QueueSize == 0 {
		cfg.Server.QueueSize = 32
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 90 * time.Second
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = 1000
	}
	if cfg.Server.MaxSources == 0 {
		cfg.Server.MaxSources = 5
	}
	if cfg.CLI.MaxSources == 0 {
		cfg.CLI.MaxSources = 3
	}
}
