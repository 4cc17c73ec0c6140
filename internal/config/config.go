// Package config provides configuration loading and structs for the tanya chatbot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/tanya/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Documents DocumentsConfig `yaml:"documents"`
	Index     IndexConfig     `yaml:"index"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Agent     AgentConfig     `yaml:"agent"`
	Memory    MemoryConfig    `yaml:"memory"`
	Server    ServerConfig    `yaml:"server"`
	CLI       CLIConfig       `yaml:"cli"`
}

// DocumentsConfig describes where source documents live.
type DocumentsConfig struct {
	Directory     string        `yaml:"directory"`
	Extensions    []string      `yaml:"extensions"`
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// IndexConfig holds the persisted index location. Path is a directory.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// ChunkingConfig holds chunk size and overlap, both measured in runes.
// An explicit overlap of 0 is kept; leaving it unset selects the default.
type ChunkingConfig struct {
	Size    int  `yaml:"size"`
	Overlap *int `yaml:"overlap"`
}

// OverlapOrDefault returns the configured overlap; defaults to 150, or a quarter of the
// chunk size when 150 does not fit.
func (c *ChunkingConfig) OverlapOrDefault() int {
	if c.Overlap != nil {
		return *c.Overlap
	}
	if DefaultChunkOverlap >= c.Size {
		return c.Size / 4
	}
	return DefaultChunkOverlap
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	Dimensions        int           `yaml:"dimensions"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	BatchSize         int           `yaml:"batch_size"`
	CacheSize         int           `yaml:"cache_size"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// LLMConfig holds chat completion settings.
type LLMConfig struct {
	Model             string        `yaml:"model"`
	Temperature       *float64      `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// TemperatureOrDefault returns the configured temperature; defaults to 0.2 when unset.
func (l *LLMConfig) TemperatureOrDefault() float64 {
	if l.Temperature != nil {
		return *l.Temperature
	}
	return DefaultTemperature
}

// RetrievalConfig holds retrieval strategy settings.
type RetrievalConfig struct {
	K              int      `yaml:"k"`
	Strategy       string   `yaml:"strategy"`
	FetchK         int      `yaml:"fetch_k"`
	Lambda         *float64 `yaml:"lambda"`
	KeywordWeight  float64  `yaml:"keyword_weight"`
	SemanticWeight float64  `yaml:"semantic_weight"`
}

// LambdaOrDefault returns the MMR relevance weight; defaults to 0.5 when unset.
// 0 ranks purely for diversity and is a valid setting.
func (r *RetrievalConfig) LambdaOrDefault() float64 {
	if r.Lambda != nil {
		return *r.Lambda
	}
	return DefaultLambda
}

// AgentConfig holds the assistant persona. SystemPrompt overrides the built-in instructions.
type AgentConfig struct {
	Domain       string `yaml:"domain"`
	SystemPrompt string `yaml:"system_prompt"`
}

// MemoryConfig caps per-session history. A negative MaxTurns disables the cap.
type MemoryConfig struct {
	MaxTurns int `yaml:"max_turns"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	APIKey         string        `yaml:"api_key"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	MaxSessions    int           `yaml:"max_sessions"`
	MaxSources     int           `yaml:"max_sources"`
}

// CLIConfig holds interactive loop settings.
type CLIConfig struct {
	MaxSources int `yaml:"max_sources"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.ExpandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config with all defaults applied and paths resolved against the working directory.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	if wd, err := os.Getwd(); err == nil {
		cfg.ExpandPaths(wd)
	}
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ExpandPaths resolves the documents and index paths against baseDir.
func (c *Config) ExpandPaths(baseDir string) {
	c.Documents.Directory = expandPath(c.Documents.Directory, baseDir)
	c.Index.Path = expandPath(c.Index.Path, baseDir)
}

// Validate reports configuration errors that make the pipeline unusable.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if overlap := c.Chunking.OverlapOrDefault(); overlap < 0 || overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, overlap)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	switch c.Retrieval.Strategy {
	case StrategyTopK, StrategyMMR, StrategyHybrid:
	default:
		return fmt.Errorf("unknown retrieval.strategy %q", c.Retrieval.Strategy)
	}
	if lambda := c.Retrieval.LambdaOrDefault(); lambda < 0 || lambda > 1 {
		return fmt.Errorf("retrieval.lambda must be in [0, 1], got %f", lambda)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider)
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index.path must be set")
	}
	return nil
}

// CheckCredentials reports missing API keys. The completion key is only checked when needLLM is set.
// A custom base URL may point at a server that needs no key, so it waives the check.
func (c *Config) CheckCredentials(needLLM bool) error {
	if c.Embedding.Provider == ProviderOpenAI && c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("%w: set OPENAI_API_KEY or embedding.api_key", models.ErrMissingCredentials)
	}
	if needLLM && c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		return fmt.Errorf("%w: set OPENAI_API_KEY or llm.api_key", models.ErrMissingCredentials)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to baseDir;
// "~/" is relative to the home directory; other relative paths are relative to baseDir.
func expandPath(path string, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(baseDir, path)
}
