package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hyperjump/tanya/internal/config"
)

const defaultConfigFile = "config.yaml"

// Environment variables that override the config file.
const (
	envOpenAIAPIKey   = "OPENAI_API_KEY"
	envOpenAIBaseURL  = "OPENAI_BASE_URL"
	envServerAPIKey   = "API_KEY"
	envLLMModel       = "LLM_MODEL"
	envEmbeddingModel = "EMBEDDING_MODEL"
	envAgentDomain    = "AGENT_DOMAIN"
	envDocsDir        = "TANYA_DOCS_DIR"
	envIndexPath      = "TANYA_INDEX_PATH"
)

// loadConfig resolves the config file, loads .env, overlays the environment and validates.
// An empty path means ./config.yaml when it exists and built-in defaults otherwise.
// Returns the config and the path that was loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	var cfg *config.Config
	if resolved == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.Load(resolved)
		if err != nil {
			return nil, "", err
		}
	}

	if err := loadDotEnv(resolved); err != nil {
		return nil, "", err
	}
	applyEnv(cfg, newEnv())

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, resolved, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("failed to read config: %w", err)
		}
		return path, nil
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile, nil
	}
	return "", nil
}

// loadDotEnv loads .env from the working directory and, when different, from the config
// file's directory. Variables already in the environment are never overwritten.
func loadDotEnv(configPath string) error {
	files := []string{".env"}
	if configPath != "" {
		if p := filepath.Join(filepath.Dir(configPath), ".env"); filepath.Clean(p) != ".env" {
			files = append(files, p)
		}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func newEnv() *viper.Viper {
	v := viper.New()
	for _, name := range []string{
		envOpenAIAPIKey, envOpenAIBaseURL, envServerAPIKey, envLLMModel,
		envEmbeddingModel, envAgentDomain, envDocsDir, envIndexPath,
	} {
		_ = v.BindEnv(name, name)
	}
	return v
}

// applyEnv overlays non-empty environment values on cfg.
func applyEnv(cfg *config.Config, v *viper.Viper) {
	set := func(dst *string, name string) {
		if val := v.GetString(name); val != "" {
			*dst = val
		}
	}
	set(&cfg.Embedding.APIKey, envOpenAIAPIKey)
	set(&cfg.LLM.APIKey, envOpenAIAPIKey)
	set(&cfg.Embedding.BaseURL, envOpenAIBaseURL)
	set(&cfg.LLM.BaseURL, envOpenAIBaseURL)
	set(&cfg.Server.APIKey, envServerAPIKey)
	set(&cfg.LLM.Model, envLLMModel)
	set(&cfg.Embedding.Model, envEmbeddingModel)
	set(&cfg.Agent.Domain, envAgentDomain)

	if val := v.GetString(envDocsDir); val != "" {
		cfg.Documents.Directory = absPath(val)
	}
	if val := v.GetString(envIndexPath); val != "" {
		cfg.Index.Path = absPath(val)
	}
}

// absPath resolves environment paths against the working directory.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
