package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/llm"
	"github.com/hyperjump/tanya/internal/rag"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
)

// Components is the wired pipeline. Composer is nil when the command needs no completions.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Engine   *search.Engine
	Indexer  *indexer.Indexer
	Composer *rag.Composer
}

func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, withLLM bool) (*Components, error) {
	if err := cfg.CheckCredentials(withLLM); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(&cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Index.Path)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	engine := search.NewEngine(store, embedder, &cfg.Retrieval,
		search.WithLogger(logger),
		search.WithChunkSettings(cfg.Chunking.Size, cfg.Chunking.OverlapOrDefault()),
	)
	idx := indexer.NewIndexer(
		engine,
		indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.OverlapOrDefault()),
		extract.NewExtractor(),
		cfg.Documents.Directory,
		cfg.Documents.Extensions,
		indexer.WithLogger(logger),
	)

	c := &Components{
		Storage:  store,
		Embedder: embedder,
		Engine:   engine,
		Indexer:  idx,
	}
	if withLLM {
		c.Composer = rag.NewComposer(engine, llm.NewOpenAIChat(&cfg.LLM, logger),
			rag.WithLogger(logger),
			rag.WithInstructions(instructions(&cfg.Agent)),
			rag.WithCompletionOptions(llm.Options{
				Temperature: cfg.LLM.TemperatureOrDefault(),
				MaxTokens:   cfg.LLM.MaxTokens,
			}),
			rag.WithRetrieval(cfg.Retrieval.K, cfg.Retrieval.Strategy),
		)
	}
	return c, nil
}

func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch cfg.Provider {
	case config.ProviderMock:
		inner = embedding.NewMockEmbedder(cfg.Dimensions)
	case config.ProviderOpenAI:
		inner = embedding.NewOpenAIEmbedder(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	logger.Info("embedder initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", inner.ModelName()),
		zap.Int("cache_size", cfg.CacheSize))
	return embedding.NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func instructions(agent *config.AgentConfig) string {
	if agent.SystemPrompt != "" {
		return agent.SystemPrompt
	}
	return rag.DefaultInstructions(agent.Domain)
}
