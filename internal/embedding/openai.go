package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/apiclient"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/pkg/utils"
)

var _ Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. Vectors are L2-normalized.
type OpenAIEmbedder struct {
	client     *openai.Client
	caller     *apiclient.Caller
	model      string
	requested  int
	batchSize  int
	dimensions int
	mu         sync.RWMutex
}

// NewOpenAIEmbedder creates an embedder from cfg. When cfg.Dimensions is set it is sent as the
// requested output size; otherwise the dimension is learned from the first response.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	apiCfg := apiclient.Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	return &OpenAIEmbedder{
		client:     apiclient.NewOpenAIClient(apiCfg),
		caller:     apiclient.NewCaller(models.ErrEmbeddingUnavailable, apiCfg, apiclient.WithLogger(logger)),
		model:      cfg.Model,
		requested:  cfg.Dimensions,
		batchSize:  batch,
		dimensions: cfg.Dimensions,
	}
}

// Embed embeds a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in batches of the configured size, preserving order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse
	err := e.caller.Do(ctx, "create embeddings", func(ctx context.Context) error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input:      batch,
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: e.requested,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, e.invalid(fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data)))
	}

	vecs := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) || vecs[d.Index] != nil {
			return nil, e.invalid(fmt.Errorf("unexpected embedding index %d", d.Index))
		}
		if err := e.checkDimensions(len(d.Embedding)); err != nil {
			return nil, e.invalid(err)
		}
		v := d.Embedding
		utils.NormalizeL2(v)
		vecs[d.Index] = v
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) checkDimensions(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("empty embedding")
	}
	if e.dimensions == 0 {
		e.dimensions = n
		return nil
	}
	if n != e.dimensions {
		return fmt.Errorf("embedding dimension %d, expected %d", n, e.dimensions)
	}
	return nil
}

func (e *OpenAIEmbedder) invalid(err error) error {
	return &models.CapabilityError{Capability: models.ErrEmbeddingUnavailable, Op: "create embeddings", Err: err}
}

// Dimensions returns the configured dimension, or the observed one after the first call.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// ModelName returns the embedding model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Close is a no-op; the HTTP client holds no dedicated resources.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
