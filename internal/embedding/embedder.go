// Package embedding turns text into vectors through a hosted API, a deterministic local
// hasher, and a caching decorator.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector length, or 0 when it is not known until the first call.
	Dimensions() int
	ModelName() string
	Close() error
}
