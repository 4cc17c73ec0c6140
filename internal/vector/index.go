// Package vector provides the in-memory similarity index over chunk embeddings.
package vector

import "context"

// Index stores embeddings by chunk ID and answers nearest-neighbour queries.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Vector(id string) ([]float32, bool)
	Size() int
	Close() error
}

// Result is a single vector search hit. ID is the chunk ID.
type Result struct {
	ID    string
	Score float64 // cosine similarity; vectors are normalized on insert
}
