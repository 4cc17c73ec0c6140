// Package keyword provides BM25 keyword search over chunks, used by hybrid retrieval.
package keyword

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// Index defines keyword search operations over chunks.
type Index interface {
	IndexChunks(ctx context.Context, chunks []*models.Chunk) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit. ID is the chunk ID.
type Result struct {
	ID    string
	Score float64
}
