// Package storage persists the chunk index: chunk text, positions and embeddings,
// plus the metadata needed to reject an incompatible index at load time.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/tanya/internal/models"
)

// IndexMeta describes how a persisted index was built.
type IndexMeta struct {
	EmbeddingModel string
	Dimensions     int
	ChunkSize      int
	ChunkOverlap   int
	BuiltAt        time.Time
}

// Storage defines chunk index persistence operations.
type Storage interface {
	// ReplaceChunks atomically stores chunks and meta. A non-empty store is only
	// cleared when overwrite is set; otherwise models.ErrIndexExists is returned.
	ReplaceChunks(ctx context.Context, chunks []*models.Chunk, meta IndexMeta, overwrite bool) error
	ListChunks(ctx context.Context) ([]*models.Chunk, error)
	// Meta returns nil when no index has been committed.
	Meta(ctx context.Context) (*IndexMeta, error)

	// Stats
	CountChunks(ctx context.Context) (int64, error)
	CountSources(ctx context.Context) (int64, error)
	DiskUsage() (int64, error)

	Close() error
}
