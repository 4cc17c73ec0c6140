// Package indexer loads documents from the documents directory, chunks them and builds the
// vector index from the result.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
)

// Indexer turns the documents directory into a built (or loaded) search index.
type Indexer struct {
	engine     *search.Engine
	chunker    *Chunker
	extractor  *extract.Extractor
	dir        string
	extensions []string
	logger     *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer that reads files with the given extensions from dir.
// extractor may be nil; when nil, files are read as plain text.
func NewIndexer(
	engine *search.Engine,
	chunker *Chunker,
	extractor *extract.Extractor,
	dir string,
	extensions []string,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		engine:     engine,
		chunker:    chunker,
		extractor:  extractor,
		dir:        dir,
		extensions: extensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// BuildStats summarizes one build.
type BuildStats struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Duration  time.Duration `json:"duration"`
}

// Build loads and chunks every document and builds the index. A directory with no matching
// files, or only empty files, returns models.ErrNoDocuments. Without overwrite an existing
// index is left alone and models.ErrIndexExists is returned.
func (idx *Indexer) Build(ctx context.Context, overwrite bool) (*BuildStats, error) {
	start := time.Now()
	docs, err := LoadDocuments(idx.dir, idx.extensions, idx.extractor)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", models.ErrNoDocuments, idx.dir)
	}

	var chunks []*models.Chunk
	for _, doc := range docs {
		docChunks := idx.chunker.Chunk(doc)
		idx.logger.Debug("document chunked", zap.String("source", doc.ID), zap.Int("chunks", len(docChunks)))
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: all documents in %s are empty", models.ErrNoDocuments, idx.dir)
	}

	if err := idx.engine.Build(ctx, chunks, overwrite); err != nil {
		return nil, err
	}
	stats := &BuildStats{Documents: len(docs), Chunks: len(chunks), Duration: time.Since(start)}
	idx.logger.Info("indexing complete",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Duration("took", stats.Duration))
	return stats, nil
}

// Rebuild replaces the existing index with one built from the current documents.
func (idx *Indexer) Rebuild(ctx context.Context) (*BuildStats, error) {
	return idx.Build(ctx, true)
}

// EnsureIndex loads the persisted index, building it first when none exists. If another
// process commits an index between the check and the build, that index is loaded instead.
// It reports whether a build happened.
func (idx *Indexer) EnsureIndex(ctx context.Context) (bool, error) {
	err := idx.engine.Load(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, models.ErrIndexNotFound) {
		return false, err
	}

	idx.logger.Info("no index found, building", zap.String("dir", idx.dir))
	if _, err := idx.Build(ctx, false); err != nil {
		if errors.Is(err, models.ErrIndexExists) {
			idx.logger.Info("index was built concurrently, loading it")
			return false, idx.engine.Load(ctx)
		}
		return false, err
	}
	return true, nil
}
