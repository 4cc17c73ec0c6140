package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
)

func testIndexer(t *testing.T, docsDir, indexDir string) (*Indexer, *search.Engine) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(indexDir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	embedder := embedding.NewMockEmbedder(64)
	t.Cleanup(func() { _ = embedder.Close() })
	cfg := &config.RetrievalConfig{K: 5, Strategy: config.StrategyTopK, FetchK: 20}
	engine := search.NewEngine(store, embedder, cfg)
	t.Cleanup(func() { _ = engine.Close() })
	return NewIndexer(engine, NewChunker(80, 20), extract.NewExtractor(), docsDir, []string{".txt"}), engine
}

func TestIndexer_BuildSampleFAQ(t *testing.T) {
	docs := t.TempDir()
	writeDocs(t, docs, map[string]string{
		"sample_faq.txt": "Q: What is a budget? A: A budget is a plan for spending.",
	})
	idx, engine := testIndexer(t, docs, filepath.Join(t.TempDir(), "index"))
	ctx := context.Background()

	stats, err := idx.Build(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 1 || stats.Chunks != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	results, err := engine.Retrieve(ctx, "what is a budget", 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.Source != "sample_faq.txt" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestIndexer_BuildEmptyDirectory(t *testing.T) {
	idx, engine := testIndexer(t, t.TempDir(), t.TempDir())

	_, err := idx.Build(context.Background(), false)
	if !errors.Is(err, models.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
	if engine.Loaded() {
		t.Error("failed build must not produce a usable index")
	}
}

func TestIndexer_BuildOnlyEmptyFiles(t *testing.T) {
	docs := t.TempDir()
	writeDocs(t, docs, map[string]string{"blank.txt": ""})
	idx, _ := testIndexer(t, docs, t.TempDir())

	if _, err := idx.Build(context.Background(), false); !errors.Is(err, models.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestIndexer_MissingDirectory(t *testing.T) {
	idx, _ := testIndexer(t, filepath.Join(t.TempDir(), "nope"), t.TempDir())

	if _, err := idx.Build(context.Background(), false); !errors.Is(err, models.ErrDocumentsDirNotFound) {
		t.Fatalf("expected ErrDocumentsDirNotFound, got %v", err)
	}
}

func TestIndexer_EnsureIndex(t *testing.T) {
	docs := t.TempDir()
	writeDocs(t, docs, map[string]string{
		"a.txt": "Index funds track the market at low cost.",
		"b.txt": "Bonds pay fixed interest.",
	})
	indexDir := t.TempDir()
	ctx := context.Background()

	first, engine := testIndexer(t, docs, indexDir)
	built, err := first.EnsureIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !built || !engine.Loaded() {
		t.Fatalf("first EnsureIndex should build and load (built=%v)", built)
	}

	second, engine2 := testIndexer(t, docs, indexDir)
	built, err = second.EnsureIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if built {
		t.Error("second EnsureIndex should load the existing index")
	}
	if !engine2.Loaded() {
		t.Error("second engine should be loaded")
	}
}

func TestIndexer_Rebuild(t *testing.T) {
	docs := t.TempDir()
	writeDocs(t, docs, map[string]string{"a.txt": "Index funds track the market."})
	idx, engine := testIndexer(t, docs, t.TempDir())
	ctx := context.Background()

	if _, err := idx.Build(ctx, false); err != nil {
		t.Fatal(err)
	}
	writeDocs(t, docs, map[string]string{"b.txt": "Bonds pay fixed interest."})

	if _, err := idx.Build(ctx, false); !errors.Is(err, models.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
	stats, err := idx.Rebuild(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 2 {
		t.Errorf("rebuild should see 2 documents, got %d", stats.Documents)
	}
	results, err := engine.Retrieve(ctx, "bonds", 5, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 chunks after rebuild, got %d", len(results))
	}
}
