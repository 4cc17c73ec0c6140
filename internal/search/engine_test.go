package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/fileid"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
)

func testRetrievalConfig() *config.RetrievalConfig {
	return &config.RetrievalConfig{
		K:              5,
		Strategy:       config.StrategyMMR,
		FetchK:         20,
		KeywordWeight:  0.3,
		SemanticWeight: 0.7,
	}
}

func newTestEngine(t *testing.T, dir string, emb embedding.Embedder) *Engine {
	t.Helper()
	store, err := storage.NewSQLiteStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(store, emb, testRetrievalConfig(), WithChunkSettings(800, 150))
	t.Cleanup(func() {
		_ = engine.Close()
		_ = store.Close()
	})
	return engine
}

func chunk(source string, index int, content string) *models.Chunk {
	return &models.Chunk{
		ID:      fileid.ChunkID(source, index, content),
		Source:  source,
		Index:   index,
		Content: content,
	}
}

func financeChunks() []*models.Chunk {
	return []*models.Chunk{
		chunk("sample_faq.txt", 0, "Q: What is a budget? A: A budget is a plan for spending."),
		chunk("retirement.txt", 0, "A Roth IRA is a retirement account funded with after tax money."),
		chunk("retirement.txt", 1, "Employer 401k plans often include a matching contribution."),
		chunk("debt.txt", 0, "Pay off high interest credit card debt before investing."),
		chunk("saving.txt", 0, "An emergency fund should cover three to six months of expenses."),
		chunk("saving.txt", 1, "Automate savings transfers on payday so you save first."),
		chunk("taxes.txt", 0, "Capital gains on investments held over a year are taxed at a lower rate."),
	}
}

func TestEngine_SampleFAQScenario(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, t.TempDir(), embedding.NewMockEmbedder(256))

	if err := engine.Build(ctx, financeChunks(), false); err != nil {
		t.Fatal(err)
	}
	for _, strategy := range []string{config.StrategyTopK, config.StrategyMMR, config.StrategyHybrid} {
		t.Run(strategy, func(t *testing.T) {
			results, err := engine.Retrieve(ctx, "what is a budget", 1, strategy)
			if err != nil {
				t.Fatal(err)
			}
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].Chunk.Source != "sample_faq.txt" {
				t.Errorf("source = %q, want sample_faq.txt", results[0].Chunk.Source)
			}
		})
	}
}

func TestEngine_RetrieveCardinalityAndOrder(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, t.TempDir(), embedding.NewMockEmbedder(256))
	chunks := financeChunks()
	if err := engine.Build(ctx, chunks, false); err != nil {
		t.Fatal(err)
	}

	for _, strategy := range []string{config.StrategyTopK, config.StrategyMMR, config.StrategyHybrid} {
		for _, k := range []int{1, 3, 5, len(chunks), len(chunks) + 3} {
			t.Run(fmt.Sprintf("%s/k=%d", strategy, k), func(t *testing.T) {
				results, err := engine.Retrieve(ctx, "retirement savings plan", k, strategy)
				if err != nil {
					t.Fatal(err)
				}
				want := min(k, len(chunks))
				if len(results) != want {
					t.Fatalf("expected %d results, got %d", want, len(results))
				}
				seen := make(map[string]bool)
				for _, r := range results {
					if seen[r.Chunk.ID] {
						t.Errorf("duplicate chunk %s", r.Chunk.ID)
					}
					seen[r.Chunk.ID] = true
				}
				if strategy == config.StrategyTopK {
					for i := 1; i < len(results); i++ {
						if results[i-1].Score < results[i].Score {
							t.Errorf("scores increase at %d: %f < %f", i, results[i-1].Score, results[i].Score)
						}
					}
				}
			})
		}
	}
}

func TestEngine_DefaultK(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, t.TempDir(), embedding.NewMockEmbedder(64))
	if err := engine.Build(ctx, financeChunks(), false); err != nil {
		t.Fatal(err)
	}
	results, err := engine.Retrieve(ctx, "budget", 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Errorf("default k should be 5, got %d", len(results))
	}
}

func TestEngine_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	engine := newTestEngine(t, dir, embedding.NewMockEmbedder(64))

	if _, err := engine.Retrieve(ctx, "budget", 1, ""); !errors.Is(err, models.ErrIndexNotFound) {
		t.Errorf("before build: expected ErrIndexNotFound, got %v", err)
	}
	if err := engine.Load(ctx); !errors.Is(err, models.ErrIndexNotFound) {
		t.Errorf("Load on empty store: expected ErrIndexNotFound, got %v", err)
	}
	if err := engine.Build(ctx, nil, false); !errors.Is(err, models.ErrNoDocuments) {
		t.Errorf("Build with no chunks: expected ErrNoDocuments, got %v", err)
	}
	if ok, _ := Exists(dir); ok {
		t.Error("Exists should be false before a build")
	}

	if err := engine.Build(ctx, financeChunks(), false); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Retrieve(ctx, "   ", 1, ""); !errors.Is(err, models.ErrEmptyQuery) {
		t.Errorf("blank query: expected ErrEmptyQuery, got %v", err)
	}
	if _, err := engine.Retrieve(ctx, "budget", 1, "random"); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if ok, _ := Exists(dir); !ok {
		t.Error("Exists should be true after a build")
	}
}

func TestEngine_BuildRejectsExistingUnlessOverwrite(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, t.TempDir(), embedding.NewMockEmbedder(64))
	if err := engine.Build(ctx, financeChunks(), false); err != nil {
		t.Fatal(err)
	}

	replacement := []*models.Chunk{chunk("only.txt", 0, "a single replacement chunk")}
	if err := engine.Build(ctx, replacement, false); !errors.Is(err, models.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
	results, _ := engine.Retrieve(ctx, "replacement", 10, config.StrategyTopK)
	if len(results) != len(financeChunks()) {
		t.Errorf("rejected build changed the index: %d results", len(results))
	}

	if err := engine.Build(ctx, replacement, true); err != nil {
		t.Fatal(err)
	}
	results, err := engine.Retrieve(ctx, "replacement", 10, config.StrategyTopK)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.Source != "only.txt" {
		t.Errorf("overwrite did not replace the index: %+v", results)
	}
}

func TestEngine_LoadFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	builder := newTestEngine(t, dir, embedding.NewMockEmbedder(64))
	if err := builder.Build(ctx, financeChunks(), false); err != nil {
		t.Fatal(err)
	}

	loader := newTestEngine(t, dir, embedding.NewMockEmbedder(64))
	if loader.Loaded() {
		t.Fatal("new engine should not be loaded")
	}
	if err := loader.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if !loader.Loaded() {
		t.Fatal("engine should be loaded")
	}

	want, _ := builder.Retrieve(ctx, "emergency fund", 3, config.StrategyTopK)
	got, err := loader.Retrieve(ctx, "emergency fund", 3, config.StrategyTopK)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i].Chunk.ID != want[i].Chunk.ID {
			t.Errorf("position %d: loaded %s, built %s", i, got[i].Chunk.ID, want[i].Chunk.ID)
		}
	}

	st, err := loader.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Exists || st.Chunks != 7 || st.Sources != 5 || st.EmbeddingModel != "mock-hash" || st.Dimensions != 64 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.ChunkSize != 800 || st.ChunkOverlap != 150 {
		t.Errorf("chunk settings not recorded: %+v", st)
	}
}

func TestEngine_LoadRejectsIncompatibleIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	builder := newTestEngine(t, dir, embedding.NewMockEmbedder(64))
	if err := builder.Build(ctx, financeChunks(), false); err != nil {
		t.Fatal(err)
	}

	loader := newTestEngine(t, dir, embedding.NewMockEmbedder(128))
	if err := loader.Load(ctx); !errors.Is(err, models.ErrIndexIncompatible) {
		t.Errorf("expected ErrIndexIncompatible, got %v", err)
	}
}

type failingEmbedder struct {
	*embedding.MockEmbedder
}

func (f failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, &models.CapabilityError{Capability: models.ErrEmbeddingUnavailable, Op: "create embeddings", Err: errors.New("timeout")}
}

func TestEngine_BuildFailureLeavesNoIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	engine := newTestEngine(t, dir, failingEmbedder{embedding.NewMockEmbedder(64)})

	err := engine.Build(ctx, financeChunks(), false)
	if !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if ok, _ := Exists(dir); ok {
		t.Error("failed build must not leave an index behind")
	}
	if _, err := engine.Retrieve(ctx, "budget", 1, ""); !errors.Is(err, models.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestEngine_ConcurrentRetrieveDuringRebuild(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, t.TempDir(), embedding.NewMockEmbedder(64))
	if err := engine.Build(ctx, financeChunks(), false); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				results, err := engine.Retrieve(ctx, "budget plan", 3, "")
				if err != nil {
					t.Errorf("retrieve: %v", err)
					return
				}
				if len(results) != 3 {
					t.Errorf("partial index observed: %d results", len(results))
					return
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		if err := engine.Build(ctx, financeChunks(), true); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}
