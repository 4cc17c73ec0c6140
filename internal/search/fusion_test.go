package search

import (
	"testing"

	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/vector"
)

func TestNormalizeKeywordScores(t *testing.T) {
	results := []*keyword.Result{
		{ID: "a", Score: 2},
		{ID: "b", Score: 4},
		{ID: "c", Score: 1},
	}
	m := NormalizeKeywordScores(results)
	if m["b"] != 1.0 {
		t.Errorf("max score should be 1.0, got %f", m["b"])
	}
	if m["a"] != 0.5 {
		t.Errorf("a should be 0.5, got %f", m["a"])
	}
	if len(m) != 3 {
		t.Errorf("expected 3 entries, got %d", len(m))
	}
}

func TestNormalizeSemanticScores(t *testing.T) {
	results := []*vector.Result{
		{ID: "c1", Score: 0.9},
		{ID: "c2", Score: 0.5},
		{ID: "c3", Score: -0.2},
	}
	m := NormalizeSemanticScores(results)
	if m["c1"] != 0.9 || m["c2"] != 0.5 {
		t.Errorf("unexpected map %v", m)
	}
	if m["c3"] != 0 {
		t.Errorf("negative cosine should clamp to 0, got %f", m["c3"])
	}
}

func TestFuse(t *testing.T) {
	kw := map[string]float64{"c1": 1.0, "c2": 0.5}
	sem := map[string]float64{"c1": 0.5, "c2": 1.0, "c3": 0.2}
	results := Fuse(kw, sem, 0.3, 0.7)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ChunkID != "c2" {
		t.Errorf("c2 should win with semantic weight 0.7, got %s", results[0].ChunkID)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Error("results should be sorted by score descending")
		}
	}
}

func TestFuse_TieBreaks(t *testing.T) {
	// Equal fused scores: higher semantic score first, then chunk ID.
	kw := map[string]float64{"x": 1.0}
	sem := map[string]float64{"y": 1.0, "b": 0.5, "a": 0.5}
	results := Fuse(kw, sem, 0.5, 0.5)
	order := []string{"y", "x", "a", "b"}
	for i, id := range order {
		if results[i].ChunkID != id {
			t.Errorf("position %d = %s, want %s", i, results[i].ChunkID, id)
		}
	}
}
