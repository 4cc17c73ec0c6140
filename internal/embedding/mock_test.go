package embedding

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/hyperjump/tanya/internal/vector"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "What is a budget?")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "What is a budget?")
	if !reflect.DeepEqual(a, b) {
		t.Error("same text should give the same embedding")
	}
	if len(a) != 64 || e.Dimensions() != 64 {
		t.Errorf("dimensions: len=%d Dimensions()=%d", len(a), e.Dimensions())
	}
	if norm := vector.Norm(a); math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", norm)
	}
}

func TestMockEmbedder_SharedWordsAreCloser(t *testing.T) {
	e := NewMockEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "what is a budget")
	related, _ := e.Embed(ctx, "Q: What is a budget? A: A budget is a plan for spending.")
	unrelated, _ := e.Embed(ctx, "Compound interest grows savings over decades.")
	if vector.Dot(q, related) <= vector.Dot(q, unrelated) {
		t.Error("text sharing words with the query should score higher")
	}
}

func TestMockEmbedder_NoTokens(t *testing.T) {
	e := NewMockEmbedder(8)
	v, err := e.Embed(context.Background(), "?!")
	if err != nil {
		t.Fatal(err)
	}
	if vector.Norm(v) == 0 {
		t.Error("embedding should never be the zero vector")
	}
}

func TestMockEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockEmbedder(8).EmbedBatch(ctx, []string{"a"}); err == nil {
		t.Error("expected error for canceled context")
	}
}
