package models

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestAnswer_TopSources(t *testing.T) {
	a := &Answer{Sources: []string{"a.txt", "b.txt", "c.txt", "d.txt"}}
	tests := []struct {
		n    int
		want []string
	}{
		{3, []string{"a.txt", "b.txt", "c.txt"}},
		{10, []string{"a.txt", "b.txt", "c.txt", "d.txt"}},
		{0, []string{"a.txt", "b.txt", "c.txt", "d.txt"}},
	}
	for _, tt := range tests {
		if got := a.TopSources(tt.n); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("TopSources(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
	var nilAnswer *Answer
	if got := nilAnswer.TopSources(3); got != nil {
		t.Errorf("nil answer TopSources = %v", got)
	}
}

func TestCapabilityError_Is(t *testing.T) {
	err := fmt.Errorf("failed to embed query: %w", &CapabilityError{
		Capability: ErrEmbeddingUnavailable,
		Op:         "embed",
		Err:        context.DeadlineExceeded,
	})
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Error("expected errors.Is(ErrEmbeddingUnavailable)")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected errors.Is(context.DeadlineExceeded)")
	}
	if errors.Is(err, ErrLLMUnavailable) {
		t.Error("did not expect ErrLLMUnavailable")
	}
	var ce *CapabilityError
	if !errors.As(err, &ce) || ce.Op != "embed" {
		t.Errorf("errors.As = %+v", ce)
	}
}
