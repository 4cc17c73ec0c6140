package fileid

import (
	"strings"
	"testing"
)

func TestDocumentID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/docs/sample_faq.txt", "sample_faq.txt"},
		{"sample_faq.txt", "sample_faq.txt"},
		{"/data/docs/../docs/budget.md", "budget.md"},
	}
	for _, tt := range tests {
		if got := DocumentID(tt.path); got != tt.want {
			t.Errorf("DocumentID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("faq.txt", 0, "hello")
	b := ChunkID("faq.txt", 0, "hello")
	if a != b {
		t.Errorf("same input gave different IDs: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, chunkPrefix) {
		t.Errorf("missing prefix: %s", a)
	}
}

func TestChunkID_DistinguishesInputs(t *testing.T) {
	base := ChunkID("faq.txt", 0, "hello")
	others := []string{
		ChunkID("faq.txt", 1, "hello"),
		ChunkID("other.txt", 0, "hello"),
		ChunkID("faq.txt", 0, "hello!"),
		ChunkID("faq.txt0", 0, "hello"),
	}
	for i, o := range others {
		if o == base {
			t.Errorf("case %d collided with base ID", i)
		}
	}
}
