package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hyperjump/tanya/internal/models"
)

var _ Index = (*BleveIndex)(nil)

// batchSize bounds the number of chunks per bleve batch.
const batchSize = 500

type chunkDoc struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// BleveIndex implements Index with an in-memory Bleve index. It is rebuilt from the
// persisted chunks on every load, so it never touches disk.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates an empty in-memory index.
func NewBleveIndex() (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases and tokenizes without stemming, so "ira" matches "IRA" exactly.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	sourceFieldMapping := bleve.NewKeywordFieldMapping()
	sourceFieldMapping.Index = false
	docMapping.AddFieldMappingsAt("source", sourceFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks adds chunks in batches, keyed by chunk ID.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	for start := 0; start < len(chunks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(chunks))
		batch := b.index.NewBatch()
		for _, c := range chunks[start:end] {
			if err := batch.Index(c.ID, chunkDoc{Source: c.Source, Content: c.Content}); err != nil {
				return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
			}
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to apply Bleve batch: %w", err)
		}
	}
	return nil
}

// Search runs a match query over chunk content and returns up to limit results.
// For multi-term queries the BM25 score is scaled by (matched terms / query terms)^2, so
// chunks matching every term outrank chunks matching only one. Equal scores sort by ID.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	reqSize := max(limit*2, 50)

	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequestOptions(q, reqSize, 0, false)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	terms := tokenizeQuery(query)
	var coverage map[string]int
	if len(terms) > 1 {
		coverage = b.termCoverage(ctx, terms, reqSize)
	}

	out := make([]*Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		score := hit.Score
		if len(terms) > 1 {
			matched := max(coverage[hit.ID], 1)
			ratio := float64(matched) / float64(len(terms))
			score *= ratio * ratio
		}
		out = append(out, &Result{ID: hit.ID, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// tokenizeQuery splits query into unique lowercase terms.
func tokenizeQuery(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}

// termCoverage counts how many of terms each chunk matches.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, reqSize int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		q := bleve.NewMatchQuery(term)
		q.SetField("content")
		results, err := b.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, reqSize, 0, false))
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
