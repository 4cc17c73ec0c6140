// Package indexer loads documents, splits them into chunks and builds the retrieval index.
package indexer

import (
	"strings"

	"github.com/hyperjump/tanya/internal/fileid"
	"github.com/hyperjump/tanya/internal/models"
)

// Default chunk size and overlap, in runes.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

// separators are tried in order when looking for a natural cut. The cut is placed after the separator.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", " "}

// Chunker splits text into overlapping windows measured in runes.
//
// Consecutive chunks of a document share exactly chunkOverlap runes, so dropping the first
// Overlap runes of every chunk after the first and concatenating reproduces the text.
// Within each window the cut prefers a paragraph break, then a line break, then a sentence
// end, then a space, but only in the second half of the window; otherwise it is a hard cut.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in runes).
// A non-positive size selects the default; an overlap that does not fit is reduced to a quarter of the size.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits a document into chunks. Whitespace-only documents yield nil.
func (c *Chunker) Chunk(doc *models.Document) []*models.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}
	runes := []rune(doc.Content)
	n := len(runes)

	var chunks []*models.Chunk
	start := 0
	for index := 0; ; index++ {
		end := start + c.chunkSize
		if end >= n {
			end = n
		} else {
			end = c.cut(runes, start, end)
		}
		overlap := 0
		if index > 0 {
			overlap = c.chunkOverlap
		}
		content := string(runes[start:end])
		chunks = append(chunks, &models.Chunk{
			ID:      fileid.ChunkID(doc.ID, index, content),
			Source:  doc.ID,
			Index:   index,
			Content: content,
			Start:   start,
			Overlap: overlap,
		})
		if end == n {
			return chunks
		}
		start = end - c.chunkOverlap
	}
}

// cut returns the end of the window [start, limit). The result is always greater than
// start+chunkOverlap so that the next window makes progress.
func (c *Chunker) cut(runes []rune, start, limit int) int {
	minEnd := start + c.chunkSize/2
	if floor := start + c.chunkOverlap + 1; minEnd < floor {
		minEnd = floor
	}
	for _, sep := range separators {
		sr := []rune(sep)
		for end := limit; end >= minEnd; end-- {
			if hasSuffixAt(runes, end, sr) {
				return end
			}
		}
	}
	return limit
}

func hasSuffixAt(runes []rune, end int, suffix []rune) bool {
	if end < len(suffix) {
		return false
	}
	for i, r := range suffix {
		if runes[end-len(suffix)+i] != r {
			return false
		}
	}
	return true
}
