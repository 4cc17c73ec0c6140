// Package fileid provides deterministic identifiers for documents and chunks.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

const chunkPrefix = "chunk:"

// DocumentID returns the citation key for a document file: its base name.
// The same file always yields the same ID regardless of the directory it was loaded from.
func DocumentID(path string) string {
	return filepath.Base(filepath.Clean(path))
}

// ChunkID returns a content-addressed chunk ID. The same source, ordinal and text always
// yield the same ID, so rebuilding an unchanged corpus produces identical rows.
func ChunkID(source string, index int, content string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return chunkPrefix + hex.EncodeToString(h.Sum(nil)[:16])
}
