package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/fileid"
	"github.com/hyperjump/tanya/internal/models"
)

// LoadDocuments reads every regular file directly inside dir whose extension is in
// allowedExts (all files when allowedExts is empty) and returns one Document per file,
// sorted by ID. A directory with no matching files yields an empty slice and no error.
// extractor may be nil, in which case files are read as plain text.
func LoadDocuments(dir string, allowedExts []string, extractor *extract.Extractor) ([]*models.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrDocumentsDirNotFound, dir)
		}
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrDocumentsDirNotFound, dir)
	}
	if extractor == nil {
		extractor = extract.NewExtractor()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	docs := make([]*models.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			continue
		}
		// Resolve symlinks so only regular files are loaded.
		finfo, err := os.Stat(path)
		if err != nil || !finfo.Mode().IsRegular() {
			continue
		}
		text, err := extractor.Extract(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}
		docs = append(docs, &models.Document{ID: fileid.DocumentID(path), Content: text})
	}
	return docs, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
