// Package models defines core data structures for documents, chunks, conversation turns and answers.
package models

// Document is one loaded source file. ID is the file base name and doubles as the citation key.
type Document struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Chunk is a bounded window of a document's text, the unit that is embedded and retrieved.
// Start is the rune offset of the chunk in the document; Overlap is the number of leading
// runes shared with the previous chunk of the same document.
type Chunk struct {
	ID        string    `json:"id" db:"id"`
	Source    string    `json:"source" db:"source"`
	Index     int       `json:"index" db:"chunk_index"`
	Content   string    `json:"content" db:"content"`
	Start     int       `json:"start" db:"start_offset"`
	Overlap   int       `json:"overlap" db:"overlap"`
	Embedding []float32 `json:"-" db:"embedding"`
}
