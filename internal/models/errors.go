package models

import (
	"errors"
	"fmt"
)

// Configuration errors.
var (
	ErrMissingCredentials   = errors.New("missing API credentials")
	ErrDocumentsDirNotFound = errors.New("documents directory not found")
	ErrIndexIncompatible    = errors.New("index was built with a different embedding model")
)

// Empty-input errors.
var (
	ErrNoDocuments = errors.New("no documents found")
	ErrEmptyQuery  = errors.New("query cannot be empty")
)

// Index state errors.
var (
	ErrIndexNotFound = errors.New("index not found")
	ErrIndexEmpty    = errors.New("index is empty")
	ErrIndexExists   = errors.New("index already exists")
)

// External capability errors.
var (
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrLLMUnavailable       = errors.New("language model unavailable")
)

// CapabilityError reports a failed call to an external capability such as the
// embedding or completion API. It matches the capability's sentinel with errors.Is.
type CapabilityError struct {
	Capability error
	Op         string
	Err        error
	Retryable  bool
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Capability, e.Op, e.Err)
}

func (e *CapabilityError) Unwrap() []error {
	return []error{e.Capability, e.Err}
}
