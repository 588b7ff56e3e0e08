package domain

import "errors"

var (
	// ErrEmbeddingNotConfigured signals missing embedding provider credentials.
	ErrEmbeddingNotConfigured = errors.New("embedding not configured")
	// ErrIndexNotConfigured signals missing vector index configuration.
	ErrIndexNotConfigured = errors.New("vector index not configured")
	// ErrStoreNotConfigured signals missing document store configuration.
	ErrStoreNotConfigured = errors.New("document store not configured")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrEmbeddingFailed signals an embedding provider failure.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrIndexUnavailable signals that the vector index could not be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)
