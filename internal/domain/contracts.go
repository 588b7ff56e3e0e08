package domain

import "context"

// VectorIndex is the shared contract for the external vector index.
type VectorIndex interface {
	// Upsert writes entries; reindexing an id overwrites its entry.
	Upsert(ctx context.Context, entries []IndexEntry) error
	// Query returns up to topK nearest matches within the scope, in
	// relevance order.
	Query(ctx context.Context, vector []float32, topK int, scope Scope) ([]Match, error)
}

// DocumentStore is the read surface this engine consumes from the external
// document store.
type DocumentStore interface {
	// Get fetches a single document; missing ids yield ErrDocumentNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Query lists up to limit documents matching the equality filter.
	Query(ctx context.Context, collection string, filter map[string]string, limit int) ([]Document, error)
}
