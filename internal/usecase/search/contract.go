package search

import (
	"context"

	"github.com/postdeck/retrieval/internal/domain"
)

// EmbedderSource lazily yields the shared embedding provider.
// false means the provider is not configured.
type EmbedderSource interface {
	Embedder(ctx context.Context) (domain.Embedder, bool)
}

// IndexSource lazily yields the shared vector index client.
// false means the index is not configured or unreachable.
type IndexSource interface {
	Index(ctx context.Context) (domain.VectorIndex, bool)
}

// StoreSource lazily yields the shared document store.
// false means the store is not configured or unreachable.
type StoreSource interface {
	Store(ctx context.Context) (domain.DocumentStore, bool)
}
