// Package indexing writes documents into the vector index: it builds each
// document's canonical text, embeds it, and upserts the vector with
// collection/tenant metadata.
package indexing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/postdeck/retrieval/internal/domain"
	"github.com/postdeck/retrieval/internal/embedtext"
	"github.com/postdeck/retrieval/internal/metrics"
)

// Service orchestrates single-document and bulk indexing.
type Service struct {
	stores     StoreSource
	embedders  EmbedderSource
	indexes    IndexSource
	ownerField string
	bulkLimit  int
	logger     *zap.Logger
}

// New creates an indexing service.
func New(stores StoreSource, embedders EmbedderSource, indexes IndexSource, logger *zap.Logger) *Service {
	return &Service{
		stores:     stores,
		embedders:  embedders,
		indexes:    indexes,
		ownerField: "ownerId",
		bulkLimit:  50,
		logger:     logger,
	}
}

// WithBulk configures the tenant-owner field and default bulk listing limit.
func (s *Service) WithBulk(ownerField string, limit int) *Service {
	if ownerField != "" {
		s.ownerField = ownerField
	}
	if limit > 0 {
		s.bulkLimit = limit
	}
	return s
}

// UpsertVector indexes one document. The entry's metadata follows the same
// tenant-scoping rule the query filter uses, and reindexing the same id
// overwrites the previous entry. Every failure comes back as a typed error;
// nothing at or below this layer panics across the boundary.
func (s *Service) UpsertVector(ctx context.Context, collection, docID, tenantID string) error {
	embedder, ok := s.embedders.Embedder(ctx)
	if !ok {
		return domain.ErrEmbeddingNotConfigured
	}
	index, ok := s.indexes.Index(ctx)
	if !ok {
		return domain.ErrIndexNotConfigured
	}
	store, ok := s.stores.Store(ctx)
	if !ok {
		return domain.ErrStoreNotConfigured
	}

	doc, err := store.Get(ctx, collection, docID)
	if err != nil {
		s.recordUpsert(collection, "error")
		return fmt.Errorf("fetch document: %w", err)
	}

	text := embedtext.ForCollection(collection, doc.Fields())
	embRes, err := embedder.Embed(ctx, text)
	if err != nil {
		s.recordUpsert(collection, "error")
		s.logger.Warn("document embedding failed",
			zap.String("collection", collection), zap.String("id", docID), zap.Error(err))
		return fmt.Errorf("embed document %s: %w", docID, domain.ErrEmbeddingFailed)
	}

	scope := domain.NewScope(collection, tenantID)
	entry := domain.NewIndexEntry(docID, embRes.Embedding, scope)

	if err := index.Upsert(ctx, []domain.IndexEntry{entry}); err != nil {
		s.recordUpsert(collection, "error")
		return fmt.Errorf("upsert vector %s: %w", docID, err)
	}

	s.recordUpsert(collection, "success")
	return nil
}

// IndexTenantDocuments lists up to limit of the tenant's documents in the
// collection and indexes each sequentially. Per-document failures are logged
// and skipped; the returned count is how many documents were indexed.
func (s *Service) IndexTenantDocuments(
	ctx context.Context, tenantID, collection string, limit int,
) (int, error) {
	// Check all three backing services up front so a fully unconfigured
	// deployment short-circuits without iterating.
	if _, ok := s.embedders.Embedder(ctx); !ok {
		return 0, domain.ErrEmbeddingNotConfigured
	}
	if _, ok := s.indexes.Index(ctx); !ok {
		return 0, domain.ErrIndexNotConfigured
	}
	store, ok := s.stores.Store(ctx)
	if !ok {
		return 0, domain.ErrStoreNotConfigured
	}

	if limit <= 0 {
		limit = s.bulkLimit
	}

	scope := domain.NewScope(collection, tenantID)
	filter := map[string]string{}
	if scope.Tenanted() {
		filter[s.ownerField] = tenantID
	}

	docs, err := store.Query(ctx, collection, filter, limit)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", collection, err)
	}

	count := 0
	for i := range docs {
		id := docs[i].ID()
		if err := s.UpsertVector(ctx, collection, id, tenantID); err != nil {
			s.logger.Warn("skipping document during bulk indexing",
				zap.String("collection", collection), zap.String("id", id), zap.Error(err))
			continue
		}
		count++
	}

	s.logger.Info("bulk indexing finished",
		zap.String("collection", collection),
		zap.String("tenant", tenantID),
		zap.Int("listed", len(docs)),
		zap.Int("indexed", count),
	)
	return count, nil
}

func (s *Service) recordUpsert(collection, status string) {
	metrics.IndexUpsertsTotal.WithLabelValues(collection, status).Inc()
}
