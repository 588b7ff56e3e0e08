// Package search answers "find documents like this text" queries. Semantic
// vector search is tried first; whenever it is unavailable the lexical
// fallback ranker answers instead, over the same canonical document text.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/postdeck/retrieval/internal/domain"
	"github.com/postdeck/retrieval/internal/metrics"
)

// strategy is one way of answering a search. Strategies are tried in order;
// a strategy reports applied=false to pass the query down the chain.
type strategy interface {
	name() string
	search(
		ctx context.Context, store domain.DocumentStore,
		scope domain.Scope, query string, topK int,
	) (hits []domain.Hit, applied bool, err error)
}

// Service orchestrates the degradation chain from semantic to lexical search.
type Service struct {
	stores      StoreSource
	strategies  []strategy
	defaultTopK int
	maxTopK     int
	logger      *zap.Logger
}

// New creates a search service with the default semantic -> lexical chain.
func New(stores StoreSource, embedders EmbedderSource, indexes IndexSource, logger *zap.Logger) *Service {
	return &Service{
		stores: stores,
		strategies: []strategy{
			&semanticStrategy{embedders: embedders, indexes: indexes, logger: logger},
			&lexicalStrategy{ranker: newRanker(DefaultWeights(), DefaultWindow, defaultOwnerField)},
		},
		defaultTopK: 6,
		maxTopK:     50,
		logger:      logger,
	}
}

// WithLimits configures topK bounds.
func (s *Service) WithLimits(defaultTopK, maxTopK int) *Service {
	if defaultTopK > 0 {
		s.defaultTopK = defaultTopK
	}
	if maxTopK > 0 {
		s.maxTopK = maxTopK
	}
	return s
}

// WithFallback replaces the lexical strategy's ranker configuration.
func (s *Service) WithFallback(weights Weights, window int, ownerField string) *Service {
	for i, st := range s.strategies {
		if _, ok := st.(*lexicalStrategy); ok {
			s.strategies[i] = &lexicalStrategy{ranker: newRanker(weights, window, ownerField)}
		}
	}
	return s
}

// Search finds up to topK documents relevant to the query, scoped to the
// collection and tenant. It degrades through the strategy chain but fails
// outright when the document store is unavailable, since even the fallback
// needs documents to rank.
func (s *Service) Search(
	ctx context.Context, collection, tenantID, query string, topK int,
) ([]domain.Hit, error) {
	store, ok := s.stores.Store(ctx)
	if !ok {
		metrics.SearchesTotal.WithLabelValues(collection, "error").Inc()
		return nil, domain.ErrStoreNotConfigured
	}

	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	scope := domain.NewScope(collection, tenantID)

	for _, st := range s.strategies {
		hits, applied, err := st.search(ctx, store, scope, query, topK)
		if err != nil {
			metrics.SearchesTotal.WithLabelValues(collection, "error").Inc()
			return nil, err
		}
		if !applied {
			continue
		}
		metrics.SearchesTotal.WithLabelValues(collection, st.name()).Inc()
		return hits, nil
	}

	// The lexical strategy always applies, so the chain cannot fall through.
	return []domain.Hit{}, nil
}

// semanticStrategy embeds the query and asks the vector index, hydrating
// matches from the document store. Any unavailability or provider failure
// passes the query to the next strategy.
type semanticStrategy struct {
	embedders EmbedderSource
	indexes   IndexSource
	logger    *zap.Logger
}

func (s *semanticStrategy) name() string { return "semantic" }

func (s *semanticStrategy) search(
	ctx context.Context, store domain.DocumentStore,
	scope domain.Scope, query string, topK int,
) ([]domain.Hit, bool, error) {
	embedder, ok := s.embedders.Embedder(ctx)
	if !ok {
		return nil, false, nil
	}
	index, ok := s.indexes.Index(ctx)
	if !ok {
		return nil, false, nil
	}

	embRes, err := embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, falling back to lexical search",
			zap.String("collection", scope.Collection()), zap.Error(err))
		return nil, false, nil
	}

	matches, err := index.Query(ctx, embRes.Embedding, topK, scope)
	if err != nil {
		s.logger.Warn("vector index query failed, falling back to lexical search",
			zap.String("collection", scope.Collection()), zap.Error(err))
		return nil, false, nil
	}

	// An empty match set is a genuine answer, not a reason to fall back.
	hits := make([]domain.Hit, 0, len(matches))
	for _, m := range matches {
		doc, err := store.Get(ctx, scope.Collection(), m.ID)
		if err != nil {
			// Partial hydration is fine; a stale index entry must not
			// fail the whole search.
			s.logger.Debug("skipping unhydratable match",
				zap.String("collection", scope.Collection()),
				zap.String("id", m.ID), zap.Error(err))
			continue
		}
		hits = append(hits, domain.Hit{ID: m.ID, Score: m.Score, Fields: doc.Fields()})
	}

	return hits, true, nil
}

// lexicalStrategy answers with the fallback ranker. It always applies; only
// store access failures surface as errors.
type lexicalStrategy struct {
	ranker *ranker
}

func (s *lexicalStrategy) name() string { return "fallback" }

func (s *lexicalStrategy) search(
	ctx context.Context, store domain.DocumentStore,
	scope domain.Scope, query string, topK int,
) ([]domain.Hit, bool, error) {
	hits, err := s.ranker.rank(ctx, store, scope, query, topK)
	if err != nil {
		return nil, true, fmt.Errorf("lexical search: %w", err)
	}
	return hits, true, nil
}
