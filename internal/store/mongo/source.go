package mongo

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/postdeck/retrieval/internal/domain"
)

// Source lazily connects the shared store. Without a URI every acquisition
// reports "not configured"; a failed connection is retried on the next call.
type Source struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	store *Store
}

// NewSource creates a lazy store source.
func NewSource(cfg Config, logger *zap.Logger) *Source {
	return &Source{cfg: cfg, logger: logger}
}

// Store returns the memoized store, or false when it is not configured or
// unreachable.
func (s *Source) Store(ctx context.Context) (domain.DocumentStore, bool) {
	if s.cfg.URI == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return s.store, true
	}

	store, err := New(ctx, s.cfg)
	if err != nil {
		s.logger.Warn("document store unavailable", zap.Error(err))
		return nil, false
	}

	s.store = store
	s.logger.Info("document store ready", zap.String("database", s.cfg.Database))
	return s.store, true
}

// Close disconnects the store if it was ever created.
func (s *Source) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Close(ctx); err != nil {
			s.logger.Warn("document store close", zap.Error(err))
		}
		s.store = nil
	}
}
