package redis

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/postdeck/retrieval/internal/domain"
)

// Source lazily constructs the shared index client. The first successful
// acquisition connects and ensures the index; later calls reuse that client
// for the process lifetime. Callers treat false as "index unavailable", not
// as an error.
type Source struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	client *Client
}

// NewSource creates a lazy index source.
func NewSource(cfg Config, logger *zap.Logger) *Source {
	return &Source{cfg: cfg, logger: logger}
}

// Index returns the memoized index client, or false when the index is not
// configured or cannot be reached yet. Failed construction is retried on the
// next call.
func (s *Source) Index(ctx context.Context) (domain.VectorIndex, bool) {
	if len(s.cfg.Addrs) == 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, true
	}

	client, err := New(s.cfg)
	if err != nil {
		s.logger.Warn("vector index unavailable", zap.Error(err))
		return nil, false
	}
	if err := client.EnsureIndex(ctx); err != nil {
		s.logger.Warn("vector index unavailable", zap.Error(err))
		client.Close()
		return nil, false
	}

	s.client = client
	s.logger.Info("vector index ready",
		zap.Strings("addrs", s.cfg.Addrs),
		zap.Int("dimensions", s.cfg.Dimensions),
	)
	return s.client, true
}

// Close releases the underlying client if it was ever created.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}
