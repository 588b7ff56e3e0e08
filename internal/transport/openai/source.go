package openai

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/postdeck/retrieval/internal/domain"
)

// Source lazily constructs the shared embedder. Configuration is checked
// once: without an API key every acquisition reports "not configured"
// without a network round-trip.
type Source struct {
	cfg    Config
	logger *zap.Logger

	once     sync.Once
	embedder *Embedder
}

// NewSource creates a lazy embedder source.
func NewSource(cfg Config, logger *zap.Logger) *Source {
	return &Source{cfg: cfg, logger: logger}
}

// Embedder returns the memoized embedder, or false when the provider is not
// configured. The same instance is shared for the process lifetime; it holds
// no per-call state and is safe for concurrent use.
func (s *Source) Embedder(_ context.Context) (domain.Embedder, bool) {
	if s.cfg.APIKey == "" {
		return nil, false
	}

	s.once.Do(func() {
		s.embedder = NewEmbedder(&s.cfg)
		s.logger.Info("embedding provider ready",
			zap.String("model", s.cfg.Model),
			zap.Int("dimensions", s.cfg.Dimensions),
		)
	})

	return s.embedder, true
}
