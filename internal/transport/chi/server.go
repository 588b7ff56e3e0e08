package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/postdeck/retrieval/internal/domain"
	"github.com/postdeck/retrieval/internal/logger"
)

const maxQueryLength = 2000

// Searcher answers scoped relevance queries.
type Searcher interface {
	Search(ctx context.Context, collection, tenantID, query string, topK int) ([]domain.Hit, error)
}

// Indexer maintains the vector index for stored documents.
type Indexer interface {
	UpsertVector(ctx context.Context, collection, docID, tenantID string) error
	IndexTenantDocuments(ctx context.Context, tenantID, collection string, limit int) (int, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the retrieval engine over HTTP.
type Server struct {
	search        Searcher
	indexing      Indexer
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, indexing Indexer, logger *zap.Logger) *Server {
	s := &Server{
		search:   search,
		indexing: indexing,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound),
		sentinelHandler(domain.ErrStoreNotConfigured, http.StatusServiceUnavailable),
		sentinelHandler(domain.ErrIndexNotConfigured, http.StatusServiceUnavailable),
		sentinelHandler(domain.ErrEmbeddingNotConfigured, http.StatusServiceUnavailable),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable),
		sentinelHandler(domain.ErrEmbeddingFailed, http.StatusBadGateway),
	}
	return s
}

// Routes mounts all handlers on a chi router.
func (s *Server) Routes(r chirouter.Router) {
	r.Post("/collections/{collection}/search", s.SearchDocuments)
	r.Post("/collections/{collection}/documents/{id}/index", s.IndexDocument)
	r.Post("/collections/{collection}/reindex", s.ReindexTenant)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type searchRequest struct {
	Query    string `json:"query"`
	TenantID string `json:"tenantId"`
	TopK     int    `json:"topK"`
}

type hitItem struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields"`
}

// SearchDocuments handles POST /collections/{collection}/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chirouter.URLParam(r, "collection")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(req.Query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "query is too long")
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "topK must not be negative")
		return
	}

	hits, err := s.search.Search(r.Context(), collection, req.TenantID, req.Query, req.TopK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]hitItem, len(hits))
	for i, h := range hits {
		items[i] = hitItem{ID: h.ID, Score: h.Score, Fields: h.Fields}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": items,
	})
}

type indexRequest struct {
	TenantID string `json:"tenantId"`
}

// IndexDocument handles POST /collections/{collection}/documents/{id}/index.
func (s *Server) IndexDocument(w http.ResponseWriter, r *http.Request) {
	collection := chirouter.URLParam(r, "collection")
	id := chirouter.URLParam(r, "id")

	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.indexing.UpsertVector(r.Context(), collection, id, req.TenantID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"indexed": true,
	})
}

type reindexRequest struct {
	TenantID string `json:"tenantId"`
	Limit    int    `json:"limit"`
}

// ReindexTenant handles POST /collections/{collection}/reindex.
func (s *Server) ReindexTenant(w http.ResponseWriter, r *http.Request) {
	collection := chirouter.URLParam(r, "collection")

	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}

	count, err := s.indexing.IndexTenantDocuments(r.Context(), req.TenantID, collection, req.Limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   count,
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrStoreNotConfigured,
		domain.ErrIndexNotConfigured,
		domain.ErrEmbeddingNotConfigured,
		domain.ErrIndexUnavailable,
		domain.ErrEmbeddingFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// The request-scoped logger carries the request id set by the router
	// middleware.
	log := s.logger
	if reqLog := logger.FromContext(r.Context()); reqLog != nil {
		log = reqLog
	}
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
