package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postdeck/retrieval/internal/domain"
)

type mockSearcher struct {
	hits           []domain.Hit
	err            error
	lastCollection string
	lastTenant     string
	lastQuery      string
	lastTopK       int
}

func (m *mockSearcher) Search(
	_ context.Context, collection, tenantID, query string, topK int,
) ([]domain.Hit, error) {
	m.lastCollection = collection
	m.lastTenant = tenantID
	m.lastQuery = query
	m.lastTopK = topK
	return m.hits, m.err
}

type mockIndexer struct {
	upsertErr error
	count     int
	bulkErr   error
	lastDocID string
	lastLimit int
}

func (m *mockIndexer) UpsertVector(_ context.Context, _, docID, _ string) error {
	m.lastDocID = docID
	return m.upsertErr
}

func (m *mockIndexer) IndexTenantDocuments(
	_ context.Context, _, _ string, limit int,
) (int, error) {
	m.lastLimit = limit
	return m.count, m.bulkErr
}

func newTestRouter(search Searcher, indexing Indexer) http.Handler {
	r := chirouter.NewRouter()
	NewServer(search, indexing, zap.NewNop()).Routes(r)
	return r
}

func post(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestSearchDocuments_OK(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.Hit{
		{ID: "doc-1", Score: 0.91, Fields: map[string]any{"title": "Growth Hacks"}},
		{ID: "doc-2", Score: 0.45, Fields: map[string]any{"title": "Other"}},
	}}
	handler := newTestRouter(searcher, &mockIndexer{})

	rr := post(t, handler, "/collections/carousels/search",
		`{"query":"growth","tenantId":"user-1","topK":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	body := decodeBody(t, rr)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	results, ok := body["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("results = %v", body["results"])
	}
	first := results[0].(map[string]any)
	if first["id"] != "doc-1" {
		t.Errorf("first id = %v", first["id"])
	}

	if searcher.lastCollection != "carousels" || searcher.lastTenant != "user-1" ||
		searcher.lastQuery != "growth" || searcher.lastTopK != 5 {
		t.Errorf("search call: %+v", searcher)
	}
}

func TestSearchDocuments_ValidatesRequest(t *testing.T) {
	handler := newTestRouter(&mockSearcher{}, &mockIndexer{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"query":`},
		{"empty query", `{"query":""}`},
		{"long query", fmt.Sprintf(`{"query":%q}`, strings.Repeat("a", maxQueryLength+1))},
		{"negative topK", `{"query":"x","topK":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(t, handler, "/collections/carousels/search", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if body := decodeBody(t, rr); body["success"] != false {
				t.Errorf("success = %v", body["success"])
			}
		})
	}
}

func TestSearchDocuments_StoreUnavailable(t *testing.T) {
	handler := newTestRouter(&mockSearcher{err: domain.ErrStoreNotConfigured}, &mockIndexer{})

	rr := post(t, handler, "/collections/carousels/search", `{"query":"growth"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	body := decodeBody(t, rr)
	if body["error"] != domain.ErrStoreNotConfigured.Error() {
		t.Errorf("error = %v", body["error"])
	}
}

func TestSearchDocuments_UnknownErrorIsOpaque(t *testing.T) {
	handler := newTestRouter(&mockSearcher{err: fmt.Errorf("mongo: socket closed")}, &mockIndexer{})

	rr := post(t, handler, "/collections/carousels/search", `{"query":"growth"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if body := decodeBody(t, rr); body["error"] != "internal error" {
		t.Errorf("internal details leaked: %v", body["error"])
	}
}

func TestIndexDocument_OK(t *testing.T) {
	indexer := &mockIndexer{}
	handler := newTestRouter(&mockSearcher{}, indexer)

	rr := post(t, handler, "/collections/carousels/documents/doc-1/index",
		`{"tenantId":"user-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeBody(t, rr)
	if body["success"] != true || body["indexed"] != true {
		t.Errorf("body = %v", body)
	}
	if indexer.lastDocID != "doc-1" {
		t.Errorf("doc id = %q", indexer.lastDocID)
	}
}

func TestIndexDocument_EmptyBodyAllowed(t *testing.T) {
	handler := newTestRouter(&mockSearcher{}, &mockIndexer{})

	rr := post(t, handler, "/collections/templates/documents/t-1/index", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestIndexDocument_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing document", domain.ErrDocumentNotFound, http.StatusNotFound},
		{"no embedding provider", domain.ErrEmbeddingNotConfigured, http.StatusServiceUnavailable},
		{"no index", domain.ErrIndexNotConfigured, http.StatusServiceUnavailable},
		{"embedding failed", fmt.Errorf("embed document doc-1: %w", domain.ErrEmbeddingFailed), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestRouter(&mockSearcher{}, &mockIndexer{upsertErr: tt.err})
			rr := post(t, handler, "/collections/carousels/documents/doc-1/index", `{}`)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestReindexTenant_OK(t *testing.T) {
	indexer := &mockIndexer{count: 7}
	handler := newTestRouter(&mockSearcher{}, indexer)

	rr := post(t, handler, "/collections/carousels/reindex",
		`{"tenantId":"user-1","limit":25}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeBody(t, rr)
	if body["success"] != true || body["count"] != float64(7) {
		t.Errorf("body = %v", body)
	}
	if indexer.lastLimit != 25 {
		t.Errorf("limit = %d", indexer.lastLimit)
	}
}

func TestReindexTenant_NegativeLimitRejected(t *testing.T) {
	handler := newTestRouter(&mockSearcher{}, &mockIndexer{})

	rr := post(t, handler, "/collections/carousels/reindex",
		`{"tenantId":"user-1","limit":-1}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHealthCheck(t *testing.T) {
	handler := newTestRouter(&mockSearcher{}, &mockIndexer{})

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}
