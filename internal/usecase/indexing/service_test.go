package indexing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/postdeck/retrieval/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	docs        map[string]domain.Document // keyed by collection/id
	queryDocs   []domain.Document
	queryErr    error
	queryCalled bool
	lastFilter  map[string]string
	lastLimit   int
}

func (m *mockStore) Get(_ context.Context, collection, id string) (domain.Document, error) {
	doc, ok := m.docs[collection+"/"+id]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (m *mockStore) Query(
	_ context.Context, _ string, filter map[string]string, limit int,
) ([]domain.Document, error) {
	m.queryCalled = true
	m.lastFilter = filter
	m.lastLimit = limit
	return m.queryDocs, m.queryErr
}

// mockEmbedder fails for any text containing failOn.
type mockEmbedder struct {
	vec      []float32
	failOn   string
	lastText string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.lastText = text
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return domain.EmbeddingResult{}, errors.New("provider rejected input")
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockIndex struct {
	upserted  []domain.IndexEntry
	upsertErr error
}

func (m *mockIndex) Upsert(_ context.Context, entries []domain.IndexEntry) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, entries...)
	return nil
}

func (m *mockIndex) Query(
	_ context.Context, _ []float32, _ int, _ domain.Scope,
) ([]domain.Match, error) {
	return nil, nil
}

type storeSource struct {
	store domain.DocumentStore
	ok    bool
}

func (s storeSource) Store(_ context.Context) (domain.DocumentStore, bool) {
	return s.store, s.ok
}

type embedderSource struct {
	embedder domain.Embedder
	ok       bool
}

func (s embedderSource) Embedder(_ context.Context) (domain.Embedder, bool) {
	return s.embedder, s.ok
}

type indexSource struct {
	index domain.VectorIndex
	ok    bool
}

func (s indexSource) Index(_ context.Context) (domain.VectorIndex, bool) {
	return s.index, s.ok
}

func newService(store *mockStore, embedder *mockEmbedder, index *mockIndex) *Service {
	return New(
		storeSource{store, true},
		embedderSource{embedder, true},
		indexSource{index, true},
		zap.NewNop(),
	)
}

func carousel(id, title, owner string) domain.Document {
	return domain.NewDocument(domain.CollectionCarousels, id, map[string]any{
		"title":   title,
		"ownerId": owner,
	})
}

// --- UpsertVector ---

func TestUpsertVector_HappyPath(t *testing.T) {
	store := &mockStore{docs: map[string]domain.Document{
		"carousels/doc-1": carousel("doc-1", "Growth Hacks", "user-1"),
	}}
	embedder := &mockEmbedder{vec: []float32{0.1, 0.2}}
	index := &mockIndex{}

	svc := newService(store, embedder, index)
	err := svc.UpsertVector(context.Background(), domain.CollectionCarousels, "doc-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(index.upserted) != 1 {
		t.Fatalf("expected 1 upserted entry, got %d", len(index.upserted))
	}
	entry := &index.upserted[0]
	if entry.ID() != "doc-1" {
		t.Errorf("entry id = %q", entry.ID())
	}
	if !entry.Scope().Tenanted() || entry.Scope().TenantID() != "user-1" {
		t.Errorf("entry scope not tenant-tagged: %+v", entry.Scope())
	}
	if !strings.Contains(embedder.lastText, "Growth Hacks") {
		t.Errorf("canonical text not embedded: %q", embedder.lastText)
	}
}

func TestUpsertVector_GlobalCollectionEntryUntenanted(t *testing.T) {
	store := &mockStore{docs: map[string]domain.Document{
		"templates/t-1": domain.NewDocument(domain.CollectionTemplates, "t-1",
			map[string]any{"name": "Bold Quote"}),
	}}
	index := &mockIndex{}

	svc := newService(store, &mockEmbedder{vec: []float32{0.1}}, index)
	err := svc.UpsertVector(context.Background(), domain.CollectionTemplates, "t-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index.upserted[0].Scope().Tenanted() {
		t.Error("template entries must not carry tenant metadata")
	}
}

func TestUpsertVector_DocumentNotFound(t *testing.T) {
	store := &mockStore{docs: map[string]domain.Document{}}
	index := &mockIndex{}

	svc := newService(store, &mockEmbedder{vec: []float32{0.1}}, index)
	err := svc.UpsertVector(context.Background(), domain.CollectionCarousels, "missing", "user-1")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if len(index.upserted) != 0 {
		t.Error("no index call should be made for a missing document")
	}
}

func TestUpsertVector_UnconfiguredServices(t *testing.T) {
	store := &mockStore{}
	embedder := &mockEmbedder{vec: []float32{0.1}}
	index := &mockIndex{}

	tests := []struct {
		name string
		svc  *Service
		want error
	}{
		{
			"embedding missing",
			New(storeSource{store, true}, embedderSource{nil, false}, indexSource{index, true}, zap.NewNop()),
			domain.ErrEmbeddingNotConfigured,
		},
		{
			"index missing",
			New(storeSource{store, true}, embedderSource{embedder, true}, indexSource{nil, false}, zap.NewNop()),
			domain.ErrIndexNotConfigured,
		},
		{
			"store missing",
			New(storeSource{nil, false}, embedderSource{embedder, true}, indexSource{index, true}, zap.NewNop()),
			domain.ErrStoreNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.svc.UpsertVector(context.Background(), domain.CollectionCarousels, "doc-1", "user-1")
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpsertVector_EmbeddingFailure(t *testing.T) {
	store := &mockStore{docs: map[string]domain.Document{
		"carousels/doc-1": carousel("doc-1", "unembeddable", "user-1"),
	}}
	index := &mockIndex{}

	svc := newService(store, &mockEmbedder{failOn: "unembeddable"}, index)
	err := svc.UpsertVector(context.Background(), domain.CollectionCarousels, "doc-1", "user-1")
	if !errors.Is(err, domain.ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
	if len(index.upserted) != 0 {
		t.Error("failed embeddings must not reach the index")
	}
}

// --- IndexTenantDocuments ---

func TestIndexTenantDocuments_CountsSuccesses(t *testing.T) {
	docs := []domain.Document{
		carousel("d1", "First deck", "user-1"),
		carousel("d2", "poison pill", "user-1"),
		carousel("d3", "Third deck", "user-1"),
	}
	store := &mockStore{
		queryDocs: docs,
		docs: map[string]domain.Document{
			"carousels/d1": docs[0],
			"carousels/d2": docs[1],
			"carousels/d3": docs[2],
		},
	}
	index := &mockIndex{}

	svc := newService(store, &mockEmbedder{vec: []float32{0.1}, failOn: "poison"}, index)
	count, err := svc.IndexTenantDocuments(context.Background(), "user-1", domain.CollectionCarousels, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if len(index.upserted) != 2 {
		t.Errorf("upserted = %d, want 2", len(index.upserted))
	}
	if store.lastFilter["ownerId"] != "user-1" {
		t.Errorf("owner filter missing: %v", store.lastFilter)
	}
	if store.lastLimit != 50 {
		t.Errorf("limit = %d, want 50", store.lastLimit)
	}
}

func TestIndexTenantDocuments_ShortCircuitsWhenUnconfigured(t *testing.T) {
	store := &mockStore{}
	svc := New(
		storeSource{store, true},
		embedderSource{nil, false},
		indexSource{&mockIndex{}, true},
		zap.NewNop(),
	)

	count, err := svc.IndexTenantDocuments(context.Background(), "user-1", domain.CollectionCarousels, 50)
	if !errors.Is(err, domain.ErrEmbeddingNotConfigured) {
		t.Fatalf("expected ErrEmbeddingNotConfigured, got %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if store.queryCalled {
		t.Error("store must not be listed when a backing service is missing")
	}
}

func TestIndexTenantDocuments_DefaultLimit(t *testing.T) {
	store := &mockStore{}
	svc := newService(store, &mockEmbedder{vec: []float32{0.1}}, &mockIndex{})

	if _, err := svc.IndexTenantDocuments(context.Background(), "user-1", domain.CollectionCarousels, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastLimit != 50 {
		t.Errorf("default limit = %d, want 50", store.lastLimit)
	}
}

func TestIndexTenantDocuments_GlobalCollectionUnfiltered(t *testing.T) {
	store := &mockStore{}
	svc := newService(store, &mockEmbedder{vec: []float32{0.1}}, &mockIndex{})

	if _, err := svc.IndexTenantDocuments(context.Background(), "user-1", domain.CollectionTemplates, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.lastFilter) != 0 {
		t.Errorf("global collection listing must not be tenant-filtered: %v", store.lastFilter)
	}
}
