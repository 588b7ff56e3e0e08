package domain

// IndexEntry is the unit written to the vector index. Upserts are idempotent:
// reindexing the same id overwrites the previous entry.
type IndexEntry struct {
	id     string
	vector []float32
	scope  Scope
}

// NewIndexEntry creates an index entry.
func NewIndexEntry(id string, vector []float32, scope Scope) IndexEntry {
	return IndexEntry{id: id, vector: vector, scope: scope}
}

// ID returns the document identifier.
func (e *IndexEntry) ID() string { return e.id }

// Vector returns the embedding vector.
func (e *IndexEntry) Vector() []float32 { return e.vector }

// Scope returns the collection/tenant scope recorded as entry metadata.
func (e *IndexEntry) Scope() Scope { return e.scope }

// Match is a raw vector index hit, before document hydration.
type Match struct {
	ID    string
	Score float64
}

// Hit is a single search result: a matched document id, its relevance score,
// and the hydrated document fields. Transient, never persisted.
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]any
}
