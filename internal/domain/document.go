package domain

// Collection names owned by the application's document store.
const (
	CollectionCarousels = "carousels"
	CollectionTemplates = "templates"
)

// Kind tags the shape of a collection's documents. It drives which
// text-building and tenant-scoping rules apply.
type Kind int

const (
	// KindCarousel marks tenant-owned carousel drafts.
	KindCarousel Kind = iota
	// KindTemplate marks globally shared reusable templates.
	KindTemplate
)

// KindOf derives the collection kind from the collection name.
// Unknown collections are treated as tenant-owned carousel-shaped documents.
func KindOf(collection string) Kind {
	if collection == CollectionTemplates {
		return KindTemplate
	}
	return KindCarousel
}

// Global reports whether documents of this kind are shared across tenants.
// Global collections are never filtered by tenant on write or read.
func (k Kind) Global() bool {
	return k == KindTemplate
}

// String returns the kind name.
func (k Kind) String() string {
	if k == KindTemplate {
		return "template"
	}
	return "carousel"
}

// Document is a read-only view of a record in the external document store.
// Field shapes are dynamic; the store owns the schema.
type Document struct {
	collection string
	id         string
	fields     map[string]any
}

// NewDocument creates a document view.
func NewDocument(collection, id string, fields map[string]any) Document {
	return Document{collection: collection, id: id, fields: fields}
}

// Collection returns the owning collection name.
func (d *Document) Collection() string { return d.collection }

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Fields returns the raw document fields.
func (d *Document) Fields() map[string]any { return d.fields }
