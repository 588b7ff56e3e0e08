package domain

// GlobalTenant is the sentinel tenant id that disables tenant filtering.
const GlobalTenant = "global"

// Scope pairs a collection with the tenant allowed to see its documents.
// It is the single rule implementing multi-tenant isolation and is applied
// symmetrically on index writes, index queries, and store queries.
type Scope struct {
	collection string
	tenantID   string
}

// NewScope creates a scope for a collection and tenant.
func NewScope(collection, tenantID string) Scope {
	return Scope{collection: collection, tenantID: tenantID}
}

// Collection returns the collection name.
func (s Scope) Collection() string { return s.collection }

// TenantID returns the tenant id, which may be empty or the global sentinel.
func (s Scope) TenantID() string { return s.tenantID }

// Tenanted reports whether a tenant constraint applies. Global collections
// and the ""/"global" sentinel tenants are never tenant-filtered.
func (s Scope) Tenanted() bool {
	if KindOf(s.collection).Global() {
		return false
	}
	return s.tenantID != "" && s.tenantID != GlobalTenant
}
