package document

import "fmt"

// RefKind classifies what an identifier in the index names.
type RefKind string

const (
	RefForm  RefKind = "form"
	RefGroup RefKind = "group"
	RefField RefKind = "field"
	RefRole  RefKind = "role"
)

// Index is the single source of truth for identifier lookup and
// uniqueness. Form, group, field, and role identifiers share one global
// namespace; option and column identifiers are scoped to their owning
// field and are checked there, not here.
type Index struct {
	entries map[string]RefKind
}

// NewIndex constructs an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]RefKind)}
}

// Add registers an identifier. Duplicates anywhere in the document are an
// error regardless of kind.
func (ix *Index) Add(id string, kind RefKind) error {
	if prior, ok := ix.entries[id]; ok {
		return fmt.Errorf("document: duplicate identifier %q (already a %s)", id, prior)
	}
	ix.entries[id] = kind
	return nil
}

// Kind returns what an identifier names.
func (ix *Index) Kind(id string) (RefKind, bool) {
	kind, ok := ix.entries[id]
	return kind, ok
}

// Has reports whether an identifier is registered.
func (ix *Index) Has(id string) bool {
	_, ok := ix.entries[id]
	return ok
}

// Len returns the number of registered identifiers.
func (ix *Index) Len() int {
	return len(ix.entries)
}
