// document.go validates request bodies: ids, documents, patches and
// filters.

package validate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jpl-au/cmsdb/internal/store"
)

// MaxIDLength bounds ids accepted from callers. Both backends use ids far
// shorter than this.
const MaxIDLength = 128

// ID validates a document id. The backend decides whether the id is well
// formed for its key type.
func ID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidID)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: id longer than %d bytes", ErrInvalidID, MaxIDLength)
	}
	if strings.ContainsFunc(id, func(r rune) bool { return r < 0x20 }) {
		return fmt.Errorf("%w: control character in id", ErrInvalidID)
	}
	return nil
}

// Document validates a document for insertion. A caller-supplied _id is
// allowed here and ignored by the backends. Top-level keys follow the same
// rule as patch keys, minus the dots, so every created field can later be
// updated.
func Document(doc store.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	for k := range doc {
		if strings.Contains(k, ".") {
			return fmt.Errorf("%w: field name %q", ErrInvalidDocument, k)
		}
		if err := store.ValidateField(k); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	}
	if _, err := store.NormalizeDocument(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// Patch validates an update patch.
//
// Validation rules:
//   - nil rejected (an empty patch is allowed and only stamps updatedAt)
//   - _id rejected (ids are immutable)
//   - keys must be valid field names or dotted paths
//   - no key may be another key or a dotted prefix of one (meta and meta.lang)
//   - values must be in the document value set
func Patch(p store.Patch) error {
	if p == nil {
		return fmt.Errorf("%w: nil patch", ErrInvalidPatch)
	}
	for k, v := range p {
		if k == store.FieldID {
			return fmt.Errorf("%w: %s is immutable", ErrInvalidPatch, store.FieldID)
		}
		if err := store.ValidateField(k); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPatch, err)
		}
		if _, err := store.NormalizeValue(v); err != nil {
			return fmt.Errorf("%w: field %q: %w", ErrInvalidPatch, k, err)
		}
	}
	return overlapping(p)
}

// overlapping rejects keys that address the same subtree, which the
// backends would otherwise apply in map order.
func overlapping(p store.Patch) error {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	// a dotted child sorts after its parent, though not always directly
	for i, parent := range keys {
		for _, child := range keys[i+1:] {
			if strings.HasPrefix(child, parent+".") {
				return fmt.Errorf("%w: %q overlaps %q", ErrInvalidPatch, parent, child)
			}
		}
	}
	return nil
}

// Filter validates a query filter.
func Filter(f store.Filter) error {
	if _, err := store.ParseFilter(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return nil
}
