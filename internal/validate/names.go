// names.go validates the names used to address data: collections, fields
// and indexes.

package validate

import (
	"fmt"

	"github.com/jpl-au/cmsdb/internal/store"
)

// Collection validates a collection name and returns its physical form.
//
// Validation rules:
//   - Empty names rejected
//   - Characters outside [A-Za-z0-9_] are replaced with '_'
//   - Names that reduce to underscores, or use the "sqlite_" prefix, rejected
func Collection(name string) (string, error) {
	clean, err := store.SanitizeCollection(name)
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidCollection, name, err)
	}
	return clean, nil
}

// Field validates a field name or dotted path.
func Field(field string) error {
	if err := store.ValidateField(field); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidField, err)
	}
	return nil
}

// IndexName validates an explicit index name. Empty means "generate one".
func IndexName(name string) error {
	if name == "" {
		return nil
	}
	if _, err := store.SanitizeCollection(name); err != nil {
		return fmt.Errorf("%w: index name %q: %w", ErrInvalidField, name, err)
	}
	return nil
}
