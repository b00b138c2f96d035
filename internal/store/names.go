package store

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	fieldPattern    = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)
)

// reservedPrefix names tables the SQLite engine owns.
const reservedPrefix = "sqlite_"

// SanitizeCollection maps a logical collection name onto the physical
// table or collection name. Every character outside [A-Za-z0-9_] becomes
// '_'. Names that are empty, sanitise to only underscores, or start with
// the engine-reserved "sqlite_" prefix are rejected.
func SanitizeCollection(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty collection name", ErrValidation)
	}
	s := unsafeNameChars.ReplaceAllString(name, "_")
	if strings.Trim(s, "_") == "" {
		return "", fmt.Errorf("%w: collection name %q has no usable characters", ErrValidation, name)
	}
	if strings.HasPrefix(strings.ToLower(s), reservedPrefix) {
		return "", fmt.Errorf("%w: collection name %q uses reserved prefix %q", ErrValidation, name, reservedPrefix)
	}
	return s, nil
}

// ValidateField checks a field name or dotted path used in a filter, sort,
// projection, distinct or index. Only [A-Za-z0-9_] segments joined by dots
// are accepted so paths can be embedded in query text safely.
func ValidateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: field name %q", ErrValidation, field)
	}
	if field != FieldID && strings.HasPrefix(field, FieldID+".") {
		return fmt.Errorf("%w: %s has no sub-fields", ErrValidation, FieldID)
	}
	return nil
}

// SplitPath splits a dotted field path into its segments.
func SplitPath(field string) []string {
	return strings.Split(field, ".")
}
