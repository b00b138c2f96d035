// Package validate provides input validation for cmsdb's data access layer.
//
// This package enforces the rules every caller of the database facade must
// satisfy before a request reaches a backend: collection names that cannot
// inject, well-formed ids, patches that never touch _id, and values inside
// the supported document value set. Each function returns nil on success
// or a descriptive error on failure.
//
// # Validation Functions
//
// Collection and Field check names used to address data.
// ID checks a document id is present and free of control bytes.
// Patch, Document and Filter check request bodies.
// IndexName checks an explicit index name.
//
// # Error Handling
//
// All validation errors wrap one of the sentinel errors defined in errors.go
// (ErrInvalidCollection, ErrInvalidID, etc.), and every sentinel wraps
// store.ErrValidation. Use errors.Is() for either granularity:
//
//	if errors.Is(err, store.ErrValidation) {
//	    // caller error, do not retry
//	}
package validate
