// errors.go defines sentinel errors for validation failures.
//
// Each sentinel wraps store.ErrValidation so callers that only care whether
// the input was rejected need a single check.

package validate

import (
	"fmt"

	"github.com/jpl-au/cmsdb/internal/store"
)

var (
	ErrInvalidCollection = fmt.Errorf("%w: collection", store.ErrValidation)
	ErrInvalidID         = fmt.Errorf("%w: id", store.ErrValidation)
	ErrInvalidField      = fmt.Errorf("%w: field", store.ErrValidation)
	ErrInvalidPatch      = fmt.Errorf("%w: patch", store.ErrValidation)
	ErrInvalidDocument   = fmt.Errorf("%w: document", store.ErrValidation)
	ErrInvalidFilter     = fmt.Errorf("%w: filter", store.ErrValidation)
)
