package casefile

import (
	"errors"
	"fmt"
)

// Error kinds shared by every workflow component. Components wrap them with
// fmt.Errorf("%w: ...") and callers test with errors.Is.
var (
	// ErrValidation marks a malformed server payload.
	ErrValidation = errors.New("validation error")
	// ErrNetwork marks an unreachable service or a timeout.
	ErrNetwork = errors.New("network error")
	// ErrNotFound marks an absent case, footprint or report.
	ErrNotFound = errors.New("not found")
	// ErrGuard marks an operation attempted without its precondition.
	ErrGuard = errors.New("guard violation")
)

// Kind returns a short name for the error's kind, or "internal" when err is
// not one of the workflow kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrGuard):
		return "guard"
	default:
		return "internal"
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
