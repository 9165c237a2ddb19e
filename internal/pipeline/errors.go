package pipeline

import (
	"errors"
	"fmt"
)

// Named error kinds the driver maps to a diagnostic and a non-zero exit
// status. Every error pipeline returns wraps exactly one of these via
// fmt.Errorf's %w, so callers can branch with errors.Is(err,
// pipeline.ErrPrecondition) without needing a type assertion.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrTraceOpen           = errors.New("trace open failure")
	ErrUnsupportedLink     = errors.New("unsupported link type")
	ErrPrecondition        = errors.New("precondition violation")
	ErrInsufficientPackets = errors.New("insufficient packets")
	ErrInvalidInput        = errors.New("invalid input")
)

// wrap attaches context to one of the named kinds above while keeping it
// errors.Is-reachable.
func wrap(kind error, context string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", context, kind)
	}
	return fmt.Errorf("%s: %w: %v", context, kind, cause)
}
