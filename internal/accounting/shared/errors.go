package shared

import "errors"

var (
	// ErrInvalidRange indicates a reversed, empty or unsupported date range.
	ErrInvalidRange = errors.New("accounting: invalid date range")
	// ErrCyclicHierarchy indicates an account type reachable from itself.
	ErrCyclicHierarchy = errors.New("accounting: cyclic account type hierarchy")
	// ErrUnknownReport indicates a report name without a registered configuration.
	ErrUnknownReport = errors.New("accounting: unknown report")
	// ErrUnknownWindow indicates a ratio or variance referencing a window the report does not compute.
	ErrUnknownWindow = errors.New("accounting: unknown window")
)
