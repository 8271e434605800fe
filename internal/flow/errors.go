package flow

import "errors"

// Domain errors for the flow package.
var (
	// ErrUnknownFlow is returned when a flow ID does not exist or the
	// flow has expired.
	ErrUnknownFlow = errors.New("flow: unknown flow")

	// ErrUnknownHandler is returned when no handler is registered for
	// the requested domain.
	ErrUnknownHandler = errors.New("flow: unknown handler")
)
