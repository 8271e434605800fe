package integration

import "errors"

// Domain errors for the integration package.
var (
	// ErrUnknownDomain is returned when no integration is registered
	// for a config entry's domain.
	ErrUnknownDomain = errors.New("integration: unknown domain")

	// ErrNotLoaded is returned when a command targets an entry whose
	// runtime is not currently loaded.
	ErrNotLoaded = errors.New("integration: entry not loaded")

	// ErrUnknownCommand is returned by runtimes for commands they do
	// not implement.
	ErrUnknownCommand = errors.New("integration: unknown command")
)
