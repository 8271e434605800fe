package configentry

import "errors"

// Domain errors for the configentry package.
//
// ErrNotReady and ErrAuthFailed are the two signals integrations return
// from setup to steer the lifecycle: the first schedules retries, the
// second parks the entry until the user reconfigures it.
var (
	// ErrNotFound is returned when a config entry ID does not exist.
	ErrNotFound = errors.New("configentry: not found")

	// ErrAlreadyConfigured is returned when a flow finishes with a
	// unique ID that another entry in the same domain already holds.
	ErrAlreadyConfigured = errors.New("configentry: already configured")

	// ErrNotReady indicates a recoverable setup failure such as an
	// unreachable device. Setup is retried with increasing backoff.
	ErrNotReady = errors.New("configentry: not ready")

	// ErrAuthFailed indicates the stored credentials were rejected.
	// The entry enters the auth_failed state and is not retried.
	ErrAuthFailed = errors.New("configentry: authentication failed")

	// ErrInvalid is returned when entry validation fails.
	ErrInvalid = errors.New("configentry: invalid")
)
