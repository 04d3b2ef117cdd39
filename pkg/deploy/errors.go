package deploy

import "errors"

// Sentinel errors carried by Outcome.Err. Compare with errors.Is.
var (
	// ErrPreconditionFailed indicates a missing source or deploy directory.
	// Nothing was written.
	ErrPreconditionFailed = errors.New("deployment precondition failed")

	// ErrIOFailure indicates a write, copy or delete failed during the handshake.
	// Files may be left behind at the target path.
	ErrIOFailure = errors.New("deployment i/o failure")

	// ErrTimeout indicates the engine did not acknowledge the drop in time.
	// The artifact is left in place.
	ErrTimeout = errors.New("deployment timed out")

	// ErrEngineReported indicates the engine acknowledged the drop with an error report
	ErrEngineReported = errors.New("engine reported deployment error")
)
