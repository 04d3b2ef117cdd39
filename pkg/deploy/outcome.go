package deploy

import (
	"fmt"
	"time"

	"github.com/ivyci/enginectl/pkg/types"
)

// Outcome is the result of running a Request. Failures are values, never panics,
// so batch callers can aggregate them.
type Outcome struct {
	ID      string
	Kind    types.OutcomeKind
	Success bool
	Elapsed time.Duration
	// Target is the artifact path in the drop directory, for diagnostics and manual cleanup.
	Target string
	// LogPath is set when the engine wrote a deployment log.
	LogPath string
	// Log is the captured content of the deployment log.
	Log string
	// Err is nil on success and wraps the sentinel of Kind otherwise.
	Err error
}

// Failed reports whether the deployment did not succeed
func (o Outcome) Failed() bool {
	return !o.Success
}

// String renders a one-line summary
func (o Outcome) String() string {
	if o.Success {
		return fmt.Sprintf("%s: deployed %s in %s", o.Kind, o.Target, o.Elapsed.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s: %s after %s: %v", o.Kind, o.Target, o.Elapsed.Round(time.Millisecond), o.Err)
}

func succeeded(req *Request, elapsed time.Duration) Outcome {
	return Outcome{
		ID:      req.ID(),
		Kind:    types.OutcomeSuccess,
		Success: true,
		Elapsed: elapsed,
		Target:  req.Target(),
	}
}

func failed(req *Request, kind types.OutcomeKind, elapsed time.Duration, err error) Outcome {
	return Outcome{
		ID:      req.ID(),
		Kind:    kind,
		Elapsed: elapsed,
		Target:  req.Target(),
		Err:     err,
	}
}

func ioFailure(req *Request, elapsed time.Duration, step, path string, err error) Outcome {
	return failed(req, types.OutcomeIOFailure, elapsed,
		fmt.Errorf("%w: %s '%s': %w", ErrIOFailure, step, path, err))
}
