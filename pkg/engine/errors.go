package engine

import (
	"errors"
	"fmt"

	"github.com/ivyci/enginectl/pkg/types"
)

// Sentinel errors for controller operations. Compare with errors.Is.
var (
	// ErrEngineStartTimeout indicates the engine was not reachable before the start timeout
	ErrEngineStartTimeout = errors.New("engine did not start within timeout")

	// ErrEngineStopTimeout indicates the engine was still alive after the stop timeout and a forced kill
	ErrEngineStopTimeout = errors.New("engine did not stop within timeout")

	// ErrEngineExited indicates the launched process terminated before the engine became reachable
	ErrEngineExited = errors.New("engine process exited before it became reachable")

	// ErrEngineFailed is returned by Stop while the controller is in the ERROR state
	ErrEngineFailed = errors.New("engine is in error state")

	// ErrTransitionInFlight is returned when Start or Stop is called during another transition
	ErrTransitionInFlight = errors.New("engine transition already in progress")

	// ErrNoProcess indicates the handle has no process to act on
	ErrNoProcess = errors.New("no engine process")
)

// Error describes a failed controller operation
type Error struct {
	// Op is "start", "stop" or "kill"
	Op string
	// State is the controller state after the failure
	State types.EngineState
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s failed (state %s): %v", e.Op, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
