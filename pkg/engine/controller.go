// Package engine controls the lifecycle of the engine process.
//
// The Controller owns the engine state machine:
//
//	STOPPED -> STARTING -> RUNNING -> STOPPING -> STOPPED
//
// A start or stop that runs out of time moves to ERROR, which is sticky until the
// next Start. Liveness is judged by a Probe; the process itself is driven through
// a ProcessHandle.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivyci/enginectl/pkg/logger"
	"github.com/ivyci/enginectl/pkg/poll"
	"github.com/ivyci/enginectl/pkg/types"
)

// Controller defaults
const (
	DefaultPollInterval = time.Second
	DefaultKillWait     = 10 * time.Second
)

// Config tunes a Controller
type Config struct {
	// PollInterval is the delay between liveness probes during a transition
	PollInterval time.Duration
	// KillWait is how long Stop waits for the process to vanish after a forced kill
	KillWait time.Duration
	// OnTransition is called after every state change, outside the controller lock
	OnTransition func(from, to types.EngineState)
}

// Controller starts and stops the engine and reports its state.
// State is safe to call at any time. Start, Stop and Kill must be serialized
// by the caller; an overlapping call fails with ErrTransitionInFlight.
type Controller struct {
	handle ProcessHandle
	probe  Probe
	cfg    Config
	logger logger.Logger

	mu    sync.RWMutex
	phase types.EngineState
	busy  atomic.Bool
}

// NewController creates a controller in the STOPPED phase. A nil probe falls back
// to the liveness of the handle's process.
func NewController(handle ProcessHandle, probe Probe, cfg Config, log logger.Logger) *Controller {
	if probe == nil {
		probe = PIDProbe{Handle: handle}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.KillWait <= 0 {
		cfg.KillWait = DefaultKillWait
	}
	return &Controller{
		handle: handle,
		probe:  probe,
		cfg:    cfg,
		logger: logger.OrNop(log).WithTarget("engine"),
		phase:  types.EngineStateStopped,
	}
}

// Handle returns the process handle driven by the controller
func (c *Controller) Handle() ProcessHandle {
	return c.handle
}

// State returns STARTING or STOPPING while a transition is in flight and ERROR
// after a failed one. Otherwise it probes the engine and returns RUNNING or STOPPED.
func (c *Controller) State() types.EngineState {
	phase := c.currentPhase()
	if phase.IsTransitional() || phase == types.EngineStateError {
		return phase
	}
	if c.probe.Probe() {
		return types.EngineStateRunning
	}
	return types.EngineStateStopped
}

// Start launches the engine and waits until it is reachable. It is a no-op when
// the engine already runs. On timeout the controller moves to ERROR and the
// launched process is left running; the caller decides whether to kill it. A
// later Start waits for that process again instead of launching a second one.
func (c *Controller) Start(timeout time.Duration) error {
	if !c.busy.CompareAndSwap(false, true) {
		return &Error{Op: "start", State: c.State(), Err: ErrTransitionInFlight}
	}
	defer c.busy.Store(false)

	if c.probe.Probe() {
		c.transition(types.EngineStateRunning)
		c.logger.Info("Engine is already running")
		return nil
	}
	if c.currentPhase() == types.EngineStateRunning {
		// it died since we last looked
		c.transition(types.EngineStateStopped)
	}

	c.transition(types.EngineStateStarting)
	c.logger.Info(fmt.Sprintf("Starting engine (timeout %s)", timeout))

	if c.handle.Alive() {
		// left running by an earlier start that timed out
		c.logger.Info("Engine process is already up, waiting for it to become reachable",
			logger.WithField("pid", c.handle.PID()))
	} else if err := c.handle.Launch(); err != nil {
		c.transition(types.EngineStateError)
		return &Error{Op: "start", State: types.EngineStateError, Err: err}
	}

	var up, exited bool
	res := poll.Until(timeout, c.cfg.PollInterval, func() bool {
		if c.probe.Probe() {
			up = true
			return true
		}
		exited = c.handle.Exited()
		return exited
	}, nil)

	switch {
	case up:
		c.transition(types.EngineStateRunning)
		c.logger.Success("Engine started",
			logger.WithField("pid", c.handle.PID()),
			logger.WithField("elapsed", res.Elapsed.Round(time.Millisecond)))
		return nil
	case exited:
		c.transition(types.EngineStateError)
		err := ErrEngineExited
		if reporter, ok := c.handle.(interface{ ExitErr() error }); ok && reporter.ExitErr() != nil {
			err = fmt.Errorf("%w: %v", ErrEngineExited, reporter.ExitErr())
		}
		c.logger.Error("Engine process exited during startup", logger.WithError(err))
		return &Error{Op: "start", State: types.EngineStateError, Err: err}
	default:
		c.transition(types.EngineStateError)
		err := fmt.Errorf("%w (%s)", ErrEngineStartTimeout, timeout)
		c.logger.Error("Engine did not become reachable", logger.WithField("pid", c.handle.PID()), logger.WithError(err))
		return &Error{Op: "start", State: types.EngineStateError, Err: err}
	}
}

// Stop shuts the engine down gracefully and waits until it is gone. It is a no-op
// when the engine is not running. When the engine outlives timeout the process is
// killed and re-probed for up to KillWait before the stop is declared failed.
func (c *Controller) Stop(timeout time.Duration) error {
	if !c.busy.CompareAndSwap(false, true) {
		return &Error{Op: "stop", State: c.State(), Err: ErrTransitionInFlight}
	}
	defer c.busy.Store(false)

	if c.currentPhase() == types.EngineStateError {
		return &Error{Op: "stop", State: types.EngineStateError, Err: ErrEngineFailed}
	}
	if !c.running() {
		c.transition(types.EngineStateStopped)
		c.logger.Info("Engine is not running")
		return nil
	}

	c.transition(types.EngineStateRunning)
	c.transition(types.EngineStateStopping)
	c.logger.Info(fmt.Sprintf("Stopping engine (timeout %s)", timeout), logger.WithField("pid", c.handle.PID()))

	graceful := true
	if err := c.handle.Terminate(); err != nil {
		graceful = false
		c.logger.Warn("Graceful shutdown could not be requested", logger.WithError(err))
	}
	if graceful {
		res := poll.Until(timeout, c.cfg.PollInterval, c.down, nil)
		if res.Satisfied {
			c.transition(types.EngineStateStopped)
			c.logger.Success("Engine stopped", logger.WithField("elapsed", res.Elapsed.Round(time.Millisecond)))
			return nil
		}
	}

	c.logger.Warn(fmt.Sprintf("Engine still alive, killing it (waiting up to %s)", c.cfg.KillWait))
	if err := c.handle.Kill(); err != nil && !errors.Is(err, ErrNoProcess) {
		c.logger.Warn("Kill failed", logger.WithError(err))
	}
	if poll.Until(c.cfg.KillWait, c.cfg.PollInterval, c.down, nil).Satisfied {
		c.transition(types.EngineStateStopped)
		c.logger.Warn("Engine killed")
		return nil
	}

	c.transition(types.EngineStateError)
	err := fmt.Errorf("%w (%s)", ErrEngineStopTimeout, timeout)
	c.logger.Error("Engine is still running", logger.WithError(err))
	return &Error{Op: "stop", State: types.EngineStateError, Err: err}
}

// Kill force-kills the tracked process without a graceful shutdown and waits up
// to KillWait for it to vanish. It also clears the ERROR state.
func (c *Controller) Kill() error {
	if !c.busy.CompareAndSwap(false, true) {
		return &Error{Op: "kill", State: c.State(), Err: ErrTransitionInFlight}
	}
	defer c.busy.Store(false)

	if err := c.handle.Kill(); err != nil && !errors.Is(err, ErrNoProcess) {
		return &Error{Op: "kill", State: c.currentPhase(), Err: err}
	}
	if !poll.Until(c.cfg.KillWait, c.cfg.PollInterval, func() bool { return !c.handle.Alive() }, nil).Satisfied {
		return &Error{Op: "kill", State: c.currentPhase(), Err: ErrEngineStopTimeout}
	}
	c.transition(types.EngineStateStopped)
	c.logger.Warn("Engine killed", logger.WithField("pid", c.handle.PID()))
	return nil
}

func (c *Controller) running() bool {
	return c.probe.Probe() || c.handle.Alive()
}

func (c *Controller) down() bool {
	return !c.running()
}

func (c *Controller) currentPhase() types.EngineState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// transition is the only place the phase changes
func (c *Controller) transition(next types.EngineState) {
	c.mu.Lock()
	prev := c.phase
	if prev == next {
		c.mu.Unlock()
		return
	}
	if !prev.CanTransition(next) {
		c.logger.Warn("Unexpected engine state transition",
			logger.WithField("from", prev),
			logger.WithField("to", next))
	}
	c.phase = next
	c.mu.Unlock()

	c.logger.Debug("Engine state changed", logger.WithField("from", prev), logger.WithField("to", next))
	if c.cfg.OnTransition != nil {
		c.cfg.OnTransition(prev, next)
	}
}
