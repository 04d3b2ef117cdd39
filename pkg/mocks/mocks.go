// Package mocks provides test doubles for the engine controller.
package mocks

import (
	"sync"
	"time"
)

// SimulatedEngine is a ProcessHandle and Probe that behaves like an engine on a
// clock: it becomes reachable StartupDelay after Launch and disappears
// ShutdownDelay after Terminate.
type SimulatedEngine struct {
	mu sync.Mutex

	StartupDelay  time.Duration
	ShutdownDelay time.Duration
	// IgnoreTerminate keeps the engine alive after Terminate
	IgnoreTerminate bool
	// IgnoreKill keeps the engine alive after Kill
	IgnoreKill bool
	// ExitAfter makes a launched engine exit on its own before it becomes reachable
	ExitAfter time.Duration

	pid          int
	launchedAt   time.Time
	terminatedAt time.Time
	killed       bool
	running      bool

	launchError    error
	terminateError error

	launchCount    int
	terminateCount int
	killCount      int
}

// NewSimulatedEngine creates a stopped simulated engine
func NewSimulatedEngine() *SimulatedEngine {
	return &SimulatedEngine{}
}

// SetRunning marks the engine as already up, as if started by someone else
func (s *SimulatedEngine) SetRunning(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pid = pid
	s.running = true
	s.launchedAt = time.Now().Add(-s.StartupDelay)
	s.terminatedAt = time.Time{}
	s.killed = false
}

// Launch starts the simulated process
func (s *SimulatedEngine) Launch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.launchCount++
	if s.launchError != nil {
		return s.launchError
	}
	s.pid = 4000 + s.launchCount
	s.running = true
	s.launchedAt = time.Now()
	s.terminatedAt = time.Time{}
	s.killed = false
	return nil
}

// Terminate requests a graceful shutdown
func (s *SimulatedEngine) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.terminateCount++
	if s.terminateError != nil {
		return s.terminateError
	}
	if !s.IgnoreTerminate && s.terminatedAt.IsZero() {
		s.terminatedAt = time.Now()
	}
	return nil
}

// Kill forcibly ends the simulated process
func (s *SimulatedEngine) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.killCount++
	if !s.IgnoreKill {
		s.killed = true
	}
	return nil
}

// Alive reports whether the simulated process exists
func (s *SimulatedEngine) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliveLocked()
}

func (s *SimulatedEngine) aliveLocked() bool {
	if !s.running || s.killed {
		return false
	}
	if s.ExitAfter > 0 && time.Since(s.launchedAt) >= s.ExitAfter {
		return false
	}
	if !s.terminatedAt.IsZero() && time.Since(s.terminatedAt) >= s.ShutdownDelay {
		return false
	}
	return true
}

// Exited reports whether a launched process has gone away
func (s *SimulatedEngine) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && !s.aliveLocked()
}

// PID returns the simulated process id
func (s *SimulatedEngine) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// Probe reports whether the engine is reachable
func (s *SimulatedEngine) Probe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.aliveLocked() {
		return false
	}
	if s.ExitAfter > 0 {
		return false
	}
	return time.Since(s.launchedAt) >= s.StartupDelay
}

// SetLaunchError sets the error to return from Launch
func (s *SimulatedEngine) SetLaunchError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launchError = err
}

// SetTerminateError sets the error to return from Terminate
func (s *SimulatedEngine) SetTerminateError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateError = err
}

// LaunchCount returns how often Launch was called
func (s *SimulatedEngine) LaunchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launchCount
}

// TerminateCount returns how often Terminate was called
func (s *SimulatedEngine) TerminateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminateCount
}

// KillCount returns how often Kill was called
func (s *SimulatedEngine) KillCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killCount
}
