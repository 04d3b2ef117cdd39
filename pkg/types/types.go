// Package types provides core types shared by the engine controller, the deployer and the CLI
package types

import (
	"fmt"
	"strings"
)

// EngineState represents the lifecycle state of the engine process
type EngineState string

const (
	EngineStateStopped  EngineState = "STOPPED"
	EngineStateStarting EngineState = "STARTING"
	EngineStateRunning  EngineState = "RUNNING"
	EngineStateStopping EngineState = "STOPPING"
	EngineStateError    EngineState = "ERROR"
)

// ParseEngineState parses a state name, case insensitive
func ParseEngineState(s string) (EngineState, error) {
	state := EngineState(strings.ToUpper(strings.TrimSpace(s)))
	switch state {
	case EngineStateStopped, EngineStateStarting, EngineStateRunning, EngineStateStopping, EngineStateError:
		return state, nil
	}
	return "", fmt.Errorf("unknown engine state: %q", s)
}

// IsTransitional reports whether the state is only observed while a start or stop is in flight
func (s EngineState) IsTransitional() bool {
	return s == EngineStateStarting || s == EngineStateStopping
}

// CanTransition reports whether the controller may move from s to next
func (s EngineState) CanTransition(next EngineState) bool {
	switch s {
	case EngineStateStopped, EngineStateError:
		return next == EngineStateStarting || next == EngineStateRunning || next == EngineStateStopped
	case EngineStateStarting:
		return next == EngineStateRunning || next == EngineStateError
	case EngineStateRunning:
		return next == EngineStateStopping || next == EngineStateStopped
	case EngineStateStopping:
		return next == EngineStateStopped || next == EngineStateError
	}
	return false
}

// OutcomeKind classifies the result of a deployment
type OutcomeKind string

const (
	OutcomeSuccess            OutcomeKind = "success"
	OutcomePreconditionFailed OutcomeKind = "precondition-failed"
	OutcomeTimeout            OutcomeKind = "timeout"
	OutcomeIOFailure          OutcomeKind = "io-failure"
	OutcomeEngineError        OutcomeKind = "engine-error"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
