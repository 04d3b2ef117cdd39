package types_test

import (
	"testing"

	"github.com/ivyci/enginectl/pkg/types"
)

func TestParseEngineState(t *testing.T) {
	tests := []struct {
		in      string
		want    types.EngineState
		wantErr bool
	}{
		{"running", types.EngineStateRunning, false},
		{" STOPPED ", types.EngineStateStopped, false},
		{"Error", types.EngineStateError, false},
		{"paused", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := types.ParseEngineState(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEngineState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to types.EngineState
		allowed  bool
	}{
		{types.EngineStateStopped, types.EngineStateStarting, true},
		{types.EngineStateStarting, types.EngineStateRunning, true},
		{types.EngineStateStarting, types.EngineStateError, true},
		{types.EngineStateRunning, types.EngineStateStopping, true},
		{types.EngineStateStopping, types.EngineStateStopped, true},
		{types.EngineStateStopping, types.EngineStateError, true},
		{types.EngineStateError, types.EngineStateStarting, true},
		{types.EngineStateStopped, types.EngineStateStopping, false},
		{types.EngineStateRunning, types.EngineStateStarting, false},
		{types.EngineStateStarting, types.EngineStateStopping, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestEngineState_IsTransitional(t *testing.T) {
	if !types.EngineStateStarting.IsTransitional() || !types.EngineStateStopping.IsTransitional() {
		t.Error("expected STARTING and STOPPING to be transitional")
	}
	if types.EngineStateRunning.IsTransitional() {
		t.Error("expected RUNNING to be steady")
	}
}
