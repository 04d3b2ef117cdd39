package engine_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/ivyci/enginectl/pkg/engine"
	"github.com/ivyci/enginectl/pkg/mocks"
	"github.com/ivyci/enginectl/pkg/types"
)

func fastConfig() engine.Config {
	return engine.Config{
		PollInterval: 10 * time.Millisecond,
		KillWait:     300 * time.Millisecond,
	}
}

func newSimulated(sim *mocks.SimulatedEngine, cfg engine.Config) *engine.Controller {
	return engine.NewController(sim, sim, cfg, nil)
}

func TestController_StartWhenRunningDoesNotLaunch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handle := mocks.NewMockProcessHandle(ctrl)
	probe := mocks.NewMockProbe(ctrl)
	probe.EXPECT().Probe().Return(true).AnyTimes()
	// no Launch expectation: a launch fails the test

	c := engine.NewController(handle, probe, fastConfig(), nil)
	if err := c.Start(time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state := c.State(); state != types.EngineStateRunning {
		t.Errorf("expected RUNNING, got %s", state)
	}
}

func TestController_StopWhenStoppedDoesNotSignal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handle := mocks.NewMockProcessHandle(ctrl)
	handle.EXPECT().Alive().Return(false).AnyTimes()
	probe := mocks.NewMockProbe(ctrl)
	probe.EXPECT().Probe().Return(false).AnyTimes()

	c := engine.NewController(handle, probe, fastConfig(), nil)
	if err := c.Stop(time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state := c.State(); state != types.EngineStateStopped {
		t.Errorf("expected STOPPED, got %s", state)
	}
}

func TestController_LaunchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	launchErr := errors.New("exec: no such file")
	handle := mocks.NewMockProcessHandle(ctrl)
	handle.EXPECT().Alive().Return(false).AnyTimes()
	handle.EXPECT().Launch().Return(launchErr).Times(1)
	probe := mocks.NewMockProbe(ctrl)
	probe.EXPECT().Probe().Return(false).AnyTimes()

	c := engine.NewController(handle, probe, fastConfig(), nil)
	err := c.Start(time.Second)

	if !errors.Is(err, launchErr) {
		t.Fatalf("expected launch error, got %v", err)
	}
	var engineErr *engine.Error
	if !errors.As(err, &engineErr) || engineErr.Op != "start" || engineErr.State != types.EngineStateError {
		t.Errorf("expected *engine.Error for start in ERROR, got %#v", err)
	}
}

func TestController_StartSucceeds(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.StartupDelay = 100 * time.Millisecond
	c := newSimulated(sim, fastConfig())

	if err := c.Start(2 * time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state := c.State(); state != types.EngineStateRunning {
		t.Errorf("expected RUNNING, got %s", state)
	}
	if n := sim.LaunchCount(); n != 1 {
		t.Errorf("expected 1 launch, got %d", n)
	}
}

func TestController_StartTimeoutLeavesProcessRunning(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.StartupDelay = time.Hour
	c := newSimulated(sim, fastConfig())

	timeout := 200 * time.Millisecond
	start := time.Now()
	err := c.Start(timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, engine.ErrEngineStartTimeout) {
		t.Fatalf("expected ErrEngineStartTimeout, got %v", err)
	}
	if elapsed < timeout {
		t.Errorf("expected start to wait the full timeout, returned after %v", elapsed)
	}
	if state := c.State(); state != types.EngineStateError {
		t.Errorf("expected ERROR, got %s", state)
	}
	if sim.KillCount() != 0 || sim.TerminateCount() != 0 {
		t.Error("a start timeout must not clean up the process")
	}
	if !sim.Alive() {
		t.Error("expected the spawned process to keep running")
	}
}

func TestController_ErrorIsSticky(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.StartupDelay = time.Hour
	c := newSimulated(sim, fastConfig())

	if err := c.Start(50 * time.Millisecond); err == nil {
		t.Fatal("expected start timeout")
	}

	// the engine comes up late, but ERROR stays until the next Start
	sim.SetRunning(sim.PID())
	if state := c.State(); state != types.EngineStateError {
		t.Errorf("expected sticky ERROR, got %s", state)
	}

	err := c.Stop(time.Second)
	if !errors.Is(err, engine.ErrEngineFailed) {
		t.Errorf("expected ErrEngineFailed from stop in ERROR, got %v", err)
	}

	if err := c.Start(time.Second); err != nil {
		t.Fatalf("expected fresh start from ERROR to succeed, got %v", err)
	}
	if state := c.State(); state != types.EngineStateRunning {
		t.Errorf("expected RUNNING, got %s", state)
	}
	if n := sim.LaunchCount(); n != 1 {
		t.Errorf("a reachable engine must not be launched again, got %d launches", n)
	}
}

func TestController_RetryWaitsForSlowEngine(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.StartupDelay = 300 * time.Millisecond
	c := newSimulated(sim, fastConfig())

	if err := c.Start(50 * time.Millisecond); !errors.Is(err, engine.ErrEngineStartTimeout) {
		t.Fatalf("expected ErrEngineStartTimeout, got %v", err)
	}
	if err := c.Start(2 * time.Second); err != nil {
		t.Fatalf("expected retry to wait for the running process, got %v", err)
	}
	if state := c.State(); state != types.EngineStateRunning {
		t.Errorf("expected RUNNING, got %s", state)
	}
	if n := sim.LaunchCount(); n != 1 {
		t.Errorf("expected the slow process to be reused, got %d launches", n)
	}
}

func TestController_StartDetectsEarlyExit(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.ExitAfter = 30 * time.Millisecond
	c := newSimulated(sim, fastConfig())

	start := time.Now()
	err := c.Start(5 * time.Second)

	if !errors.Is(err, engine.ErrEngineExited) {
		t.Fatalf("expected ErrEngineExited, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("early exit must end the wait before the timeout")
	}
	if state := c.State(); state != types.EngineStateError {
		t.Errorf("expected ERROR, got %s", state)
	}
}

func TestController_StateDuringStart(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.StartupDelay = 300 * time.Millisecond
	c := newSimulated(sim, fastConfig())

	done := make(chan error, 1)
	go func() { done <- c.Start(5 * time.Second) }()

	sawStarting := false
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if c.State() == types.EngineStateStarting {
			sawStarting = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawStarting {
		t.Error("expected STARTING while the start is in flight")
	}
}

func TestController_OverlappingTransitionIsRejected(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.StartupDelay = 200 * time.Millisecond
	c := newSimulated(sim, fastConfig())

	done := make(chan error, 1)
	go func() { done <- c.Start(5 * time.Second) }()

	deadline := time.Now().Add(time.Second)
	for c.State() != types.EngineStateStarting && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}

	if err := c.Stop(time.Second); !errors.Is(err, engine.ErrTransitionInFlight) {
		t.Errorf("expected ErrTransitionInFlight, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestController_StopGraceful(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.ShutdownDelay = 50 * time.Millisecond
	sim.SetRunning(42)
	c := newSimulated(sim, fastConfig())

	if err := c.Stop(2 * time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state := c.State(); state != types.EngineStateStopped {
		t.Errorf("expected STOPPED, got %s", state)
	}
	if sim.TerminateCount() != 1 {
		t.Errorf("expected 1 terminate, got %d", sim.TerminateCount())
	}
	if sim.KillCount() != 0 {
		t.Error("a graceful stop must not kill")
	}
}

func TestController_StopEscalatesToKill(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.IgnoreTerminate = true
	sim.SetRunning(42)
	c := newSimulated(sim, fastConfig())

	timeout := 100 * time.Millisecond
	start := time.Now()
	if err := c.Stop(timeout); err != nil {
		t.Fatalf("expected kill to complete the stop, got %v", err)
	}
	if time.Since(start) < timeout {
		t.Error("kill must only follow the graceful timeout")
	}
	if sim.KillCount() != 1 {
		t.Errorf("expected 1 kill, got %d", sim.KillCount())
	}
	if state := c.State(); state != types.EngineStateStopped {
		t.Errorf("expected STOPPED, got %s", state)
	}
}

func TestController_StopTimeout(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.IgnoreTerminate = true
	sim.IgnoreKill = true
	sim.SetRunning(42)
	cfg := fastConfig()
	cfg.KillWait = 100 * time.Millisecond
	c := newSimulated(sim, cfg)

	start := time.Now()
	err := c.Stop(100 * time.Millisecond)

	if !errors.Is(err, engine.ErrEngineStopTimeout) {
		t.Fatalf("expected ErrEngineStopTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("expected stop timeout plus kill wait, returned after %v", elapsed)
	}
	if state := c.State(); state != types.EngineStateError {
		t.Errorf("expected ERROR, got %s", state)
	}
}

func TestController_TerminateFailureKillsImmediately(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.SetRunning(42)
	sim.SetTerminateError(errors.New("stop command not found"))
	c := newSimulated(sim, fastConfig())

	start := time.Now()
	if err := c.Stop(5 * time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("expected no graceful wait when termination could not be requested")
	}
	if sim.KillCount() != 1 {
		t.Errorf("expected 1 kill, got %d", sim.KillCount())
	}
}

func TestController_KillClearsError(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.StartupDelay = time.Hour
	c := newSimulated(sim, fastConfig())

	c.Start(30 * time.Millisecond)
	if c.State() != types.EngineStateError {
		t.Fatal("expected ERROR after start timeout")
	}

	if err := c.Kill(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state := c.State(); state != types.EngineStateStopped {
		t.Errorf("expected STOPPED after kill, got %s", state)
	}
}

func TestController_Transitions(t *testing.T) {
	sim := mocks.NewSimulatedEngine()
	sim.StartupDelay = 20 * time.Millisecond
	sim.ShutdownDelay = 20 * time.Millisecond

	var mu sync.Mutex
	var got []string
	cfg := fastConfig()
	cfg.OnTransition = func(from, to types.EngineState) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(from)+">"+string(to))
	}
	c := newSimulated(sim, cfg)

	if err := c.Start(time.Second); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Stop(time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}

	expected := []string{
		"STOPPED>STARTING",
		"STARTING>RUNNING",
		"RUNNING>STOPPING",
		"STOPPING>STOPPED",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(expected) {
		t.Fatalf("expected transitions %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("transition %d: expected %s, got %s", i, expected[i], got[i])
		}
	}
}
