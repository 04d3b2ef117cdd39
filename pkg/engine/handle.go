package engine

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/ivyci/enginectl/pkg/logger"
)

//go:generate mockgen -destination=../mocks/engine_mock.go -package=mocks github.com/ivyci/enginectl/pkg/engine ProcessHandle,Probe

// ProcessHandle controls the operating system process of the engine
type ProcessHandle interface {
	// Launch starts the process. It returns once the process is spawned, not when it is ready.
	Launch() error
	// Terminate asks the process to shut down gracefully
	Terminate() error
	// Kill forcibly ends the process
	Kill() error
	// Alive reports whether the tracked process exists
	Alive() bool
	// Exited reports whether a tracked process is known to have terminated
	Exited() bool
	// PID returns the tracked process id, 0 when none
	PID() int
}

// ExecConfig describes how to run the engine
type ExecConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	// StopCommand, when set, is run for a graceful shutdown instead of sending SIGTERM
	StopCommand string
	StopArgs    []string
	// Stdout and Stderr receive the engine's console output. Discarded when nil.
	Stdout io.Writer
	Stderr io.Writer
}

// ExecHandle is the ProcessHandle for a locally spawned engine. The engine runs in
// its own process group so that Kill also ends the processes it forks.
type ExecHandle struct {
	cfg    ExecConfig
	logger logger.Logger

	mu      sync.Mutex
	pid     int
	done    chan struct{}
	waitErr error
}

// NewExecHandle creates a handle that launches cfg.Command
func NewExecHandle(cfg ExecConfig, log logger.Logger) *ExecHandle {
	return &ExecHandle{
		cfg:    cfg,
		logger: logger.OrNop(log),
	}
}

// Launch implements ProcessHandle
func (h *ExecHandle) Launch() error {
	if h.cfg.Command == "" {
		return errors.New("no engine command configured")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pid != 0 && h.aliveLocked() {
		return fmt.Errorf("engine process %d is already running", h.pid)
	}

	cmd := exec.Command(h.cfg.Command, h.cfg.Args...)
	cmd.Dir = h.cfg.Dir
	if len(h.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), h.cfg.Env...)
	}
	cmd.Stdout = h.cfg.Stdout
	cmd.Stderr = h.cfg.Stderr
	cmd.SysProcAttr = groupProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch engine: %w", err)
	}

	done := make(chan struct{})
	h.pid = cmd.Process.Pid
	h.done = done
	h.waitErr = nil

	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		h.mu.Unlock()
		close(done)
	}()

	h.logger.Info("Launched engine process",
		logger.WithField("pid", h.pid),
		logger.WithField("command", h.cfg.Command))
	return nil
}

// Attach adopts an engine process launched by an earlier invocation
func (h *ExecHandle) Attach(pid int) error {
	if pid <= 0 || !processAlive(pid) {
		return fmt.Errorf("%w: pid %d", ErrNoProcess, pid)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.pid = pid
	h.done = nil
	h.waitErr = nil
	return nil
}

// Terminate implements ProcessHandle. A configured stop command also works
// for an engine this handle did not launch.
func (h *ExecHandle) Terminate() error {
	if h.cfg.StopCommand != "" {
		cmd := exec.Command(h.cfg.StopCommand, h.cfg.StopArgs...)
		cmd.Dir = h.cfg.Dir
		cmd.Stdout = h.cfg.Stdout
		cmd.Stderr = h.cfg.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("stop command failed: %w", err)
		}
		return nil
	}

	pid := h.PID()
	if pid == 0 {
		return ErrNoProcess
	}
	return terminateGroup(pid)
}

// Kill implements ProcessHandle
func (h *ExecHandle) Kill() error {
	pid := h.PID()
	if pid == 0 {
		return ErrNoProcess
	}
	return killGroup(pid)
}

// Alive implements ProcessHandle
func (h *ExecHandle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.aliveLocked()
}

func (h *ExecHandle) aliveLocked() bool {
	if h.pid == 0 {
		return false
	}
	if h.done != nil {
		select {
		case <-h.done:
			return false
		default:
			return true
		}
	}
	return processAlive(h.pid)
}

// Exited implements ProcessHandle
func (h *ExecHandle) Exited() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid != 0 && !h.aliveLocked()
}

// PID implements ProcessHandle
func (h *ExecHandle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

// ExitErr returns the wait error of a launched process that has exited
func (h *ExecHandle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitErr
}

// ProcessAlive reports whether a process with pid exists
func ProcessAlive(pid int) bool {
	return pid > 0 && processAlive(pid)
}
