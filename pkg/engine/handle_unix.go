//go:build !windows

package engine

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

func groupProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// processAlive uses signal 0, which checks existence without delivering anything.
// EPERM means the process exists but belongs to someone else.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func terminateGroup(pid int) error {
	return signalGroup(pid, unix.SIGTERM)
}

func killGroup(pid int) error {
	return signalGroup(pid, unix.SIGKILL)
}

// signalGroup signals the process group led by pid, falling back to the single
// process when pid does not lead a group (an attached engine started elsewhere).
func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, sig)
	}
	if errors.Is(err, unix.ESRCH) {
		return ErrNoProcess
	}
	return err
}
