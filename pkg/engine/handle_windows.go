//go:build windows

package engine

import (
	"os"
	"syscall"
)

func groupProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	proc.Release()
	return true
}

// Windows has no SIGTERM; graceful shutdown needs a configured stop command.
func terminateGroup(pid int) error {
	return killGroup(pid)
}

func killGroup(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return ErrNoProcess
	}
	return proc.Kill()
}
