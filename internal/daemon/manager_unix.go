//go:build !windows

package daemon

import (
	"os/exec"
	"syscall"
)

// killProcess sends a signal to a process
func killProcess(pid int, signal syscall.Signal) error {
	return syscall.Kill(pid, signal)
}

// isProcessAlive checks if a process is still running
func isProcessAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// setSysProcAttr detaches the daemon child into its own session
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}

// SetProcGrp puts a spawned process into its own process group so signals
// aimed at the client do not take the daemon down with it.
func SetProcGrp(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
