//go:build !windows

package hooks

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the hook in its own process group so timeout
// handling can kill the whole tree, not just the immediate child.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup kills the hook's process group, catching any
// children it spawned (e.g. a backgrounded `sleep`).
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
