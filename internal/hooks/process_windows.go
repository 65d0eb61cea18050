//go:build windows

package hooks

import "os/exec"

// setProcessGroup is a no-op on Windows; exec.Cmd has no portable
// process-group primitive here.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup best-effort kills the immediate process. Windows
// lacks Unix-style process groups, so descendants may survive if they
// detach; this mirrors the teacher's documented Windows limitation.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
