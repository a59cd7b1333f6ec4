//go:build unix

package pipeline

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts cmd in its own process group so that
// cancelling kills the browser together with its helper processes
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
