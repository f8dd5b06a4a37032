//go:build unix

package harness

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the child in its own process group and kills
// the whole group when the invocation context ends, so processes forked by
// user code are terminated together with the bootstrap.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
