//go:build !unix

package harness

import "os/exec"

// configureProcessGroup is a no-op where process groups are unavailable;
// cmd.WaitDelay still bounds how long a timed-out invocation can linger.
func configureProcessGroup(cmd *exec.Cmd) {}
