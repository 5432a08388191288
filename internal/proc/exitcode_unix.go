//go:build !windows

package proc

import (
	"errors"
	"os/exec"
	"syscall"
)

// ExitCode maps a Wait error to a process exit code. A signal-terminated
// child maps to the shell convention 128+signal, so an interrupted load test
// surfaces as 130 just like it would from a terminal.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return ee.ExitCode()
	}
	return 1
}
