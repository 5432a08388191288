//go:build windows

package proc

import (
	"errors"
	"os/exec"
)

// ExitCode maps a Wait error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if c := ee.ExitCode(); c >= 0 {
			return c
		}
	}
	return 1
}
