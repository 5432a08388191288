package proc

import (
	"io"
	"os/exec"
	"strings"
)

// Spec describes one child process to spawn and track.
type Spec struct {
	Name    string   // used for logging and derived file names
	Command string   // command line to run (shell metacharacters allowed)
	WorkDir string   // optional working dir
	Env     []string // optional extra environment, KEY=VALUE form
	Stdout  io.Writer
	Stderr  io.Writer
}

// BuildCommand constructs an *exec.Cmd for the spec's command string.
// A shell is only involved when the command needs one, and an explicit
// "sh -c ..." prefix is honored without double-wrapping.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if after, ok := parseExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", after)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(parts[0], args...)
}

// parseExplicitShell detects a leading "sh -c <ARG>" (or absolute-path
// variants) and returns the argument after -c with one layer of quoting
// stripped, so the script reaches the shell intact.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}
