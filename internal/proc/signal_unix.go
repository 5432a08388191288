//go:build !windows

package proc

import (
	"bytes"
	"os"
	"strconv"
	"syscall"
)

// signalGroup delivers sig to the whole process group of pid.
func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

// processAlive checks liveness with signal 0. A reaped-but-unwaited child
// shows up as a zombie on Linux; treat that as not alive.
func processAlive(pid int) bool {
	if isZombie(pid) {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// isZombie returns true when /proc/<pid>/status reports state Z.
func isZombie(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
