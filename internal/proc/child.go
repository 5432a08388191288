package proc

import (
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Child is one spawned process group being tracked. Start places the child in
// its own process group so Stop and Kill can signal the whole group, which
// matters for shell-wrapped commands like "docker compose up" or a Maven
// launcher that forks the actual load generator.
type Child struct {
	spec Spec

	mu       sync.Mutex
	cmd      *exec.Cmd
	started  time.Time
	stopped  time.Time
	waitErr  error
	waitDone chan struct{} // closed when Wait returns
}

// New returns an unstarted Child for spec.
func New(spec Spec) *Child { return &Child{spec: spec} }

// Start spawns the process. The returned error is only about spawning;
// completion is observed via Wait.
func (c *Child) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return errors.New("proc: already started")
	}
	cmd := c.spec.BuildCommand()
	if c.spec.WorkDir != "" {
		cmd.Dir = c.spec.WorkDir
	}
	cmd.Env = mergedEnv(c.spec.Env)
	if c.spec.Stdout != nil {
		cmd.Stdout = c.spec.Stdout
	}
	if c.spec.Stderr != nil {
		cmd.Stderr = c.spec.Stderr
	}
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	c.cmd = cmd
	c.started = time.Now()
	c.waitDone = make(chan struct{})
	go c.reap(cmd)
	return nil
}

// reap owns the single cmd.Wait for this run.
func (c *Child) reap(cmd *exec.Cmd) {
	err := cmd.Wait()
	c.mu.Lock()
	c.waitErr = err
	c.stopped = time.Now()
	close(c.waitDone)
	c.mu.Unlock()
}

// PID returns the child's pid, or 0 before Start.
func (c *Child) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Alive reports whether the child is still running. The probe never signals
// anything but "are you there" and never errors for an already-reaped
// process.
func (c *Child) Alive() bool {
	c.mu.Lock()
	cmd := c.cmd
	done := c.waitDone
	c.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
	}
	return processAlive(cmd.Process.Pid)
}

// Wait blocks until the process exits and returns the wait error.
func (c *Child) Wait() error {
	c.mu.Lock()
	done := c.waitDone
	c.mu.Unlock()
	if done == nil {
		return errors.New("proc: not started")
	}
	<-done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitErr
}

// Done returns a channel closed when the process has exited, or nil before
// Start.
func (c *Child) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitDone
}

// Stop delivers an escalating stop to the process group: a polite terminate,
// then after grace a forced kill. It waits until the child is reaped.
func (c *Child) Stop(grace time.Duration) error {
	c.mu.Lock()
	cmd := c.cmd
	done := c.waitDone
	c.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-done:
		return c.Wait()
	default:
	}
	pid := cmd.Process.Pid
	_ = signalGroup(pid, syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(grace):
		_ = signalGroup(pid, syscall.SIGKILL)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			// give up; the reaper goroutine will finish eventually
		}
	}
	return c.Wait()
}

// Kill forces the whole process group down without a grace period.
func (c *Child) Kill() error {
	c.mu.Lock()
	cmd := c.cmd
	done := c.waitDone
	c.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	_ = signalGroup(cmd.Process.Pid, syscall.SIGKILL)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	return c.Wait()
}
