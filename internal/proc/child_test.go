//go:build !windows

package proc

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestChild_ExitCodePropagation(t *testing.T) {
	c := New(Spec{Name: "exit7", Command: "sh -c 'exit 7'"})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := c.Wait()
	if err == nil {
		t.Fatal("expected non-nil wait error for exit 7")
	}
	if code := ExitCode(err); code != 7 {
		t.Fatalf("ExitCode = %d, want 7", code)
	}
}

func TestChild_ExitCodeZero(t *testing.T) {
	c := New(Spec{Name: "ok", Command: "true"})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code := ExitCode(nil); code != 0 {
		t.Fatalf("ExitCode(nil) = %d, want 0", code)
	}
}

func TestChild_AliveIsNonDestructive(t *testing.T) {
	c := New(Spec{Name: "sleeper", Command: "sleep 5"})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = c.Kill() }()
	for i := 0; i < 10; i++ {
		if !c.Alive() {
			t.Fatal("child reported dead while sleeping")
		}
	}
}

func TestChild_AliveAfterExit(t *testing.T) {
	c := New(Spec{Name: "quick", Command: "true"})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = c.Wait()
	if c.Alive() {
		t.Fatal("reaped child reported alive")
	}
}

func TestChild_AliveBeforeStart(t *testing.T) {
	c := New(Spec{Name: "unstarted", Command: "true"})
	if c.Alive() {
		t.Fatal("unstarted child reported alive")
	}
}

func TestChild_StopEscalation(t *testing.T) {
	// A child that ignores SIGTERM must still die via the SIGKILL escalation.
	c := New(Spec{Name: "stubborn", Command: `sh -c 'trap "" TERM; sleep 30'`})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	start := time.Now()
	_ = c.Stop(300 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("stop took too long: %s", elapsed)
	}
	if c.Alive() {
		t.Fatal("child still alive after Stop")
	}
}

func TestChild_StopGraceful(t *testing.T) {
	c := New(Spec{Name: "polite", Command: "sleep 30"})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = c.Stop(2 * time.Second)
	if c.Alive() {
		t.Fatal("child still alive after graceful stop")
	}
	if code := ExitCode(c.Wait()); code != 128+15 {
		t.Fatalf("ExitCode = %d, want 143 (SIGTERM)", code)
	}
}

func TestChild_StopUnstarted(t *testing.T) {
	c := New(Spec{Name: "unstarted", Command: "true"})
	if err := c.Stop(time.Second); err != nil {
		t.Fatalf("Stop on unstarted child: %v", err)
	}
}

func TestChild_OutputCapture(t *testing.T) {
	var buf bytes.Buffer
	c := New(Spec{Name: "echo", Command: "echo captured", Stdout: &buf})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = c.Wait()
	if !strings.Contains(buf.String(), "captured") {
		t.Fatalf("stdout not captured: %q", buf.String())
	}
}

func TestChild_LocaleForcedWithoutSpecEnv(t *testing.T) {
	// The locale must be pinned at the spawn boundary even when the spec
	// carries no extra env entries, or child output encoding follows
	// whatever the host happens to export.
	t.Setenv("LANG", "pt_BR.ISO-8859-1")
	var buf bytes.Buffer
	c := New(Spec{Name: "env", Command: "env", Stdout: &buf})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = c.Wait()
	if !strings.Contains(buf.String(), "LANG=C.UTF-8") {
		t.Fatalf("LANG not forced in child env:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "LC_ALL=C.UTF-8") {
		t.Fatalf("LC_ALL not forced in child env:\n%s", buf.String())
	}
}

func TestChild_DoubleStart(t *testing.T) {
	c := New(Spec{Name: "once", Command: "sleep 1"})
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = c.Kill() }()
	if err := c.Start(); err == nil {
		t.Fatal("second Start should fail")
	}
}
