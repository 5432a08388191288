package proc

import (
	"strings"
	"testing"
)

func TestBuildCommand_Plain(t *testing.T) {
	s := Spec{Command: "echo hello world"}
	cmd := s.BuildCommand()
	if got := strings.Join(cmd.Args, " "); !strings.HasSuffix(got, "echo hello world") {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
	if strings.Contains(cmd.Path, "sh") {
		t.Fatalf("plain command should not be shell-wrapped: %s", cmd.Path)
	}
}

func TestBuildCommand_Metachars(t *testing.T) {
	s := Spec{Command: "echo hi > /tmp/out"}
	cmd := s.BuildCommand()
	if cmd.Args[0] != "/bin/sh" || cmd.Args[1] != "-c" {
		t.Fatalf("expected shell wrapping, got %v", cmd.Args)
	}
}

func TestBuildCommand_ExplicitShell(t *testing.T) {
	s := Spec{Command: `sh -c 'echo hi; echo bye'`}
	cmd := s.BuildCommand()
	if cmd.Args[0] != "/bin/sh" || cmd.Args[1] != "-c" {
		t.Fatalf("expected one shell layer, got %v", cmd.Args)
	}
	if cmd.Args[2] != "echo hi; echo bye" {
		t.Fatalf("quoting not stripped: %q", cmd.Args[2])
	}
}

func TestBuildCommand_Empty(t *testing.T) {
	s := Spec{Command: "   "}
	cmd := s.BuildCommand()
	if cmd == nil {
		t.Fatal("expected non-nil command for empty spec")
	}
}
