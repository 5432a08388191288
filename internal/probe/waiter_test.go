package probe

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/ledgerbench/ledgerbench/internal/logger"
)

func newTestWaiter(t *testing.T, api ContainerAPI, services []string, interval, deadline time.Duration) (*Waiter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.log")
	rl := logger.OpenRunLog(path, logger.FileConfig{})
	t.Cleanup(func() { _ = rl.Close() })
	return &Waiter{
		Prober:   NewWithAPI(api, "proj"),
		Services: services,
		Interval: interval,
		Deadline: deadline,
		Log:      slog.New(slog.NewTextHandler(os.Stderr, nil)),
		RunLog:   rl,
	}, path
}

func TestWaiter_SucceedsOnFirstTick(t *testing.T) {
	// A has no health probe and one running instance; B has a passing probe.
	api := &fakeAPI{
		byService: map[string][]container.Summary{
			"a": {running("a1", "proj-a-1")},
			"b": {running("b1", "proj-b-1")},
		},
		inspects: map[string]container.InspectResponse{
			"a1": inspectState(true, ""),
			"b1": inspectState(true, "healthy"),
		},
	}
	w, _ := newTestWaiter(t, api, []string{"a", "b"}, time.Hour, time.Hour)
	start := time.Now()
	if err := w.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("success tick must not wait for the interval")
	}
}

func TestWaiter_TimesOutAtDeadline(t *testing.T) {
	api := &fakeAPI{byService: map[string][]container.Summary{}}
	w, logPath := newTestWaiter(t, api, []string{"a"}, 20*time.Millisecond, 100*time.Millisecond)
	start := time.Now()
	err := w.Wait(context.Background())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("failed before the deadline: %s", elapsed)
	}
	b, _ := os.ReadFile(logPath)
	if !strings.Contains(string(b), "a: no instances discovered") {
		t.Fatalf("diagnostic dump missing service state: %q", string(b))
	}
}

func TestWaiter_Cancellation(t *testing.T) {
	api := &fakeAPI{byService: map[string][]container.Summary{}}
	w, _ := newTestWaiter(t, api, []string{"a"}, 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	if err := w.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaiter_EmptyServiceListIsNeverReady(t *testing.T) {
	api := &fakeAPI{byService: map[string][]container.Summary{}}
	w, _ := newTestWaiter(t, api, nil, 10*time.Millisecond, 50*time.Millisecond)
	if err := w.Wait(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("empty watch list should time out, got %v", err)
	}
}
