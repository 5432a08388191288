package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerbench/ledgerbench/internal/logger"
)

// Defaults for the readiness wait loop.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultDeadline     = 90 * time.Second
)

// ErrNotReady is returned when services do not become ready before the
// deadline. The run must abort on it.
var ErrNotReady = errors.New("services not ready before deadline")

// Waiter blocks until every watched service is ready, with a hard deadline.
type Waiter struct {
	Prober   *Prober
	Services []string
	Interval time.Duration
	Deadline time.Duration
	Log      *slog.Logger
	RunLog   *logger.RunLog
}

// Wait polls until all services satisfy the readiness predicate or the
// deadline elapses. On timeout it dumps every service's current state to the
// run log and returns ErrNotReady. Cancellation is re-checked every tick.
func (w *Waiter) Wait(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := w.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	start := time.Now()
	limit := start.Add(deadline)

	for {
		statuses := w.Prober.ProbeAll(ctx, w.Services)
		if allReady(statuses) {
			w.RunLog.Printf("all services ready after %s", time.Since(start).Round(time.Millisecond))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !time.Now().Before(limit) {
			w.dump(statuses)
			return fmt.Errorf("%w (waited %s)", ErrNotReady, deadline)
		}
		w.Log.Debug("services not ready yet", "waited", time.Since(start).Round(time.Second))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func allReady(statuses []ServiceStatus) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, st := range statuses {
		if !st.Ready() {
			return false
		}
	}
	return true
}

// dump writes the full diagnostic state of every service so a failed run can
// be diagnosed from the log alone.
func (w *Waiter) dump(statuses []ServiceStatus) {
	w.RunLog.Printf("readiness deadline elapsed; service state dump:")
	for _, st := range statuses {
		w.RunLog.Printf("  %s", st.Summary())
		w.Log.Error("service not ready", "service", st.Name, "state", st.Summary())
	}
}
