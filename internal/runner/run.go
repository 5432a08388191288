package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ledgerbench/ledgerbench/internal/config"
	"github.com/ledgerbench/ledgerbench/internal/dbreset"
	"github.com/ledgerbench/ledgerbench/internal/history"
	"github.com/ledgerbench/ledgerbench/internal/logger"
	"github.com/ledgerbench/ledgerbench/internal/metrics"
	"github.com/ledgerbench/ledgerbench/internal/probe"
	"github.com/ledgerbench/ledgerbench/internal/proc"
	"github.com/ledgerbench/ledgerbench/internal/snapshot"
	"github.com/ledgerbench/ledgerbench/internal/warmup"
)

// DefaultStopGrace is how long a polite stop may take before escalation.
const DefaultStopGrace = 5 * time.Second

type readyWaiter interface {
	Wait(ctx context.Context) error
}

type warmer interface {
	Run(ctx context.Context) error
}

type resetter interface {
	Open() error
	Close() error
	WaitReady(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	Outcome    history.Outcome
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
	Phases     map[string]time.Duration
	LogPath    string
	Err        error
}

// Record converts the result to a history record.
func (r Result) Record() history.Record {
	phases := make(map[string]string, len(r.Phases))
	for k, v := range r.Phases {
		phases[k] = v.Round(time.Millisecond).String()
	}
	return history.Record{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Outcome:    r.Outcome,
		ExitCode:   r.ExitCode,
		LogPath:    r.LogPath,
		Phases:     phases,
	}
}

// Run owns one end-to-end execution of the pipeline. It is the only place
// that decides between best-effort and fatal failures, and the only place
// that maps outcomes to exit codes.
type Run struct {
	ID        string
	Cfg       *config.Config
	Log       *slog.Logger
	RunLog    *logger.RunLog
	Sentinel  string // stop-sentinel path for this run's snapshot logger
	StopGrace time.Duration

	// Collaborators below are built from config when nil; tests inject
	// fakes here.
	Waiter   readyWaiter
	Warmer   warmer
	Resetter resetter
	StatsAPI snapshot.StatsAPI

	watched watchedChild
	phases  map[string]time.Duration
}

// Execute drives the pipeline to completion. Context cancellation is treated
// as an operator interrupt, never as a run failure.
func (r *Run) Execute(ctx context.Context) Result {
	started := time.Now()
	r.phases = make(map[string]time.Duration)
	grace := r.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	r.RunLog.Printf("run %s started", r.ID)

	finish := func(outcome history.Outcome, code int, err error) Result {
		res := Result{
			RunID:      r.ID,
			Outcome:    outcome,
			ExitCode:   code,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Phases:     r.phases,
			LogPath:    r.RunLog.Path(),
			Err:        err,
		}
		metrics.IncRun(string(outcome))
		r.dumpMetrics()
		r.RunLog.Printf("run %s finished: outcome=%s exit=%d", r.ID, outcome, code)
		return res
	}

	// Teardown and startup are best-effort: a fresh environment is desired
	// but prior state may not exist at all.
	if err := r.phase(PhaseTeardown, func() error {
		return r.runCommand(ctx, "teardown", r.Cfg.Compose.Down(), "", nil, grace)
	}); err != nil {
		r.Log.Warn("teardown failed, continuing", "err", err)
	}
	if interrupted(ctx) {
		return finish(history.OutcomeInterrupted, ExitInterrupted, ctx.Err())
	}
	if err := r.phase(PhaseStartup, func() error {
		return r.runCommand(ctx, "startup", r.Cfg.Compose.Up(), "", nil, grace)
	}); err != nil {
		r.Log.Warn("startup failed, continuing", "err", err)
	}
	if interrupted(ctx) {
		return finish(history.OutcomeInterrupted, ExitInterrupted, ctx.Err())
	}

	stopSnapshots := r.startSnapshotLogger(grace)
	defer stopSnapshots()

	if err := r.phase(PhaseAwaitReady, func() error {
		return r.waiter().Wait(ctx)
	}); err != nil {
		if interrupted(ctx) {
			return finish(history.OutcomeInterrupted, ExitInterrupted, err)
		}
		return finish(history.OutcomeAborted, ExitFatal, err)
	}

	// Warm-up never fails the run.
	if err := r.phase(PhaseWarmup, func() error {
		return r.warmer().Run(ctx)
	}); err != nil && interrupted(ctx) {
		return finish(history.OutcomeInterrupted, ExitInterrupted, err)
	}

	if err := r.phase(PhaseReset, r.resetStore(ctx)); err != nil {
		if interrupted(ctx) {
			return finish(history.OutcomeInterrupted, ExitInterrupted, err)
		}
		return finish(history.OutcomeAborted, ExitFatal, err)
	}

	var exitCode int
	err := r.phase(PhaseLoadTest, func() error {
		code, err := r.runLoadTest(ctx, grace)
		exitCode = code
		return err
	})
	stopSnapshots()
	if interrupted(ctx) {
		return finish(history.OutcomeInterrupted, ExitInterrupted, ctx.Err())
	}
	if err != nil {
		return finish(history.OutcomeAborted, ExitFatal, err)
	}
	if exitCode != 0 {
		return finish(history.OutcomeFailed, exitCode, fmt.Errorf("load test exited with code %d", exitCode))
	}
	return finish(history.OutcomePassed, 0, nil)
}

// phase wraps one pipeline step with timing, logging and metrics.
func (r *Run) phase(name Phase, f func() error) error {
	start := time.Now()
	r.RunLog.Printf("phase %s started", name)
	err := f()
	d := time.Since(start)
	r.phases[string(name)] = d
	metrics.ObservePhase(string(name), d.Seconds())
	if err != nil {
		r.RunLog.Printf("phase %s failed after %s: %v", name, d.Round(time.Millisecond), err)
	} else {
		r.RunLog.Printf("phase %s completed in %s", name, d.Round(time.Millisecond))
	}
	return err
}

// runCommand spawns a command as a tracked child process group, mirrors its
// output into the run log, and stops it with escalation when the context is
// cancelled.
func (r *Run) runCommand(ctx context.Context, name, command, workdir string, env []string, grace time.Duration) error {
	stdout, stderr, closeSinks := r.childWriters(name)
	defer closeSinks()
	child := proc.New(proc.Spec{
		Name:    name,
		Command: command,
		WorkDir: workdir,
		Env:     env,
		Stdout:  stdout,
		Stderr:  stderr,
	})
	if err := child.Start(); err != nil {
		return fmt.Errorf("%s: start: %w", name, err)
	}
	select {
	case <-child.Done():
	case <-ctx.Done():
		_ = child.Stop(grace)
		return ctx.Err()
	}
	if err := child.Wait(); err != nil {
		return fmt.Errorf("%s: %w (exit code %d)", name, err, proc.ExitCode(err))
	}
	return nil
}

// childWriters tees a child's output into optional per-process rotating
// files (run-id qualified, so sequential runs never share a file) alongside
// the run log. The returned closer flushes the rotating sinks.
func (r *Run) childWriters(name string) (stdout, stderr io.Writer, closeSinks func()) {
	outW, errW, err := r.Cfg.Log.ProcessWriters(r.ID + "." + name)
	if err != nil {
		r.Log.Warn("per-process log files disabled", "process", name, "err", err)
	}
	stdout = r.RunLog
	stderr = r.RunLog
	closers := make([]io.Closer, 0, 2)
	if outW != nil {
		stdout = io.MultiWriter(r.RunLog, outW)
		closers = append(closers, outW)
	}
	if errW != nil {
		stderr = io.MultiWriter(r.RunLog, errW)
		closers = append(closers, errW)
	}
	return stdout, stderr, func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
}

// startSnapshotLogger launches the background resource logger and returns an
// idempotent stop function implementing the sentinel + grace + cleanup
// sequence.
func (r *Run) startSnapshotLogger(grace time.Duration) func() {
	api := r.StatsAPI
	if api == nil {
		var err error
		api, err = snapshot.NewAPI()
		if err != nil {
			r.Log.Warn("resource snapshots disabled", "err", err)
			r.RunLog.Printf("resource snapshots disabled: %v", err)
			return func() {}
		}
	}
	snapLog := &snapshot.Logger{
		API:          api,
		Project:      r.Cfg.Compose.Project,
		Interval:     r.Cfg.Snapshot.Interval,
		SentinelPath: r.Sentinel,
		Watched:      &r.watched,
		RunLog:       r.RunLog,
		Log:          r.Log,
	}
	snapCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		snapLog.Run(snapCtx)
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		if r.Sentinel != "" {
			_ = os.WriteFile(r.Sentinel, []byte("stop\n"), 0o600)
		}
		interval := r.Cfg.Snapshot.Interval
		if interval <= 0 {
			interval = snapshot.DefaultInterval
		}
		select {
		case <-done:
		case <-time.After(interval + grace):
			cancel()
			<-done
		}
		cancel()
		if r.Sentinel != "" {
			_ = os.Remove(r.Sentinel)
		}
	}
}

// resetStore returns the RESET phase body: wait for connectivity, then apply
// the all-or-nothing baseline reset. This is the one step of the pipeline
// that is not failure-tolerant.
func (r *Run) resetStore(ctx context.Context) func() error {
	return func() error {
		rs := r.Resetter
		if rs == nil {
			rs = &dbreset.Driver{
				DSN:          r.Cfg.Database.DSN,
				ReadyTimeout: r.Cfg.Database.ReadyTimeout,
				PingInterval: r.Cfg.Database.PingInterval,
				Log:          r.Log,
			}
		}
		if err := rs.Open(); err != nil {
			return err
		}
		defer func() { _ = rs.Close() }()
		if err := rs.WaitReady(ctx); err != nil {
			return err
		}
		return rs.Reset(ctx)
	}
}

// runLoadTest invokes the external load-test runner and reports its exit
// code verbatim. The error return is reserved for being unable to run it at
// all.
func (r *Run) runLoadTest(ctx context.Context, grace time.Duration) (int, error) {
	lt := r.Cfg.LoadTest
	stdout, stderr, closeSinks := r.childWriters("load-test")
	defer closeSinks()
	child := proc.New(proc.Spec{
		Name:    "load-test",
		Command: lt.Command,
		WorkDir: lt.WorkDir,
		Env:     lt.Env,
		Stdout:  stdout,
		Stderr:  stderr,
	})
	if err := child.Start(); err != nil {
		return ExitFatal, fmt.Errorf("load test: start: %w", err)
	}
	r.watched.set(child)
	select {
	case <-child.Done():
	case <-ctx.Done():
		r.RunLog.Printf("interrupt received, stopping load test")
		_ = child.Stop(grace)
		return ExitInterrupted, nil
	}
	return proc.ExitCode(child.Wait()), nil
}

func (r *Run) waiter() readyWaiter {
	if r.Waiter != nil {
		return r.Waiter
	}
	prober, err := probe.New(r.Cfg.Compose.Project)
	if err != nil {
		return waitError{err}
	}
	return &probe.Waiter{
		Prober:   prober,
		Services: r.Cfg.Services,
		Interval: r.Cfg.Readiness.Interval,
		Deadline: r.Cfg.Readiness.Deadline,
		Log:      r.Log,
		RunLog:   r.RunLog,
	}
}

func (r *Run) warmer() warmer {
	if r.Warmer != nil {
		return r.Warmer
	}
	w := r.Cfg.Warmup
	return &warmup.Driver{
		BaseURL:   w.BaseURL,
		ClientIDs: w.ClientIDs,
		Rounds:    w.Rounds,
		Timeout:   w.RequestTimeout,
		Log:       r.Log,
	}
}

func (r *Run) dumpMetrics() {
	text, err := metrics.DumpText(prometheus.DefaultGatherer)
	if err != nil {
		r.Log.Warn("metrics dump failed", "err", err)
		return
	}
	r.RunLog.Printf("metrics:\n%s", text)
}

// waitError adapts a construction failure into the readiness phase, where it
// is fatal like any other readiness failure.
type waitError struct{ err error }

func (w waitError) Wait(context.Context) error { return w.err }

func interrupted(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
