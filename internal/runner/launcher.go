package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ledgerbench/ledgerbench/internal/config"
	"github.com/ledgerbench/ledgerbench/internal/history"
	"github.com/ledgerbench/ledgerbench/internal/logger"
)

// Launcher executes N independent runs sequentially. Each run gets a
// distinct timestamp-qualified log file and stop-sentinel path, so
// sequential (or accidentally overlapping) runs never interfere through
// shared files.
type Launcher struct {
	Cfg         *config.Config
	Log         *slog.Logger
	Repetitions int
	Sink        history.Sink

	// NewRun lets tests intercept run construction.
	NewRun func(id, logPath, sentinel string) *Run
}

// Execute performs the repetitions and returns the process exit code: the
// first non-passed run's code, or 0 when every run passed. A fatal run
// outcome aborts the remaining repetitions.
func (l *Launcher) Execute(ctx context.Context) int {
	n := l.Repetitions
	if n < 1 {
		n = 1
	}
	logDir := l.Cfg.Log.File.Dir
	if logDir == "" {
		logDir = "."
	}
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		l.Log.Error("cannot create log directory", "dir", logDir, "err", err)
		return ExitFatal
	}

	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			l.Log.Warn("interrupted before run", "run", i)
			return ExitInterrupted
		}
		id := newRunID(i)
		logPath := filepath.Join(logDir, id+".log")
		sentinel := filepath.Join(logDir, id+".stop")

		run := l.buildRun(id, logPath, sentinel)
		l.Log.Info("starting run", "run", id, "repetition", i, "of", n, "log", logPath)
		res := run.Execute(ctx)
		_ = run.RunLog.Close()
		l.record(res)
		l.Log.Info("run finished", "run", id, "outcome", res.Outcome, "exit", res.ExitCode)

		if res.Outcome != history.OutcomePassed {
			if i < n {
				l.Log.Warn("aborting remaining repetitions", "remaining", n-i, "outcome", res.Outcome)
			}
			return res.ExitCode
		}
	}
	return 0
}

var runSeq atomic.Uint64

// newRunID builds a run identifier that stays unique across launcher
// invocations sharing a log directory: the timestamp alone collides when two
// orchestrator processes start within the same second, so the pid and a
// process-wide sequence number qualify it further.
func newRunID(rep int) string {
	return fmt.Sprintf("run-%s-%d-%d-%02d",
		time.Now().Format("20060102-150405"), os.Getpid(), runSeq.Add(1), rep)
}

func (l *Launcher) buildRun(id, logPath, sentinel string) *Run {
	if l.NewRun != nil {
		return l.NewRun(id, logPath, sentinel)
	}
	return &Run{
		ID:       id,
		Cfg:      l.Cfg,
		Log:      l.Log.With("run", id),
		RunLog:   logger.OpenRunLog(logPath, l.Cfg.Log.File),
		Sentinel: sentinel,
	}
}

// record sends the run to the history sink, best-effort.
func (l *Launcher) record(res Result) {
	if l.Sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.Sink.Send(ctx, res.Record()); err != nil {
		l.Log.Warn("history sink write failed", "run", res.RunID, "err", err)
	}
}
