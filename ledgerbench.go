package ledgerbench

import (
	"context"
	"log/slog"

	"github.com/ledgerbench/ledgerbench/internal/config"
	"github.com/ledgerbench/ledgerbench/internal/history"
	"github.com/ledgerbench/ledgerbench/internal/runner"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type Config = config.Config

type Result = runner.Result

type HistoryConfig = history.Config

type HistorySink = history.Sink

type RunRecord = history.Record

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Launcher executes benchmark runs sequentially; see the run subcommand for
// the CLI equivalent.
type Launcher struct{ inner *runner.Launcher }

// NewLauncher builds a launcher for embedding.
func NewLauncher(cfg *Config, log *slog.Logger, repetitions int, sink HistorySink) *Launcher {
	return &Launcher{inner: &runner.Launcher{
		Cfg:         cfg,
		Log:         log,
		Repetitions: repetitions,
		Sink:        sink,
	}}
}

// Execute runs the configured repetitions and returns the process exit code.
func (l *Launcher) Execute(ctx context.Context) int { return l.inner.Execute(ctx) }

// NewHistorySink builds the configured history sink, or nil when disabled.
func NewHistorySink(cfg HistoryConfig) (HistorySink, error) { return history.NewSink(cfg) }
