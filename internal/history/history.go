package history

import (
	"context"
	"fmt"
	"time"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomePassed      Outcome = "passed"
	OutcomeFailed      Outcome = "failed"
	OutcomeAborted     Outcome = "aborted"
	OutcomeInterrupted Outcome = "interrupted"
)

// Record is one finished run as persisted to a history sink.
type Record struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Outcome    Outcome           `json:"outcome"`
	ExitCode   int               `json:"exit_code"`
	LogPath    string            `json:"log_path"`
	Phases     map[string]string `json:"phases"` // phase name -> duration string
}

// Sink is a destination for run records. Implementations must be safe for
// concurrent use. Sink failures are always best-effort for the caller.
type Sink interface {
	Send(ctx context.Context, rec Record) error
	Close() error
}

// Config selects and configures a history sink.
type Config struct {
	Type  string `mapstructure:"type"`  // "", "sqlite" or "clickhouse"
	Path  string `mapstructure:"path"`  // sqlite database file
	Addr  string `mapstructure:"addr"`  // clickhouse host:port
	Table string `mapstructure:"table"` // defaults to "ledgerbench_runs"
}

// NewSink builds the configured sink, or nil when history is disabled.
func NewSink(cfg Config) (Sink, error) {
	table := cfg.Table
	if table == "" {
		table = "ledgerbench_runs"
	}
	switch cfg.Type {
	case "":
		return nil, nil
	case "sqlite":
		return NewSQLiteSink(cfg.Path)
	case "clickhouse":
		return NewClickHouseSink(cfg.Addr, table)
	default:
		return nil, fmt.Errorf("history: unknown sink type %q", cfg.Type)
	}
}
