package dbreset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Defaults for the connection-ready wait loop.
const (
	DefaultReadyTimeout = 90 * time.Second
	DefaultPingInterval = 2 * time.Second
)

// Reset statements. Order matters: history first, then balances. Both run in
// one transaction; a partially reset store invalidates the benchmark, so
// nothing ever commits halfway.
var resetStatements = []string{
	`TRUNCATE TABLE transactions`,
	`UPDATE accounts SET balance = 0`,
}

// ErrNotReachable is returned when the store never accepts connections
// within the ready timeout.
var ErrNotReachable = errors.New("database not reachable before deadline")

// Driver brings the ledger store to its known-empty baseline.
type Driver struct {
	DSN          string
	ReadyTimeout time.Duration
	PingInterval time.Duration
	Log          *slog.Logger

	db *sql.DB
}

// Open prepares the connection pool. No I/O happens until WaitReady.
func (d *Driver) Open() error {
	db, err := sql.Open("pgx", d.DSN)
	if err != nil {
		return fmt.Errorf("dbreset: open: %w", err)
	}
	d.db = db
	return nil
}

// Close releases the pool.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// WaitReady pings the store until it accepts connections or the bounded
// retry window closes. Cancellation is re-checked every attempt.
func (d *Driver) WaitReady(ctx context.Context) error {
	timeout := d.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	interval := d.PingInterval
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	start := time.Now()
	limit := start.Add(timeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := d.db.PingContext(pingCtx)
		cancel()
		if err == nil {
			d.Log.Debug("database reachable", "waited", time.Since(start).Round(time.Millisecond))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !time.Now().Before(limit) {
			return fmt.Errorf("%w (waited %s): %v", ErrNotReachable, timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Reset applies all reset statements as a single all-or-nothing unit. On any
// failure the transaction is rolled back and the error names the statement
// that failed, so the run can be diagnosed without re-running.
func (d *Driver) Reset(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbreset: begin: %w", err)
	}
	for _, stmt := range resetStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("dbreset: statement %q failed: %w", stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbreset: commit: %w", err)
	}
	d.Log.Info("database reset to baseline")
	return nil
}
