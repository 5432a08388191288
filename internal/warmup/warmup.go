package warmup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerbench/ledgerbench/internal/metrics"
)

// Defaults mirror the pre-run traffic the benchmark always issued: five
// rounds over client ids 1..5.
const (
	DefaultRounds         = 5
	DefaultRequestTimeout = 5 * time.Second
)

// DefaultClientIDs returns the default warm-up target ids.
func DefaultClientIDs() []int { return []int{1, 2, 3, 4, 5} }

// Payload is the minimal valid transaction body accepted by the ledger API.
type Payload struct {
	Value       int    `json:"valor"`
	Kind        string `json:"tipo"`
	Description string `json:"descricao"`
}

// DefaultPayload is a one-unit credit, the smallest write that exercises the
// full transaction path.
func DefaultPayload() Payload {
	return Payload{Value: 1, Kind: "c", Description: "warmup"}
}

// Driver issues bounded read+write traffic before the timed run so
// connection pools and caches are hot when measurement starts. It never
// produces a pass/fail signal: warm-up runs before the system is guaranteed
// stable, so every individual failure is logged and skipped.
type Driver struct {
	BaseURL   string
	ClientIDs []int
	Rounds    int
	Payload   Payload
	Timeout   time.Duration
	Log       *slog.Logger

	client *http.Client
}

// Run performs the warm-up. The only error it returns is context
// cancellation; request failures are tolerated by design.
func (d *Driver) Run(ctx context.Context) error {
	rounds := d.Rounds
	if rounds <= 0 {
		rounds = DefaultRounds
	}
	ids := d.ClientIDs
	if len(ids) == 0 {
		ids = DefaultClientIDs()
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: timeout}
	}
	body, err := json.Marshal(d.payload())
	if err != nil {
		return fmt.Errorf("warmup: encode payload: %w", err)
	}

	base := strings.TrimRight(d.BaseURL, "/")
	ok, failed := 0, 0
	for round := 1; round <= rounds; round++ {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := d.get(ctx, fmt.Sprintf("%s/clientes/%d/extrato", base, id)); err != nil {
				failed++
				metrics.IncWarmupRequest("read", "error")
				d.Log.Debug("warmup read failed", "client", id, "round", round, "err", err)
			} else {
				ok++
				metrics.IncWarmupRequest("read", "ok")
			}
			if err := d.post(ctx, fmt.Sprintf("%s/clientes/%d/transacoes", base, id), body); err != nil {
				failed++
				metrics.IncWarmupRequest("write", "error")
				d.Log.Debug("warmup write failed", "client", id, "round", round, "err", err)
			} else {
				ok++
				metrics.IncWarmupRequest("write", "ok")
			}
		}
	}
	d.Log.Info("warmup finished", "ok", ok, "failed", failed, "rounds", rounds, "clients", len(ids))
	return nil
}

func (d *Driver) payload() Payload {
	if d.Payload == (Payload{}) {
		return DefaultPayload()
	}
	return d.Payload
}

func (d *Driver) get(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return d.do(req)
}

func (d *Driver) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return d.do(req)
}

func (d *Driver) do(req *http.Request) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
