package warmup

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDriver_IssuesReadsAndWritesPerRoundPerID(t *testing.T) {
	var reads, writes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/extrato"):
			reads.Add(1)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/transacoes"):
			var p Payload
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Value <= 0 || p.Kind == "" {
				t.Errorf("bad payload: %+v err=%v", p, err)
			}
			writes.Add(1)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := &Driver{BaseURL: srv.URL, ClientIDs: []int{1, 2, 3}, Rounds: 2, Log: testLogger()}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if reads.Load() != 6 || writes.Load() != 6 {
		t.Fatalf("expected 6 reads and 6 writes, got %d/%d", reads.Load(), writes.Load())
	}
}

func TestDriver_ToleratesIndividualFailures(t *testing.T) {
	var n atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every other request fails hard.
		if n.Add(1)%2 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := &Driver{BaseURL: srv.URL, Rounds: 2, Log: testLogger()}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("warmup must tolerate request failures: %v", err)
	}
}

func TestDriver_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := &Driver{BaseURL: srv.URL, Rounds: 1, Log: testLogger()}
	for i := 0; i < 2; i++ {
		if err := d.Run(context.Background()); err != nil {
			t.Fatalf("warmup run %d: %v", i+1, err)
		}
	}
}

func TestDriver_UnreachableEndpointIsNotFatal(t *testing.T) {
	d := &Driver{
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Rounds:  1,
		Timeout: 200 * time.Millisecond,
		Log:     testLogger(),
	}
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("network failures must be tolerated: %v", err)
	}
}

func TestDriver_CancellationStopsTheRound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Driver{BaseURL: srv.URL, Rounds: 100, Log: testLogger()}
	if err := d.Run(ctx); err == nil {
		t.Fatal("cancelled warmup should return the context error")
	}
}

func TestDefaultPayloadShape(t *testing.T) {
	b, err := json.Marshal(DefaultPayload())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, field := range []string{`"valor"`, `"tipo"`, `"descricao"`} {
		if !strings.Contains(s, field) {
			t.Fatalf("payload missing %s: %s", field, s)
		}
	}
}
