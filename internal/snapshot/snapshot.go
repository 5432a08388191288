package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/ledgerbench/ledgerbench/internal/logger"
	"github.com/ledgerbench/ledgerbench/internal/metrics"
)

// DefaultInterval is the fixed snapshot cadence.
const DefaultInterval = 2 * time.Second

// StatsAPI is the slice of the Docker client the snapshot logger needs.
type StatsAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStatsOneShot(ctx context.Context, containerID string) (container.StatsResponseReader, error)
}

// Watched is anything whose liveness gates the snapshot loop; in practice the
// load-test child process.
type Watched interface {
	Alive() bool
}

// Logger periodically appends per-container resource usage lines to the run
// log while the watched process is alive and no stop condition is observed.
type Logger struct {
	API          StatsAPI
	Project      string // compose project label; empty means all monitored services
	Interval     time.Duration
	SentinelPath string // optional; existence requests stop
	Watched      Watched
	RunLog       *logger.RunLog
	Log          *slog.Logger
}

// NewAPI builds an environment-configured Docker client for stats capture.
func NewAPI() (StatsAPI, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("snapshot: docker client: %w", err)
	}
	return cli, nil
}

// Run loops until a stop condition triggers, then writes a termination line
// and returns. Stop priority per tick: sentinel/cancel first, then watched
// process liveness, then (and only then) the snapshot attempt. A failed
// snapshot is logged and the loop continues.
func (l *Logger) Run(ctx context.Context) {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	l.RunLog.Printf("resource snapshot logger started (interval %s)", interval)
	for {
		if reason, stop := l.stopRequested(ctx); stop {
			l.RunLog.Printf("resource snapshot logger stopped (%s)", reason)
			return
		}
		if l.Watched != nil && !l.Watched.Alive() {
			l.RunLog.Printf("resource snapshot logger stopped (watched process exited)")
			return
		}
		l.capture(ctx)
		select {
		case <-ctx.Done():
			l.RunLog.Printf("resource snapshot logger stopped (cancelled)")
			return
		case <-time.After(interval):
		}
	}
}

func (l *Logger) stopRequested(ctx context.Context) (string, bool) {
	if l.SentinelPath != "" {
		if _, err := os.Stat(l.SentinelPath); err == nil {
			return "stop sentinel observed", true
		}
	}
	if ctx.Err() != nil {
		return "cancelled", true
	}
	return "", false
}

// capture takes one snapshot of every monitored container. Failures are
// never fatal to the loop.
func (l *Logger) capture(ctx context.Context) {
	metrics.IncSnapshotTick()
	args := filters.NewArgs()
	if l.Project != "" {
		args.Add("label", "com.docker.compose.project="+l.Project)
	}
	list, err := l.API.ContainerList(ctx, container.ListOptions{Filters: args})
	if err != nil {
		metrics.IncSnapshotError()
		l.RunLog.Printf("snapshot error: list containers: %v", err)
		return
	}
	for _, c := range list {
		line, err := l.statsLine(ctx, c)
		if err != nil {
			metrics.IncSnapshotError()
			l.RunLog.Printf("snapshot error: %s: %v", containerName(c), err)
			continue
		}
		l.RunLog.Printf("snapshot %s", line)
	}
}

func (l *Logger) statsLine(ctx context.Context, c container.Summary) (string, error) {
	rd, err := l.API.ContainerStatsOneShot(ctx, c.ID)
	if err != nil {
		return "", err
	}
	defer func() { _ = rd.Body.Close() }()
	var st container.StatsResponse
	if err := json.NewDecoder(rd.Body).Decode(&st); err != nil {
		return "", err
	}
	memMB := float64(st.MemoryStats.Usage) / (1024 * 1024)
	limMB := float64(st.MemoryStats.Limit) / (1024 * 1024)
	return fmt.Sprintf("%s cpu%%=%.2f mem=%.1fMiB/%.1fMiB pids=%d",
		containerName(c), cpuPercent(st), memMB, limMB, st.PidsStats.Current), nil
}

// cpuPercent follows the docker stats formula; with one-shot stats the
// pre-CPU sample can be zero, in which case 0 is reported.
func cpuPercent(st container.StatsResponse) float64 {
	cpuDelta := float64(st.CPUStats.CPUUsage.TotalUsage) - float64(st.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(st.CPUStats.SystemUsage) - float64(st.PreCPUStats.SystemUsage)
	if cpuDelta <= 0 || sysDelta <= 0 {
		return 0
	}
	online := float64(st.CPUStats.OnlineCPUs)
	if online == 0 {
		online = float64(len(st.CPUStats.CPUUsage.PercpuUsage))
	}
	return cpuDelta / sysDelta * online * 100
}

func containerName(c container.Summary) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	if len(c.ID) >= 12 {
		return c.ID[:12]
	}
	return c.ID
}
