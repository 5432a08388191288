package metrics

import (
	"bytes"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgerbench",
			Subsystem: "run",
			Name:      "total",
			Help:      "Number of completed runs by outcome.",
		}, []string{"outcome"},
	)
	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledgerbench",
			Subsystem: "run",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of each run phase.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"},
	)
	warmupRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgerbench",
			Subsystem: "warmup",
			Name:      "requests_total",
			Help:      "Warm-up requests by kind and result.",
		}, []string{"kind", "result"},
	)
	snapshotTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledgerbench",
			Subsystem: "snapshot",
			Name:      "ticks_total",
			Help:      "Resource snapshot ticks attempted.",
		},
	)
	snapshotErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledgerbench",
			Subsystem: "snapshot",
			Name:      "errors_total",
			Help:      "Resource snapshot captures that failed.",
		},
	)
)

// Register registers all collectors with the provided registerer. Repeat
// registrations are tolerated.
func Register(r prometheus.Registerer) error {
	cs := []prometheus.Collector{runsTotal, phaseDuration, warmupRequests, snapshotTicks, snapshotErrors}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func IncRun(outcome string)                        { runsTotal.WithLabelValues(outcome).Inc() }
func ObservePhase(phase string, seconds float64)   { phaseDuration.WithLabelValues(phase).Observe(seconds) }
func IncWarmupRequest(kind, result string)         { warmupRequests.WithLabelValues(kind, result).Inc() }
func IncSnapshotTick()                             { snapshotTicks.Inc() }
func IncSnapshotError()                            { snapshotErrors.Inc() }

// DumpText renders the gatherer's current state in the Prometheus text
// exposition format. The runner appends it to the run log at the end of a
// run; nothing is served over HTTP.
func DumpText(g prometheus.Gatherer) (string, error) {
	mfs, err := g.Gather()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
