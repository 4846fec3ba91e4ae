// Package metrics exposes Prometheus collectors for the conversation loop.
// Registration happens on first use through promauto's default registerer,
// so importing packages can record without any setup.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "callcore",
		Name:      "step_duration_seconds",
		Help:      "Duration of a single pipeline step.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 1.2, 1.5, 2, 5},
	}, []string{"step"})

	callsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callcore",
		Name:      "calls_ended_total",
		Help:      "Calls ended, partitioned by exit reason.",
	}, []string{"exit_reason"})

	activeCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "callcore",
		Name:      "active_calls",
		Help:      "Calls currently in their conversation loop.",
	})

	turnsPerCall = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "callcore",
		Name:      "turns_per_call",
		Help:      "Completed caller turns per call.",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	})
)

// ObserveStep records the duration of one pipeline step (listen,
// transcribe, generate, speak).
func ObserveStep(step string, duration time.Duration) {
	stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// CallStarted marks a call entering its conversation loop.
func CallStarted() {
	activeCalls.Inc()
}

// CallEnded marks a call leaving its loop with the given exit reason and
// the number of caller turns it completed.
func CallEnded(exitReason string, turns int) {
	activeCalls.Dec()
	callsEnded.WithLabelValues(exitReason).Inc()
	turnsPerCall.Observe(float64(turns))
}
