// Package metrics instruments the Session Loop's begin/end hook around
// every dispatched operation, grounded on original_source's MetricsHook
// trait (collect/release) and implemented with the Prometheus client used
// elsewhere in this pack for exactly this kind of op-count/latency
// instrumentation.
package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Hook is the begin/end pair the Session Loop calls around each
// dispatched operation.
type Hook struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec

	// logger, if non-nil, gets one debug line per operation in addition to
	// the Prometheus collectors, matching the MEMFUSED_DEBUG verbosity
	// knob described in SPEC_FULL.md. Per-op *error* logging is the
	// Session's job (fs/loop.go); this is purely a debug trace of timing.
	logger *log.Logger
}

// NewHook registers its collectors on reg and returns a ready Hook. Pass
// prometheus.DefaultRegisterer for normal process-wide use. logger may be
// nil to disable the per-op debug trace.
func NewHook(reg prometheus.Registerer, logger *log.Logger) *Hook {
	h := &Hook{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memfused",
			Name:      "ops_total",
			Help:      "Number of dispatched filesystem operations by name and result.",
		}, []string{"op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "memfused",
			Name:      "op_duration_seconds",
			Help:      "Latency of dispatched filesystem operations by name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		logger: logger,
	}
	reg.MustRegister(h.ops, h.latency)
	return h
}

// Begin records the start of op and returns an End func to call when it
// finishes, with the error (if any) it returned.
func (h *Hook) Begin(op string) (end func(err error)) {
	start := time.Now()
	return func(err error) {
		result := "ok"
		if err != nil {
			result = "error"
		}
		h.ops.WithLabelValues(op, result).Inc()
		elapsed := time.Since(start)
		h.latency.WithLabelValues(op).Observe(elapsed.Seconds())
		if h.logger != nil {
			h.logger.Printf("%s: %s in %s", op, result, elapsed)
		}
	}
}
