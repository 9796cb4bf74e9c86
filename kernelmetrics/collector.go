// Package kernelmetrics exposes the dispatch loop's health as Prometheus
// metrics: package-level promauto registrations, and a Collector wrapping
// them with small recording methods the rest of the codebase calls into.
package kernelmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conceptrt",
		Name:      "invocations_total",
		Help:      "Total invocations dispatched, by concept and action.",
	}, []string{"concept", "action"})

	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conceptrt",
		Name:      "completions_total",
		Help:      "Total completions recorded, by concept, action, and variant.",
	}, []string{"concept", "action", "variant"})

	syncFiresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conceptrt",
		Name:      "sync_fires_total",
		Help:      "Total sync firings that won the action log's guard, by sync name.",
	}, []string{"sync"})

	pendingQueueLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "conceptrt",
		Name:      "pending_queue_length",
		Help:      "Current length of an engine's eventual-delivery pending queue.",
	}, []string{"runtime"})

	quiescenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "conceptrt",
		Name:      "flow_quiescence_duration_seconds",
		Help:      "Wall-clock time from Web/request to flow quiescence.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
)

// Collector is the concrete metrics sink the kernel and sync engine record
// through. It holds no state of its own, so the zero value behaves the same
// as one built with New, and every method returns early on a nil *Collector
// so metrics remain fully optional.
type Collector struct{}

// New returns a Collector backed by the default Prometheus registry.
func New() *Collector {
	return &Collector{}
}

// RecordInvocation counts one invocation dispatched to concept/action.
func (c *Collector) RecordInvocation(concept, action string) {
	if c == nil {
		return
	}
	invocationsTotal.WithLabelValues(concept, action).Inc()
}

// RecordCompletion counts one completion, tagged by its variant.
func (c *Collector) RecordCompletion(concept, action, variant string) {
	if c == nil {
		return
	}
	completionsTotal.WithLabelValues(concept, action, variant).Inc()
}

// RecordSyncFire counts one sync firing that won the idempotency guard.
func (c *Collector) RecordSyncFire(sync string) {
	if c == nil {
		return
	}
	syncFiresTotal.WithLabelValues(sync).Inc()
}

// SetPendingQueueLength reports a distributed engine's current pending
// queue depth.
func (c *Collector) SetPendingQueueLength(runtime string, n int) {
	if c == nil {
		return
	}
	pendingQueueLength.WithLabelValues(runtime).Set(float64(n))
}

// ObserveQuiescence records how long a flow took to reach quiescence,
// tagged by whether it ended in a responder firing ("responded") or without
// one ("quiescent", which also covers an invocation-budget cutoff).
func (c *Collector) ObserveQuiescence(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	quiescenceDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
