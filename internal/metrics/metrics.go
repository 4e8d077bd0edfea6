package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emitter_sync_events_observed_total",
		Help: "The total number of events observed by the handler",
	}, []string{"kind"})
	DeltasApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emitter_sync_deltas_applied_total",
		Help: "The total number of deltas accepted by the remote store",
	}, []string{"kind"})
	ApplyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emitter_sync_apply_failures_total",
		Help: "The total number of failed apply attempts",
	}, []string{"kind"})
	PendingDeltas = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "emitter_sync_pending_deltas",
		Help: "Deltas observed locally but not yet applied remotely",
	}, []string{"kind"})
	ApplyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emitter_sync_apply_duration_seconds",
		Help:    "Time taken by a single remote apply attempt",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"kind", "outcome"})
	AuditMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emitter_sync_audit_messages_total",
		Help: "Audit feed messages by outcome",
	}, []string{"outcome"})
)
