package engine

import "github.com/prometheus/client_golang/prometheus"

// Label values for engine metrics.
const (
	MergeApplied   = "applied"
	MergeUnchanged = "unchanged"
	MergeConflict  = "conflict"
	MergeDeferred  = "deferred"

	LookupFound   = "found"
	LookupMissing = "missing"
	LookupStale   = "stale"
	LookupError   = "error"
)

// Collectors for Database and Subscription metrics. They are not
// registered automatically; see Collectors.
var (
	SubscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notitia_subscriptions_active",
		Help: "Number of open subscriptions.",
	})
	MutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notitia_mutations_total",
		Help: "Cumulative number of committed mutations.",
	}, []string{"table", "kind"})
	MergesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notitia_merges_total",
		Help: "Cumulative number of per-subscription merges, by outcome.",
	}, []string{"outcome"})
	PointLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notitia_point_lookups_total",
		Help: "Cumulative number of fallback point lookups, by result.",
	}, []string{"result"})
	BroadcastDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notitia_broadcast_duration_seconds",
		Help:    "Time spent merging one mutation event into every subscription on its table.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)

// Collectors returns the engine's metric collectors for registration:
//
//	prometheus.MustRegister(engine.Collectors()...)
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SubscriptionsActive,
		MutationsTotal,
		MergesTotal,
		PointLookupsTotal,
		BroadcastDurationSeconds,
	}
}
