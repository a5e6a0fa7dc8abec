package prometheus

import "github.com/prometheus/client_golang/prometheus"

const (
	backendDurationBucketStart  = 0.05
	backendDurationBucketFactor = 2.0
	backendDurationBucketCount  = 10
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeDeferred = "deferred"
)

var BackendRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "backend_request_duration_seconds",
		Help: "Time taken by a voicemail API request",
		Buckets: prometheus.ExponentialBuckets(
			backendDurationBucketStart,
			backendDurationBucketFactor,
			backendDurationBucketCount,
		),
	},
	[]string{"operation"},
)

var BackendRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "backend_requests_total",
		Help: "Voicemail API requests by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

var OfflineQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "offline_queue_depth",
		Help: "Actions waiting in the offline queue",
	},
)

var OfflineReplay = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "offline_replay_total",
		Help: "Replayed offline actions by outcome",
	},
	[]string{"outcome"},
)

var StaleFetchDiscarded = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "stale_fetch_discarded_total",
		Help: "List responses dropped because a newer fetch was already applied",
	},
)

var OptimisticRollback = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "optimistic_rollback_total",
		Help: "Optimistic record updates restored after a failed write",
	},
)

var Notifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notifications pushed by kind",
	},
	[]string{"kind"},
)

var ConnectivityOnline = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "connectivity_online",
		Help: "1 while the voicemail API is reachable",
	},
)

func init() {
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(BackendRequests)
	prometheus.MustRegister(OfflineQueueDepth)
	prometheus.MustRegister(OfflineReplay)
	prometheus.MustRegister(StaleFetchDiscarded)
	prometheus.MustRegister(OptimisticRollback)
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(ConnectivityOnline)
}
