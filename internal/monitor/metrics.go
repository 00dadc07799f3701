package monitor

import "github.com/prometheus/client_golang/prometheus"

// Prometheus collection metrics.
var (
	collectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_collections_total",
			Help: "Total number of per-server metric collections.",
		},
		[]string{"result"},
	)
	alertsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_fired_total",
			Help: "Total number of threshold alerts fired.",
		},
		[]string{"metric"},
	)
	collectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_collection_duration_seconds",
			Help:    "Duration of a full collection round in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(collectionsTotal)
	prometheus.MustRegister(alertsFiredTotal)
	prometheus.MustRegister(collectionDuration)
}
