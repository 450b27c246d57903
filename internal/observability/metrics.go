package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UserCacheEvents counts user cache lookups by outcome (hit, miss, evict).
	UserCacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteit_user_cache_events_total",
		Help: "User cache events by outcome",
	}, []string{"event"})

	// FeedAssemblyDuration records how long feed assembly takes per mode.
	FeedAssemblyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quoteit_feed_assembly_duration_seconds",
		Help:    "Feed assembly latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// FeedQuotesReturned records the size of assembled feeds per mode.
	FeedQuotesReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quoteit_feed_quotes_returned",
		Help:    "Number of quotes returned per feed assembly",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
	}, []string{"mode"})

	// CounterUpdateFailures counts failed denormalised counter writes.
	CounterUpdateFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteit_counter_update_failures_total",
		Help: "Total number of failed follower, following, like or quote counter updates",
	}, []string{"counter"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteit_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// FeedStreamConnections is the gauge of open feed websocket streams.
	FeedStreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quoteit_feed_stream_connections",
		Help: "Number of active feed WebSocket connections",
	})
)

// TrackFeed returns a function that records feed latency and size when called (e.g. defer).
func TrackFeed(mode string) func(count int) {
	start := time.Now()
	return func(count int) {
		FeedAssemblyDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		FeedQuotesReturned.WithLabelValues(mode).Observe(float64(count))
	}
}
