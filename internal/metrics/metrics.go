package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotmarket_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lotmarket_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	bidsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotmarket_bids_total",
		Help: "Bid placements by result",
	}, []string{"result"})

	bidPlacementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lotmarket_bid_placement_duration_seconds",
		Help:    "Duration of bid placements including retries",
		Buckets: prometheus.DefBuckets,
	})

	bidRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lotmarket_bid_retries_total",
		Help: "Bid transactions retried after a storage conflict",
	})

	lotFeedPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lotmarket_lot_feed_publishes_total",
		Help: "Accepted bids pushed to the live lot feed by result",
	}, []string{"result"})

	lotSnapshotsSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lotmarket_lot_snapshots_synced_total",
		Help: "Lot snapshots changed by the periodic store sync",
	})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lotmarket_ws_clients",
		Help: "Connected websocket clients",
	})
)

// Bid placement results.
const (
	BidAccepted = "accepted"
	BidRejected = "rejected"
	BidConflict = "conflict"
	BidError    = "error"
)

// Lot feed publish results. A stale publish carried a bid older than the
// snapshot's.
const (
	PublishOK    = "ok"
	PublishStale = "stale"
	PublishError = "error"
)

func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveBid records one PlaceBid call.
func ObserveBid(result string, duration time.Duration) {
	bidsTotal.WithLabelValues(result).Inc()
	bidPlacementDuration.Observe(duration.Seconds())
}

func IncBidRetry() { bidRetries.Inc() }

func ObserveLotFeedPublish(result string) {
	lotFeedPublishes.WithLabelValues(result).Inc()
}

func AddLotSnapshotsSynced(n int) { lotSnapshotsSynced.Add(float64(n)) }

func IncWSClients() { wsClients.Inc() }

func DecWSClients() { wsClients.Dec() }
