package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NodeBlockHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teranode_monitor_block_height",
		Help: "Last known block height of the monitored node",
	})

	NodePeers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teranode_monitor_peer_connections",
		Help: "Last known peer connection count",
	})

	NodeMempoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teranode_monitor_mempool_size",
		Help: "Last known number of transactions in the mempool",
	})

	NodeDifficulty = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teranode_monitor_difficulty",
		Help: "Last known network difficulty",
	})

	NodeSyncProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teranode_monitor_sync_progress",
		Help: "Block height divided by the configured target height, clamped to 1",
	})

	NodeHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teranode_monitor_healthy",
		Help: "Whether the most recent poll succeeded (1 = healthy, 0 = unhealthy)",
	})

	StaleCycles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teranode_monitor_stale_cycles",
		Help: "Consecutive failed polls since the last success",
	})

	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teranode_monitor_fetch_total",
		Help: "Poll cycles by outcome and error kind",
	}, []string{"outcome", "kind"})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "teranode_monitor_fetch_duration_seconds",
		Help:    "Duration of poll cycles against the node",
		Buckets: prometheus.DefBuckets,
	})

	APIRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teranode_monitor_api_requests_total",
		Help: "Requests served by the status API",
	}, []string{"endpoint"})
)

// ObserveFetch records one poll cycle. kind is empty on success.
func ObserveFetch(kind string, seconds float64) {
	outcome := "success"
	if kind != "" {
		outcome = "failure"
	}
	FetchTotal.WithLabelValues(outcome, kind).Inc()
	FetchDuration.Observe(seconds)
}

func SetHealthy(healthy bool, staleCycles int) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	NodeHealthy.Set(val)
	StaleCycles.Set(float64(staleCycles))
}

// SetNodeStatus updates the node gauges from the last good values.
func SetNodeStatus(height, peers, mempool int64, difficulty float64, syncProgress *float64) {
	NodeBlockHeight.Set(float64(height))
	NodePeers.Set(float64(peers))
	NodeMempoolSize.Set(float64(mempool))
	NodeDifficulty.Set(difficulty)
	if syncProgress != nil {
		NodeSyncProgress.Set(*syncProgress)
	}
}

func RecordAPIRequest(endpoint string) {
	APIRequestTotal.WithLabelValues(endpoint).Inc()
}
