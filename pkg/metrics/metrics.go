package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// File outcomes for FilesTotal.
const (
	FileIngested   = "ingested"
	FileEmpty      = "empty"
	FileParseError = "parse_error"
)

// Result labels for CyclesTotal and PrunesTotal.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// WatcherMetrics holds all Prometheus metrics for the ingestion watcher.
type WatcherMetrics struct {
	CyclesTotal   *prometheus.CounterVec
	FilesTotal    *prometheus.CounterVec
	PointsWritten prometheus.Counter
	PrunesTotal   *prometheus.CounterVec
	LedgerKeys    prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

// NewWatcherMetrics registers the metrics on reg.
func NewWatcherMetrics(reg prometheus.Registerer) *WatcherMetrics {
	factory := promauto.With(reg)

	return &WatcherMetrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cost_watcher",
			Name:      "cycles_total",
			Help:      "Total number of ingestion cycles by result.",
		}, []string{"result"}),
		FilesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cost_watcher",
			Name:      "files_total",
			Help:      "Total number of candidate files handled by outcome.",
		}, []string{"status"}), // status: ingested, empty, parse_error
		PointsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cost_watcher",
			Name:      "points_written_total",
			Help:      "Total number of metric points written to the time-series store.",
		}),
		PrunesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cost_watcher",
			Name:      "prune_total",
			Help:      "Total number of retention prunes by result.",
		}, []string{"result"}),
		LedgerKeys: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cost_watcher",
			Name:      "ledger_keys",
			Help:      "Number of file keys recorded as processed.",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "cost_watcher",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful ingestion cycle.",
		}),
	}
}

// Discard returns metrics registered on a throwaway registry.
func Discard() *WatcherMetrics {
	return NewWatcherMetrics(prometheus.NewRegistry())
}
