package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AnalysesTotal counts engine runs by outcome.
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hotspot",
		Subsystem: "advisor",
		Name:      "analyses_total",
		Help:      "Total number of device analyses, labeled by result.",
	}, []string{"result"})

	// AnalysisDurationSeconds is the end-to-end time of one analysis.
	AnalysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hotspot",
		Subsystem: "advisor",
		Name:      "analysis_duration_seconds",
		Help:      "End-to-end time to analyze a device, including the optional ledger write.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"result"})

	// TelemetryFallbackTotal counts telemetry calls answered from fallback data.
	TelemetryFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hotspot",
		Subsystem: "telemetry",
		Name:      "fallback_total",
		Help:      "Telemetry calls answered by fallback data after a live failure, labeled by call.",
	}, []string{"call"})

	// PriceLookupsTotal counts price lookups by provenance.
	PriceLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hotspot",
		Subsystem: "oracle",
		Name:      "price_lookups_total",
		Help:      "Price lookups, labeled by provenance (live, cache, fallback, error).",
	}, []string{"source"})

	// LedgerSubmissionsTotal counts ledger writes by outcome.
	LedgerSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hotspot",
		Subsystem: "ledger",
		Name:      "submissions_total",
		Help:      "Ledger submissions, labeled by result.",
	}, []string{"result"})

	PublishErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hotspot",
		Subsystem: "advisor",
		Name:      "publish_error_total",
		Help:      "Total number of device analysed event publish errors.",
	})
)

// Register registers the collectors with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			AnalysisDurationSeconds,
			TelemetryFallbackTotal,
			PriceLookupsTotal,
			LedgerSubmissionsTotal,
			PublishErrorTotal,
		)
	})
}
