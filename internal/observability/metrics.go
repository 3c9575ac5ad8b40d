package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// telemetry ingestion path and the scheduled jobs.
type Metrics struct {
	MessagesIngested prometheus.Counter
	MessagesDropped  *prometheus.CounterVec // labels: reason={unknown_device,malformed_payload,store_error}
	ListenerUp       prometheus.Gauge

	// Scheduled job metrics.
	PollCycles      *prometheus.CounterVec // labels: outcome={success,error}
	ReadingsPolled  prometheus.Counter
	DigestRuns      *prometheus.CounterVec // labels: outcome={success,error}
	DigestsSent     *prometheus.CounterVec // labels: channel={email,sms}, outcome={success,error}
	JobTicksSkipped *prometheus.CounterVec // labels: job
	JobDuration     *prometheus.HistogramVec

	// Environment Agency API metrics.
	AgencyAPIDuration *prometheus.HistogramVec // labels: endpoint={stations,readings,floods,flood_areas}
	AgencyAPIErrors   *prometheus.CounterVec   // labels: endpoint
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.MessagesIngested,
		m.MessagesDropped,
		m.ListenerUp,
		m.PollCycles,
		m.ReadingsPolled,
		m.DigestRuns,
		m.DigestsSent,
		m.JobTicksSkipped,
		m.JobDuration,
		m.AgencyAPIDuration,
		m.AgencyAPIErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "messages_ingested_total",
			Help:      "Total telemetry messages decoded and persisted.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "messages_dropped_total",
			Help:      "Telemetry messages dropped, by reason.",
		}, []string{"reason"}),
		ListenerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floodwatch",
			Name:      "listener_up",
			Help:      "1 while the MQTT subscription is established.",
		}),
		PollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "poll_cycles_total",
			Help:      "External reading poll cycles, by outcome.",
		}, []string{"outcome"}),
		ReadingsPolled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "readings_polled_total",
			Help:      "Environment Agency readings persisted by the poller.",
		}),
		DigestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "digest_runs_total",
			Help:      "Daily digest runs, by outcome.",
		}, []string{"outcome"}),
		DigestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "digests_sent_total",
			Help:      "Digest dispatches, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		JobTicksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "job_ticks_skipped_total",
			Help:      "Scheduler ticks skipped because the previous run was still active.",
		}, []string{"job"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "floodwatch",
			Name:      "job_duration_seconds",
			Help:      "Duration of a complete scheduled job run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		AgencyAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "floodwatch",
			Name:      "agency_api_duration_seconds",
			Help:      "Environment Agency API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		AgencyAPIErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floodwatch",
			Name:      "agency_api_errors_total",
			Help:      "Environment Agency API request failures, by endpoint.",
		}, []string{"endpoint"}),
	}
}
