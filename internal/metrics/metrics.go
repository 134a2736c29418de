package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "algotrade"

// Registry is a Prometheus registry carrying the server and backtest
// metrics. It is safe for concurrent use.
type Registry struct {
	*prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	backtestsTotal    *prometheus.CounterVec
	backtestDuration  prometheus.Histogram
	tradesPerBacktest prometheus.Histogram
	cacheLookups      *prometheus.CounterVec
	priceFetchSeconds prometheus.Histogram
	jobsActive        *prometheus.GaugeVec
}

// NewRegistry creates a registry with the Go runtime collectors and every
// application metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		Registry: reg,

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently in flight",
		}),

		backtestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtests_total",
			Help:      "Backtests run, by strategy and outcome",
		}, []string{"strategy", "status"}),
		backtestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_duration_seconds",
			Help:      "Wall time of a backtest including data loading",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		tradesPerBacktest: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trades_per_backtest",
			Help:      "Round trips produced by a successful backtest",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_lookups_total",
			Help:      "Price cache lookups by result",
		}, []string{"result"}),
		priceFetchSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "price_fetch_duration_seconds",
			Help:      "Upstream price fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		jobsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Jobs queued or running, by type",
		}, []string{"type"}),
	}
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a backtest completion. trades is only observed
// for successful runs.
func (r *Registry) RecordBacktest(strategy, status string, duration float64, trades int) {
	r.backtestsTotal.WithLabelValues(strategy, status).Inc()
	r.backtestDuration.Observe(duration)
	if status == "success" {
		r.tradesPerBacktest.Observe(float64(trades))
	}
}

// RecordCacheLookup records a price cache lookup result.
func (r *Registry) RecordCacheLookup(result string) {
	r.cacheLookups.WithLabelValues(result).Inc()
}

// RecordPriceFetch records an upstream price fetch.
func (r *Registry) RecordPriceFetch(duration float64) {
	r.priceFetchSeconds.Observe(duration)
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
