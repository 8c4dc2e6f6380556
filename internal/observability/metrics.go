package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for aiom.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Tool lifecycle metrics.
	ProposalsTotal        *prometheus.CounterVec
	PolicyDecisionsTotal  *prometheus.CounterVec
	ToolExecutionsTotal   *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	// Company view metrics.
	CompanyViewRequestsTotal *prometheus.CounterVec
	SectionFetchDuration     *prometheus.HistogramVec
	SectionErrorsTotal       *prometheus.CounterVec

	// ERP client metrics.
	OdooRequestsTotal   *prometheus.CounterVec
	OdooRequestDuration *prometheus.HistogramVec

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ProposalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiom",
			Subsystem: "assistant",
			Name:      "proposals_total",
			Help:      "Total proposal requests by outcome.",
		}, []string{"outcome"}),

		PolicyDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiom",
			Subsystem: "assistant",
			Name:      "policy_decisions_total",
			Help:      "Total policy evaluations by decision.",
		}, []string{"tool", "decision"}),

		ToolExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiom",
			Subsystem: "tool",
			Name:      "executions_total",
			Help:      "Total tool executions.",
		}, []string{"tool", "status"}),

		ToolExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aiom",
			Subsystem: "tool",
			Name:      "execution_duration_seconds",
			Help:      "Tool execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		CompanyViewRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiom",
			Subsystem: "companyview",
			Name:      "requests_total",
			Help:      "Total company view requests by cache outcome.",
		}, []string{"cache"}),

		SectionFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aiom",
			Subsystem: "companyview",
			Name:      "section_fetch_duration_seconds",
			Help:      "Per-section fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 6},
		}, []string{"section"}),

		SectionErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiom",
			Subsystem: "companyview",
			Name:      "section_errors_total",
			Help:      "Total section fetch failures.",
		}, []string{"section", "kind"}),

		OdooRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiom",
			Subsystem: "odoo",
			Name:      "requests_total",
			Help:      "Total Odoo RPC requests.",
		}, []string{"model", "method", "status"}),

		OdooRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aiom",
			Subsystem: "odoo",
			Name:      "request_duration_seconds",
			Help:      "Odoo RPC request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"model", "method"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aiom",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aiom",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aiom",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	reg.MustRegister(
		m.ProposalsTotal,
		m.PolicyDecisionsTotal,
		m.ToolExecutionsTotal,
		m.ToolExecutionDuration,
		m.CompanyViewRequestsTotal,
		m.SectionFetchDuration,
		m.SectionErrorsTotal,
		m.OdooRequestsTotal,
		m.OdooRequestDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}
