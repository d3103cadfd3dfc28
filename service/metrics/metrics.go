package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Dispatch Metrics
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	// Tracking Metrics
	settlementsTrackedTotal *prometheus.CounterVec
	trackingSkippedTotal    *prometheus.CounterVec
	trackingFailuresTotal   *prometheus.CounterVec
	enrichmentTotal         *prometheus.CounterVec

	// Ramp Metrics
	rampEventsTotal *prometheus.CounterVec

	// Payment Request Metrics
	requestActionsTotal *prometheus.CounterVec

	// Workflow Metrics
	workflowDuration *prometheus.HistogramVec
	workflowTotal    *prometheus.CounterVec
	activityDuration *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		// Dispatch Metrics
		dispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_dispatch_total",
				Help: "Total number of settlement dispatch attempts by provider and outcome",
			},
			[]string{"provider", "network", "status"},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_dispatch_duration_seconds",
				Help:    "Duration of settlement dispatch attempts in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"provider", "network"},
		),

		// Tracking Metrics
		settlementsTrackedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlements_tracked_total",
				Help: "Total number of settlements recorded by network, source and status",
			},
			[]string{"network", "source", "status"},
		),
		trackingSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracking_skipped_total",
				Help: "Total number of settlements skipped by the tracker",
			},
			[]string{"reason"},
		),
		trackingFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracking_failures_total",
				Help: "Total number of soft tracking step failures",
			},
			[]string{"step"},
		),
		enrichmentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_attempts_total",
				Help: "Total number of share-data enrichment attempts",
			},
			[]string{"status"},
		),

		// Ramp Metrics
		rampEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ramp_events_total",
				Help: "Total number of fiat ramp order events by status",
			},
			[]string{"status"},
		),

		// Payment Request Metrics
		requestActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_request_actions_total",
				Help: "Total number of payment request actions by outcome",
			},
			[]string{"action", "outcome"},
		),

		// Workflow Metrics
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "request_sync_workflow_duration_seconds",
				Help:    "Duration of request sync workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"workflow", "status"},
		),
		workflowTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "request_sync_workflow_executions_total",
				Help: "Total number of request sync workflow executions",
			},
			[]string{"workflow", "status"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "request_sync_activity_duration_seconds",
				Help:    "Duration of request sync activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Dispatch metric helpers

// RecordDispatch records a settlement dispatch attempt with duration.
// status is "success" or the error kind.
func (m *Metrics) RecordDispatch(provider, network, status string, duration float64) {
	m.dispatchTotal.WithLabelValues(provider, network, status).Inc()
	m.dispatchDuration.WithLabelValues(provider, network).Observe(duration)
}

// Tracking metric helpers

// RecordSettlementTracked records a settlement record being written.
func (m *Metrics) RecordSettlementTracked(network, source, status string) {
	m.settlementsTrackedTotal.WithLabelValues(network, source, status).Inc()
}

// RecordTrackingSkipped records a settlement the tracker dropped.
func (m *Metrics) RecordTrackingSkipped(reason string) {
	m.trackingSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordTrackingFailure records a soft tracking step failure.
func (m *Metrics) RecordTrackingFailure(step string) {
	m.trackingFailuresTotal.WithLabelValues(step).Inc()
}

// RecordEnrichment records a share-data enrichment attempt.
func (m *Metrics) RecordEnrichment(status string) {
	m.enrichmentTotal.WithLabelValues(status).Inc()
}

// Ramp metric helpers

// RecordRampEvent records a fiat ramp order event.
func (m *Metrics) RecordRampEvent(status string) {
	m.rampEventsTotal.WithLabelValues(status).Inc()
}

// Payment request metric helpers

// RecordRequestAction records a payment request accept/decline outcome.
func (m *Metrics) RecordRequestAction(action, outcome string) {
	m.requestActionsTotal.WithLabelValues(action, outcome).Inc()
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(workflow, status string, duration float64) {
	m.workflowDuration.WithLabelValues(workflow, status).Observe(duration)
	m.workflowTotal.WithLabelValues(workflow, status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity, status string, duration float64) {
	m.activityDuration.WithLabelValues(activity, status).Observe(duration)
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
