package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/domain/model"
	metrics "github.com/linksmith/chrono-scraper-sub006/pkg/curation/core/metrics"
	logger "github.com/linksmith/chrono-scraper-sub006/pkg/curation/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the
// metrics.MetricRecorder interface. It owns a private registry so tests can
// instantiate it without global collector collisions.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Execution metrics
	executionDurationSeconds *prometheus.HistogramVec
	executionStateCounter    *prometheus.CounterVec

	// Item metrics
	itemOutcomeCounter *prometheus.CounterVec

	// Override metrics
	overrideCounter *prometheus.CounterVec

	// Guard metrics
	rateLimitCounter *prometheus.CounterVec

	// Generic durations
	operationDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() metrics.MetricRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		executionDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curation_bulk_execution_duration_seconds",
			Help:    "Duration of bulk curation executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"action", "state"}),
		executionStateCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curation_bulk_execution_state_total",
			Help: "Total number of bulk executions by terminal state.",
		}, []string{"action", "state"}),
		itemOutcomeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curation_bulk_item_outcome_total",
			Help: "Total per-page outcomes within bulk executions.",
		}, []string{"action", "outcome"}),
		overrideCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curation_override_total",
			Help: "Total manual override applications by result.",
		}, []string{"action", "result"}),
		rateLimitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "curation_rate_limit_hits_total",
			Help: "Total requests rejected by the rate guard.",
		}, []string{"scope"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curation_operation_duration_seconds",
			Help:    "Duration of named curation operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	registry.MustRegister(r.executionDurationSeconds)
	registry.MustRegister(r.executionStateCounter)
	registry.MustRegister(r.itemOutcomeCounter)
	registry.MustRegister(r.overrideCounter)
	registry.MustRegister(r.rateLimitCounter)
	registry.MustRegister(r.operationDuration)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordExecutionStart records the start of a BulkExecution.
func (r *PrometheusRecorder) RecordExecutionStart(ctx context.Context, execution *model.BulkExecution) {
	r.executionStateCounter.WithLabelValues(string(execution.Action), execution.State.String()).Inc()
	logger.Debugf("Metrics: bulk execution '%s' started.", execution.ID)
}

// RecordExecutionEnd records a BulkExecution reaching a terminal state.
func (r *PrometheusRecorder) RecordExecutionEnd(ctx context.Context, execution *model.BulkExecution) {
	r.executionStateCounter.WithLabelValues(string(execution.Action), execution.State.String()).Inc()
	if execution.StartTime != nil && execution.EndTime != nil {
		r.executionDurationSeconds.
			WithLabelValues(string(execution.Action), execution.State.String()).
			Observe(execution.EndTime.Sub(*execution.StartTime).Seconds())
	}
}

// RecordItemOutcome records a single per-page outcome within an execution.
func (r *PrometheusRecorder) RecordItemOutcome(ctx context.Context, action model.BulkAction, outcome model.ItemOutcome) {
	r.itemOutcomeCounter.WithLabelValues(string(action), string(outcome)).Inc()
}

// RecordOverride records a single-page manual action outcome.
func (r *PrometheusRecorder) RecordOverride(ctx context.Context, action model.BulkAction, result string) {
	r.overrideCounter.WithLabelValues(string(action), result).Inc()
}

// RecordRateLimitHit records a request rejected by the rate guard.
func (r *PrometheusRecorder) RecordRateLimitHit(ctx context.Context, scope string) {
	r.rateLimitCounter.WithLabelValues(scope).Inc()
}

// RecordDuration records the execution time of a named operation.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDuration.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
