// Package observability provides metrics exporters for the service layer.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dispatchbook/internal/core"
)

// PrometheusRecorder implements core.MetricsRecorder over Prometheus
// collectors, labeling observations by operation and outcome.
type PrometheusRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusRecorder builds a recorder and registers its collectors with
// reg. Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dispatchbook",
				Name:      "operation_duration_seconds",
				Help:      "Service operation latency distribution",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dispatchbook",
				Name:      "operations_total",
				Help:      "Total service operations by outcome",
			},
			[]string{"operation", "status"},
		),
	}
	for _, collector := range []prometheus.Collector{r.durations, r.results} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records one service operation outcome.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)
