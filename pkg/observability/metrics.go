// Package observability bridges lifecycle hooks to Prometheus metrics and
// provides a fan-out so multiple hook consumers can observe one run.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avhart/espalier/pkg/domain"
)

// Metrics holds the Prometheus collectors for the engine.
type Metrics struct {
	nodeExecutions *prometheus.CounterVec
	modelLatency   prometheus.Histogram
	modelErrors    prometheus.Counter
	tokensTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "espalier",
			Name:      "node_executions_total",
			Help:      "Number of workflow node executions.",
		}, []string{"node"}),
		modelLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "espalier",
			Name:      "model_call_duration_seconds",
			Help:      "Latency of model API round trips.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		modelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "espalier",
			Name:      "model_call_errors_total",
			Help:      "Number of failed model API round trips.",
		}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "espalier",
			Name:      "model_tokens_total",
			Help:      "Tokens consumed by model calls, by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.nodeExecutions, m.modelLatency, m.modelErrors, m.tokensTotal)
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, ev *domain.NodeEvent) {
			m.nodeExecutions.WithLabelValues(ev.Node).Inc()
		},
		OnModelReturn: func(_ context.Context, ev *domain.ModelEvent) {
			m.modelLatency.Observe(ev.Duration.Seconds())
			if ev.IsError {
				m.modelErrors.Inc()
				return
			}
			m.tokensTotal.WithLabelValues("prompt").Add(float64(ev.PromptTokens))
			m.tokensTotal.WithLabelValues("completion").Add(float64(ev.CompletionTokens))
		},
	}
}
