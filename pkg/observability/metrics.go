package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/dialogic/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the render collectors.
type Metrics struct {
	Renders  *prometheus.CounterVec
	Duration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// uses a fresh private registry.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialogic_renders_total",
				Help: "Total number of template renders",
			},
			[]string{"template", "status"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dialogic_render_duration_seconds",
				Help:    "Duration of template renders, nested renders included",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"template"},
		),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{m.Renders, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns render hooks feeding the collectors.
func (m *Metrics) Hooks() domain.RenderHooks {
	return domain.RenderHooks{
		OnRenderEnd: func(_ context.Context, e *domain.RenderEvent) {
			status := StatusOK
			if e.Err != nil {
				status = StatusError
			}
			m.Renders.WithLabelValues(e.Template, status).Inc()
			m.Duration.WithLabelValues(e.Template).Observe(e.Duration.Seconds())
		},
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
