// Package metrics exposes executor activity as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/resolve"
)

const (
	namespace = "federation_gateway"
	subsystem = "fetch"

	fetchKindRoot   = "root"
	fetchKindEntity = "entity"

	outcomeSuccess = "success"
	outcomeError   = "error"
)

// PrometheusHooks implements resolve.Hooks.
type PrometheusHooks struct {
	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

var _ resolve.Hooks = (*PrometheusHooks)(nil)

// NewPrometheusHooks creates the fetch metrics and registers them with registerer.
func NewPrometheusHooks(registerer prometheus.Registerer) (*PrometheusHooks, error) {
	h := &PrometheusHooks{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "total",
			Help:      "Service calls made by the executor",
		}, []string{"service", "kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Duration of service calls made by the executor",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "kind"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "in_flight",
			Help:      "Service calls currently in flight",
		}, []string{"service"}),
	}

	for _, collector := range []prometheus.Collector{h.fetches, h.duration, h.inFlight} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return h, nil
}

type startKey struct{}

func (h *PrometheusHooks) OnFetch(ctx context.Context, info resolve.FetchInfo) context.Context {
	h.inFlight.WithLabelValues(info.ServiceID).Inc()
	return context.WithValue(ctx, startKey{}, time.Now())
}

func (h *PrometheusHooks) OnFetchFinished(ctx context.Context, info resolve.FetchInfo, err error) {
	kind := fetchKind(info)
	h.inFlight.WithLabelValues(info.ServiceID).Dec()

	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	h.fetches.WithLabelValues(info.ServiceID, kind, outcome).Inc()

	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		h.duration.WithLabelValues(info.ServiceID, kind).Observe(time.Since(start).Seconds())
	}
}

func fetchKind(info resolve.FetchInfo) string {
	if info.EntityTypeName != "" {
		return fetchKindEntity
	}
	return fetchKindRoot
}
