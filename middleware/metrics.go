package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/broady/restproxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientMetrics holds the collectors updated by Metrics.
type ClientMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewClientMetrics registers the client collectors with reg
// (prometheus.DefaultRegisterer if nil).
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &ClientMetrics{
		Requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restproxy_client_requests_total",
				Help: "Outgoing requests by client, method and status; status is \"error\" for transport failures",
			},
			[]string{"client", "method", "status"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "restproxy_client_request_duration_seconds",
				Help:    "Time until response headers arrive, in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"client", "method"},
		),
	}
}

// Metrics creates a filter that records every exchange in m.
func Metrics(m *ClientMetrics) restproxy.ExchangeFilter {
	return func(ctx context.Context, req *restproxy.RequestDescriptor, next restproxy.ExchangeFunc) (*http.Response, error) {
		client, method, _ := restproxy.MethodFromContext(ctx)
		start := time.Now()
		resp, err := next(ctx, req)
		m.Duration.WithLabelValues(client, method).Observe(time.Since(start).Seconds())
		status := "error"
		if err == nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		m.Requests.WithLabelValues(client, method, status).Inc()
		return resp, err
	}
}
