package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "godaikin_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "code"})

	grpcRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "godaikin_grpc_requests_total",
		Help: "gRPC calls by method and status code",
	}, []string{"method", "code"})
)

// MetricsCollectors returns the request counters for registration.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{httpRequestsTotal, grpcRequestsTotal}
}

// MetricsHandler exposes the Prometheus registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
