package publish

import "github.com/prometheus/client_golang/prometheus"

const (
	resultSent       = "sent"
	resultSuppressed = "suppressed"
	resultError      = "error"
)

var publishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "godaikin_mqtt_publish_total",
	Help: "Publish attempts by outcome",
}, []string{"result"})

// MetricsCollectors returns the collectors for publish metrics.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{publishTotal}
}
