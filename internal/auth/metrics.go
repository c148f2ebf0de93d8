package auth

import "github.com/prometheus/client_golang/prometheus"

var (
	exchangeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "godaikin_auth_exchange_total",
			Help: "Credential exchanges by operation and result",
		},
		[]string{"op", "result"},
	)
	tokenValid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "godaikin_auth_token_valid",
			Help: "Identity token validity (1=valid, 0=invalid)",
		},
	)
	tokenExpiry = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "godaikin_auth_token_expiry_timestamp_seconds",
			Help: "Expiry of the held identity token",
		},
	)
)

// MetricsCollectors returns collectors for the credential manager.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		exchangeTotal,
		tokenValid,
		tokenExpiry,
	}
}
