package bridge

import "github.com/prometheus/client_golang/prometheus"

var (
	pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "godaikin_bridge_polls_total",
		Help: "Device list polls by result",
	}, []string{"result"})

	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "godaikin_bridge_commands_total",
		Help: "Inbound commands by key and result",
	}, []string{"key", "result"})

	preemptionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "godaikin_bridge_preemptions_total",
		Help: "Polls woken early by a command",
	})

	lastPollGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "godaikin_bridge_last_poll_timestamp_seconds",
		Help: "Unix time of the last successful poll",
	})

	stateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "godaikin_bridge_state",
		Help: "Controller lifecycle state (1=current)",
	}, []string{"state"})
)

// MetricsCollectors returns the collectors for controller metrics.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		pollsTotal,
		commandsTotal,
		preemptionsTotal,
		lastPollGauge,
		stateGauge,
	}
}
