package daikin

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StateSource exposes the most recently polled units.
type StateSource interface {
	Units() []Aircond
}

// HealthSource exposes the cloud session summary.
type HealthSource interface {
	Health() Health
}

// MetricsCollector reports unit state from the last poll. It never calls the API.
type MetricsCollector struct {
	source StateSource
	health HealthSource

	// mu guards the Reset/Set/Collect sequence across concurrent scrapes.
	mu sync.Mutex

	cloudUp     *prometheus.GaugeVec
	onOff       *prometheus.GaugeVec
	mode        *prometheus.GaugeVec
	fanSpeed    *prometheus.GaugeVec
	setpoint    *prometheus.GaugeVec
	roomTemp    *prometheus.GaugeVec
	outdoorTemp *prometheus.GaugeVec
	power       *prometheus.GaugeVec
	errorCode   *prometheus.GaugeVec
	shadowVer   *prometheus.GaugeVec
	units       prometheus.Gauge
	session     *prometheus.GaugeVec
}

func NewMetricsCollector(source StateSource) *MetricsCollector {
	labels := []string{"unit_id", "unit_name"}
	return &MetricsCollector{
		source: source,
		cloudUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_cloud_connected",
			Help: "Whether the unit reports cloud connectivity (1=up, 0=down)",
		}, labels),
		onOff: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_on",
			Help: "Power flag of the unit (1=on, 0=off)",
		}, labels),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_mode",
			Help: "Operating mode of the unit (1=active)",
		}, []string{"unit_id", "unit_name", "mode"}),
		fanSpeed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_fan_speed",
			Help: "Fan speed of the unit (1=active)",
		}, []string{"unit_id", "unit_name", "fan_mode"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_setpoint_celsius",
			Help: "Target temperature (celsius)",
		}, labels),
		roomTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_room_temperature_celsius",
			Help: "Indoor room temperature (celsius)",
		}, labels),
		outdoorTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_outdoor_temperature_celsius",
			Help: "Outdoor air temperature (celsius)",
		}, labels),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_power_watts",
			Help: "Outdoor unit power draw as reported (watts)",
		}, labels),
		errorCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_error_code",
			Help: "Vendor error code (0=ok)",
		}, labels),
		shadowVer: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_unit_shadow_version",
			Help: "Server-side shadow state version counter",
		}, labels),
		units: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "godaikin_units",
			Help: "Units returned by the last poll",
		}),
		session: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godaikin_cloud_session_timestamp_seconds",
			Help: "Cloud session events as unix time (token_expiry, last_list, last_patch)",
		}, []string{"event"}),
	}
}

// WithHealth adds the cloud session gauges.
func (c *MetricsCollector) WithHealth(health HealthSource) *MetricsCollector {
	c.health = health
	return c
}

func (c *MetricsCollector) vecs() []*prometheus.GaugeVec {
	return []*prometheus.GaugeVec{
		c.cloudUp,
		c.onOff,
		c.mode,
		c.fanSpeed,
		c.setpoint,
		c.roomTemp,
		c.outdoorTemp,
		c.power,
		c.errorCode,
		c.shadowVer,
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, vec := range c.vecs() {
		vec.Describe(ch)
	}
	c.units.Describe(ch)
	if c.health != nil {
		c.session.Describe(ch)
	}
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, vec := range c.vecs() {
		vec.Reset()
	}

	units := c.source.Units()
	c.units.Set(float64(len(units)))

	for _, unit := range units {
		state := unit.ShadowState
		labels := prometheus.Labels{
			"unit_id":   unit.UniqueID(),
			"unit_name": unit.ACName,
		}

		c.cloudUp.With(labels).Set(boolFloat(unit.IsConnected()))
		c.onOff.With(labels).Set(boolFloat(unit.IsOn()))
		c.setpoint.With(labels).Set(float64(state.SetTemp))
		c.roomTemp.With(labels).Set(float64(state.StaIDRoomTemp))
		c.outdoorTemp.With(labels).Set(float64(state.StaODAirTemp))
		c.power.With(labels).Set(float64(state.StaODPwrCon))
		c.errorCode.With(labels).Set(float64(state.StaErrCode))
		c.shadowVer.With(labels).Set(float64(state.ShadowStateVersion))
		c.mode.WithLabelValues(unit.UniqueID(), unit.ACName, Mode(state.SetMode).String()).Set(1)
		c.fanSpeed.WithLabelValues(unit.UniqueID(), unit.ACName, FanSpeed(state.SetFan).String()).Set(1)
	}

	for _, vec := range c.vecs() {
		vec.Collect(ch)
	}
	c.units.Collect(ch)

	if c.health != nil {
		c.collectSession(ch)
	}
}

func (c *MetricsCollector) collectSession(ch chan<- prometheus.Metric) {
	c.session.Reset()
	h := c.health.Health()
	for event, at := range map[string]time.Time{
		"token_expiry": h.TokenExpiry,
		"last_list":    h.LastList,
		"last_patch":   h.LastPatch,
	} {
		if !at.IsZero() {
			c.session.WithLabelValues(event).Set(float64(at.Unix()))
		}
	}
	c.session.Collect(ch)
}

func boolFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
