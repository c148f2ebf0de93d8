package bridge

import (
	"math"
	"strings"

	"github.com/joshp123/godaikin/plugins/daikin"
)

const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"
)

// StatusPayload is the climate entity state. Field order is the wire order.
type StatusPayload struct {
	Mode                string `json:"mode"`
	Temperature         int    `json:"temperature"`
	CurrentTemperature  int    `json:"current_temperature"`
	FanMode             string `json:"fan_mode"`
	SwingMode           string `json:"swing_mode"`
	SwingHorizontalMode string `json:"swing_horizontal_mode"`
	PresetMode          string `json:"preset_mode"`
}

// NewStatusPayload derives the reported state. A cleared power flag always
// reports "off" whatever the stored mode code.
func NewStatusPayload(unit daikin.Aircond) StatusPayload {
	state := unit.ShadowState
	mode := daikin.ModeOff
	if unit.IsOn() {
		mode = daikin.Mode(state.SetMode).String()
	}
	return StatusPayload{
		Mode:                mode,
		Temperature:         state.SetTemp,
		CurrentTemperature:  state.StaIDRoomTemp,
		FanMode:             strings.ToLower(daikin.FanSpeed(state.SetFan).String()),
		SwingMode:           daikin.Swing(state.SetUDLvr).String(),
		SwingHorizontalMode: daikin.Swing(state.SetLRLvr).String(),
		PresetMode:          string(state.EffectivePreset()),
	}
}

// SensorPayload feeds the sensor and status LED entities.
type SensorPayload struct {
	Power              int     `json:"Sta_ODPwrCon"`
	IndoorTemperature  int     `json:"Sta_IDRoomTemp"`
	OutdoorTemperature int     `json:"Sta_ODAirTemp"`
	Energy             float64 `json:"energy"`
	StatusLED          string  `json:"status_led"`
}

// NewSensorPayload reports zero power unless the unit is drawing power.
// Energy is rounded to two decimals to keep the gated publisher quiet.
func NewSensorPayload(unit daikin.Aircond, energyKWh float64) SensorPayload {
	state := unit.ShadowState
	power := 0
	if unit.DrawingPower() {
		power = state.StaODPwrCon
	}
	led := "ON"
	if state.SetLEDOff != 0 {
		led = "OFF"
	}
	return SensorPayload{
		Power:              power,
		IndoorTemperature:  state.StaIDRoomTemp,
		OutdoorTemperature: state.StaODAirTemp,
		Energy:             math.Round(energyKWh*100) / 100,
		StatusLED:          led,
	}
}

// Availability maps the cloud connectivity flag, not the power flag.
func Availability(connected bool) string {
	if connected {
		return availabilityOnline
	}
	return availabilityOffline
}

// UnitView is the read-only summary served over HTTP and gRPC.
type UnitView struct {
	UnitID              string  `json:"unit_id"`
	Name                string  `json:"name"`
	Connected           bool    `json:"connected"`
	Mode                string  `json:"mode"`
	Temperature         int     `json:"temperature"`
	CurrentTemperature  int     `json:"current_temperature"`
	OutdoorTemperature  int     `json:"outdoor_temperature"`
	FanMode             string  `json:"fan_mode"`
	SwingMode           string  `json:"swing_mode"`
	SwingHorizontalMode string  `json:"swing_horizontal_mode"`
	PresetMode          string  `json:"preset_mode"`
	PowerWatts          int     `json:"power_watts"`
	EnergyKWh           float64 `json:"energy_kwh"`
	StatusLED           string  `json:"status_led"`
	ShadowVersion       int64   `json:"shadow_version"`
}

func NewUnitView(unit daikin.Aircond, energyKWh float64) UnitView {
	status := NewStatusPayload(unit)
	sensor := NewSensorPayload(unit, energyKWh)
	return UnitView{
		UnitID:              unit.UniqueID(),
		Name:                unit.ACName,
		Connected:           unit.IsConnected(),
		Mode:                status.Mode,
		Temperature:         status.Temperature,
		CurrentTemperature:  status.CurrentTemperature,
		OutdoorTemperature:  sensor.OutdoorTemperature,
		FanMode:             status.FanMode,
		SwingMode:           status.SwingMode,
		SwingHorizontalMode: status.SwingHorizontalMode,
		PresetMode:          status.PresetMode,
		PowerWatts:          sensor.Power,
		EnergyKWh:           sensor.Energy,
		StatusLED:           sensor.StatusLED,
		ShadowVersion:       int64(unit.ShadowState.ShadowStateVersion),
	}
}
