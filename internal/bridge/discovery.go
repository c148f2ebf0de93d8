package bridge

import (
	"strings"

	"github.com/joshp123/godaikin/plugins/daikin"
)

const (
	minTemp  = 16
	maxTemp  = 31
	tempStep = 1
)

// DiscoveryMessage is one retained Home Assistant config document.
type DiscoveryMessage struct {
	Topic   string
	Payload any
}

type availabilityTopic struct {
	Topic string `json:"topic"`
}

type deviceRef struct {
	Identifiers  []string   `json:"identifiers"`
	Manufacturer string     `json:"manufacturer,omitempty"`
	Model        string     `json:"model,omitempty"`
	Name         string     `json:"name,omitempty"`
	Connections  [][]string `json:"connections,omitempty"`
}

type climateConfig struct {
	Name                             *string             `json:"name"`
	ObjectID                         string              `json:"object_id"`
	UniqueID                         string              `json:"unique_id"`
	Modes                            []string            `json:"modes"`
	ModeCommandTopic                 string              `json:"mode_command_topic"`
	ModeStateTopic                   string              `json:"mode_state_topic"`
	ModeStateTemplate                string              `json:"mode_state_template"`
	TemperatureCommandTopic          string              `json:"temperature_command_topic"`
	TemperatureStateTopic            string              `json:"temperature_state_topic"`
	TemperatureStateTemplate         string              `json:"temperature_state_template"`
	CurrentTemperatureTopic          string              `json:"current_temperature_topic"`
	CurrentTemperatureTemplate       string              `json:"current_temperature_template"`
	FanModes                         []string            `json:"fan_modes"`
	FanModeCommandTopic              string              `json:"fan_mode_command_topic"`
	FanModeStateTopic                string              `json:"fan_mode_state_topic"`
	FanModeStateTemplate             string              `json:"fan_mode_state_template"`
	SwingModes                       []string            `json:"swing_modes"`
	SwingModeCommandTopic            string              `json:"swing_mode_command_topic"`
	SwingModeStateTopic              string              `json:"swing_mode_state_topic"`
	SwingModeStateTemplate           string              `json:"swing_mode_state_template"`
	SwingHorizontalModes             []string            `json:"swing_horizontal_modes"`
	SwingHorizontalModeCommandTopic  string              `json:"swing_horizontal_mode_command_topic"`
	SwingHorizontalModeStateTopic    string              `json:"swing_horizontal_mode_state_topic"`
	SwingHorizontalModeStateTemplate string              `json:"swing_horizontal_mode_state_template"`
	PresetModes                      []daikin.Preset     `json:"preset_modes"`
	PresetModeCommandTopic           string              `json:"preset_mode_command_topic"`
	PresetModeStateTopic             string              `json:"preset_mode_state_topic"`
	PresetModeValueTemplate          string              `json:"preset_mode_value_template"`
	TempStep                         int                 `json:"temp_step"`
	MinTemp                          int                 `json:"min_temp"`
	MaxTemp                          int                 `json:"max_temp"`
	Precision                        int                 `json:"precision"`
	Icon                             string              `json:"icon"`
	QoS                              int                 `json:"qos"`
	Retain                           bool                `json:"retain"`
	AvailabilityMode                 string              `json:"availability_mode"`
	Availability                     []availabilityTopic `json:"availability"`
	Device                           deviceRef           `json:"device"`
}

type sensorConfig struct {
	Name              string              `json:"name"`
	UniqueID          string              `json:"unique_id"`
	StateTopic        string              `json:"state_topic"`
	ValueTemplate     string              `json:"value_template"`
	StateClass        string              `json:"state_class"`
	UnitOfMeasurement string              `json:"unit_of_measurement"`
	DeviceClass       string              `json:"device_class"`
	QoS               int                 `json:"qos"`
	Retain            bool                `json:"retain"`
	AvailabilityMode  string              `json:"availability_mode"`
	Availability      []availabilityTopic `json:"availability"`
	Device            deviceRef           `json:"device"`
}

type lightConfig struct {
	Name               string              `json:"name"`
	UniqueID           string              `json:"unique_id"`
	CommandTopic       string              `json:"command_topic"`
	StateTopic         string              `json:"state_topic"`
	StateValueTemplate string              `json:"state_value_template"`
	QoS                int                 `json:"qos"`
	Retain             bool                `json:"retain"`
	EntityCategory     string              `json:"entity_category"`
	Icon               string              `json:"icon"`
	AvailabilityMode   string              `json:"availability_mode"`
	Availability       []availabilityTopic `json:"availability"`
	Device             deviceRef           `json:"device"`
}

type sensorSpec struct {
	name        string
	field       string
	unit        string
	deviceClass string
	stateClass  string
}

var sensorSpecs = []sensorSpec{
	{"Power", "Sta_ODPwrCon", "W", "power", "measurement"},
	{"Indoor temperature", "Sta_IDRoomTemp", "°C", "temperature", "measurement"},
	{"Outdoor temperature", "Sta_ODAirTemp", "°C", "temperature", "measurement"},
	{"Energy", "energy", "kWh", "energy", "total_increasing"},
}

func valueTemplate(field string) string {
	return "{{ value_json." + field + " }}"
}

// DiscoveryMessages builds the climate, sensor and optional light configs for a unit.
func (t Topics) DiscoveryMessages(unit daikin.Aircond) []DiscoveryMessage {
	uid := unit.UniqueID()
	topics := t.Unit(uid)
	state := unit.ShadowState
	availability := []availabilityTopic{
		{Topic: t.BridgeAvailability()},
		{Topic: topics.Availability},
	}

	var horizontal []string
	if state.EnaLRSwing != 0 {
		horizontal = daikin.SwingModes(state.EnaLRStep != 0)
	}

	climate := climateConfig{
		ObjectID:                         unit.ObjectID(),
		UniqueID:                         uid,
		Modes:                            daikin.HVACModes,
		ModeCommandTopic:                 topics.CmdMode,
		ModeStateTopic:                   topics.Status,
		ModeStateTemplate:                valueTemplate("mode"),
		TemperatureCommandTopic:          topics.CmdTemperature,
		TemperatureStateTopic:            topics.Status,
		TemperatureStateTemplate:         valueTemplate("temperature"),
		CurrentTemperatureTopic:          topics.Status,
		CurrentTemperatureTemplate:       valueTemplate("current_temperature"),
		FanModes:                         daikin.FanModes,
		FanModeCommandTopic:              topics.CmdFan,
		FanModeStateTopic:                topics.Status,
		FanModeStateTemplate:             valueTemplate("fan_mode"),
		SwingModes:                       daikin.SwingModes(state.EnaUDStep != 0),
		SwingModeCommandTopic:            topics.CmdSwing,
		SwingModeStateTopic:              topics.Status,
		SwingModeStateTemplate:           valueTemplate("swing_mode"),
		SwingHorizontalModes:             horizontal,
		SwingHorizontalModeCommandTopic:  topics.CmdSwingHorizontal,
		SwingHorizontalModeStateTopic:    topics.Status,
		SwingHorizontalModeStateTemplate: valueTemplate("swing_horizontal_mode"),
		PresetModes:                      state.SupportedPresets(),
		PresetModeCommandTopic:           topics.CmdPreset,
		PresetModeStateTopic:             topics.Status,
		PresetModeValueTemplate:          valueTemplate("preset_mode"),
		TempStep:                         tempStep,
		MinTemp:                          minTemp,
		MaxTemp:                          maxTemp,
		Precision:                        tempStep,
		Icon:                             "mdi:air-conditioner",
		AvailabilityMode:                 "all",
		Availability:                     availability,
		Device: deviceRef{
			Identifiers:  []string{uid},
			Manufacturer: "Daikin",
			Model:        "GO DAIKIN",
			Name:         unit.ACName,
			Connections:  [][]string{{"mac", unit.MACAddress()}},
		},
	}

	messages := []DiscoveryMessage{{Topic: topics.ClimateConfig, Payload: climate}}

	for _, spec := range sensorSpecs {
		norm := strings.ReplaceAll(strings.ToLower(spec.name), " ", "_")
		messages = append(messages, DiscoveryMessage{
			Topic: t.sensorConfig(uid, norm),
			Payload: sensorConfig{
				Name:              spec.name,
				UniqueID:          uid + "_" + norm,
				StateTopic:        topics.Sensor,
				ValueTemplate:     valueTemplate(spec.field),
				StateClass:        spec.stateClass,
				UnitOfMeasurement: spec.unit,
				DeviceClass:       spec.deviceClass,
				Retain:            true,
				AvailabilityMode:  "all",
				Availability:      availability,
				Device:            deviceRef{Identifiers: []string{uid}},
			},
		})
	}

	if state.EnaLEDOff != 0 {
		messages = append(messages, DiscoveryMessage{
			Topic: t.lightConfig(uid, KeyStatusLED),
			Payload: lightConfig{
				Name:               "Status LED",
				UniqueID:           uid + "_" + KeyStatusLED,
				CommandTopic:       topics.CmdStatusLED,
				StateTopic:         topics.Sensor,
				StateValueTemplate: valueTemplate(KeyStatusLED),
				EntityCategory:     "config",
				Icon:               "mdi:lightning-bolt-circle",
				AvailabilityMode:   "all",
				Availability:       availability,
				Device:             deviceRef{Identifiers: []string{uid}},
			},
		})
	}

	return messages
}
