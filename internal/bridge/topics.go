package bridge

import "strings"

// Command keys accepted on <prefix>/<unit>/set/<key>.
const (
	KeyMode                = "mode"
	KeyFanMode             = "fan_mode"
	KeyPresetMode          = "preset_mode"
	KeyTemperature         = "temperature"
	KeySwingMode           = "swing_mode"
	KeySwingHorizontalMode = "swing_horizontal_mode"
	KeyStatusLED           = "status_led"
)

const actionSet = "set"

// Topics names every topic the bridge reads or writes.
type Topics struct {
	prefix    string
	discovery string
}

func NewTopics(prefix, discoveryPrefix string) Topics {
	return Topics{
		prefix:    strings.TrimSuffix(prefix, "/"),
		discovery: strings.TrimSuffix(discoveryPrefix, "/"),
	}
}

func (t Topics) BridgeAvailability() string {
	return t.prefix + "/bridge/availability"
}

// CommandFilter is the wildcard subscription for every unit command.
func (t Topics) CommandFilter() string {
	return t.prefix + "/+/" + actionSet + "/+"
}

func (t Topics) Command(unitID, key string) string {
	return t.prefix + "/" + unitID + "/" + actionSet + "/" + key
}

// UnitTopics are the per-unit topics.
type UnitTopics struct {
	Availability       string
	Status             string
	Sensor             string
	CmdMode            string
	CmdTemperature     string
	CmdFan             string
	CmdSwing           string
	CmdSwingHorizontal string
	CmdPreset          string
	CmdStatusLED       string
	ClimateConfig      string
}

func (t Topics) Unit(unitID string) UnitTopics {
	base := t.prefix + "/" + unitID
	return UnitTopics{
		Availability:       base + "/availability",
		Status:             base + "/status",
		Sensor:             base + "/sensor",
		CmdMode:            t.Command(unitID, KeyMode),
		CmdTemperature:     t.Command(unitID, KeyTemperature),
		CmdFan:             t.Command(unitID, KeyFanMode),
		CmdSwing:           t.Command(unitID, KeySwingMode),
		CmdSwingHorizontal: t.Command(unitID, KeySwingHorizontalMode),
		CmdPreset:          t.Command(unitID, KeyPresetMode),
		CmdStatusLED:       t.Command(unitID, KeyStatusLED),
		ClimateConfig:      t.discovery + "/climate/" + unitID + "/config",
	}
}

func (t Topics) sensorConfig(unitID, name string) string {
	return t.discovery + "/sensor/" + unitID + "/" + name + "/config"
}

func (t Topics) lightConfig(unitID, name string) string {
	return t.discovery + "/light/" + unitID + "/" + name + "/config"
}

// ParseCommand splits <prefix>/<unit>/<action>/<key>. Only the set action is accepted.
func (t Topics) ParseCommand(topic string) (unitID, key string, err error) {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/")
	if !ok {
		return "", "", &DecodeError{Topic: topic, Reason: "topic outside bridge prefix"}
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", &DecodeError{Topic: topic, Reason: "expected <unit>/<action>/<key>"}
	}
	if parts[1] != actionSet {
		return "", "", &DecodeError{Topic: topic, Reason: "unknown action " + parts[1]}
	}
	return parts[0], parts[2], nil
}
