package bridge

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/joshp123/godaikin/plugins/daikin"
)

func TestParseCommand(t *testing.T) {
	topics := NewTopics("godaikin", "homeassistant")

	unit, key, err := topics.ParseCommand("godaikin/ac1/set/temperature")
	if err != nil || unit != "ac1" || key != "temperature" {
		t.Fatalf("ParseCommand = %q %q %v", unit, key, err)
	}

	for _, topic := range []string{
		"other/ac1/set/mode",
		"godaikin/ac1/set",
		"godaikin/ac1/set/mode/extra",
		"godaikin/ac1/toggle/mode",
		"godaikin//set/mode",
	} {
		_, _, err := topics.ParseCommand(topic)
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("ParseCommand(%s) = %v, want DecodeError", topic, err)
		}
	}
}

func TestDecodePatch(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  daikin.DesiredState
	}{
		{KeyMode, "off", daikin.OffPatch()},
		{KeyMode, "dry", daikin.ModePatch(daikin.ModeDry)},
		{KeyMode, "fan_only", daikin.ModePatch(daikin.ModeFanOnly)},
		{KeyFanMode, "Medium", daikin.FanPatch(daikin.FanMedium)},
		{KeyTemperature, "24.0", daikin.TemperaturePatch(24)},
		{KeyTemperature, "23.9", daikin.TemperaturePatch(23)},
		{KeyTemperature, "16", daikin.TemperaturePatch(16)},
		{KeyTemperature, "31.5", daikin.TemperaturePatch(31)},
		{KeySwingMode, "Auto", daikin.SwingPatch(daikin.SwingAuto)},
		{KeySwingHorizontalMode, "Step_2", daikin.HorizontalSwingPatch(daikin.SwingStep2)},
		{KeyStatusLED, "ON", daikin.StatusLEDPatch(true)},
		{KeyStatusLED, "OFF", daikin.StatusLEDPatch(false)},
		{KeyPresetMode, "eco", daikin.PresetPatch(daikin.PresetEco)},
		{KeyPresetMode, "party", daikin.PresetPatch(daikin.PresetNone)},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := decodePatch("t", tt.key, tt.value, zap.NewNop())
			if err != nil {
				t.Fatalf("decodePatch: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodePatchRejects(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{KeyMode, "heat"},
		{KeyMode, "OFF"},
		{KeyFanMode, "unknown"},
		{KeyTemperature, "NaN"},
		{KeyTemperature, ""},
		{KeyTemperature, "1e30"},
		{KeyTemperature, "-1e30"},
		{KeyTemperature, "9.3e18"},
		{KeyTemperature, "15.9"},
		{KeyTemperature, "32"},
		{KeySwingMode, "Step_9"},
		{KeyStatusLED, "on"},
		{"volume", "11"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			_, err := decodePatch("godaikin/ac1/set/"+tt.key, tt.key, tt.value, zap.NewNop())
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("decodePatch = %v, want DecodeError", err)
			}
			if decodeErr.Topic != "godaikin/ac1/set/"+tt.key {
				t.Fatalf("topic = %s", decodeErr.Topic)
			}
		})
	}
}
