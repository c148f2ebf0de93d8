package bridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/joshp123/godaikin/plugins/daikin"
)

// DecodeError is a malformed inbound command. It is logged and ignored.
type DecodeError struct {
	Topic  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode command %s: %s", e.Topic, e.Reason)
}

// decodePatch turns a command value into the shadow patch for key.
func decodePatch(topic, key, value string, logger *zap.Logger) (daikin.DesiredState, error) {
	reject := func(err error) (daikin.DesiredState, error) {
		return nil, &DecodeError{Topic: topic, Reason: err.Error()}
	}

	switch key {
	case KeyMode:
		if value == daikin.ModeOff {
			return daikin.OffPatch(), nil
		}
		mode, err := daikin.ParseMode(value)
		if err != nil {
			return reject(err)
		}
		return daikin.ModePatch(mode), nil

	case KeyFanMode:
		fan, err := daikin.ParseFanSpeed(value)
		if err != nil {
			return reject(err)
		}
		return daikin.FanPatch(fan), nil

	case KeyPresetMode:
		preset, err := daikin.ParsePreset(value)
		if err != nil {
			logger.Warn("unknown preset, clearing presets", zap.String("topic", topic), zap.String("value", value))
		}
		return daikin.PresetPatch(preset), nil

	case KeyTemperature:
		celsius, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(celsius) || math.IsInf(celsius, 0) {
			return reject(fmt.Errorf("temperature %q is not a number", value))
		}
		if celsius < minTemp || celsius >= maxTemp+1 {
			return reject(fmt.Errorf("temperature %q outside %d..%d", value, minTemp, maxTemp))
		}
		return daikin.TemperaturePatch(int(celsius)), nil

	case KeySwingMode, KeySwingHorizontalMode:
		swing, err := daikin.ParseSwing(value)
		if err != nil {
			return reject(err)
		}
		if key == KeySwingHorizontalMode {
			return daikin.HorizontalSwingPatch(swing), nil
		}
		return daikin.SwingPatch(swing), nil

	case KeyStatusLED:
		switch value {
		case "ON":
			return daikin.StatusLEDPatch(true), nil
		case "OFF":
			return daikin.StatusLEDPatch(false), nil
		}
		return reject(fmt.Errorf("status_led must be ON or OFF, got %q", value))
	}

	return reject(fmt.Errorf("unknown command key %q", key))
}
