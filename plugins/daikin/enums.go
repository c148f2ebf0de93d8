package daikin

import (
	"fmt"
	"strings"
)

// Mode is the Set_Mode vendor code.
type Mode int

const (
	ModeCool    Mode = 1
	ModeFanOnly Mode = 2
	ModeDry     Mode = 4
)

// ModeOff is the presentation value used whenever the power flag is cleared.
const ModeOff = "off"

// HVACModes lists the modes offered to the hub, off included.
var HVACModes = []string{ModeOff, "cool", "dry", "fan_only"}

func (m Mode) String() string {
	switch m {
	case ModeCool:
		return "cool"
	case ModeFanOnly:
		return "fan_only"
	case ModeDry:
		return "dry"
	default:
		return "unknown"
	}
}

// Known reports whether m is one of the documented codes.
func (m Mode) Known() bool {
	return m == ModeCool || m == ModeFanOnly || m == ModeDry
}

// ParseMode maps a mode name to its code. "off" is not a mode code.
func ParseMode(name string) (Mode, error) {
	for _, m := range []Mode{ModeCool, ModeFanOnly, ModeDry} {
		if strings.EqualFold(name, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", name)
}

// FanSpeed is the Set_Fan vendor code.
type FanSpeed int

const (
	FanUnknown FanSpeed = 1
	FanLow     FanSpeed = 2
	FanMedium  FanSpeed = 4
	FanHigh    FanSpeed = 8
	FanAuto    FanSpeed = 128
)

// FanModes lists the fan speeds offered to the hub.
var FanModes = []string{"auto", "low", "medium", "high"}

func (f FanSpeed) String() string {
	switch f {
	case FanAuto:
		return "auto"
	case FanLow:
		return "low"
	case FanMedium:
		return "medium"
	case FanHigh:
		return "high"
	default:
		return "unknown"
	}
}

func (f FanSpeed) Known() bool {
	return f == FanAuto || f == FanLow || f == FanMedium || f == FanHigh
}

// ParseFanSpeed is case-insensitive.
func ParseFanSpeed(name string) (FanSpeed, error) {
	for _, f := range []FanSpeed{FanAuto, FanLow, FanMedium, FanHigh} {
		if strings.EqualFold(name, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown fan mode %q", name)
}

// Swing is a louvre position, shared by Set_UDLvr and Set_LRLvr.
type Swing int

const (
	SwingOff   Swing = 0
	SwingStep1 Swing = 1
	SwingStep2 Swing = 2
	SwingStep3 Swing = 3
	SwingStep4 Swing = 4
	SwingStep5 Swing = 5
	SwingAuto  Swing = 15
)

var swingNames = map[Swing]string{
	SwingOff:   "Off",
	SwingStep1: "Step_1",
	SwingStep2: "Step_2",
	SwingStep3: "Step_3",
	SwingStep4: "Step_4",
	SwingStep5: "Step_5",
	SwingAuto:  "Auto",
}

func (s Swing) String() string {
	if name, ok := swingNames[s]; ok {
		return name
	}
	return "Unknown"
}

func (s Swing) Known() bool {
	_, ok := swingNames[s]
	return ok
}

// SwingModes returns the positions offered to the hub. Steps are only listed
// when the unit supports stepped louvres.
func SwingModes(stepped bool) []string {
	modes := []string{SwingOff.String(), SwingAuto.String()}
	if stepped {
		for s := SwingStep1; s <= SwingStep5; s++ {
			modes = append(modes, s.String())
		}
	}
	return modes
}

// ParseSwing is case-insensitive.
func ParseSwing(name string) (Swing, error) {
	for s, n := range swingNames {
		if strings.EqualFold(name, n) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown swing mode %q", name)
}

// Preset is a named combination of the vendor's comfort flags.
type Preset string

const (
	PresetNone    Preset = "none"
	PresetComfort Preset = "comfort"
	PresetEco     Preset = "eco"
	PresetBoost   Preset = "boost"
	PresetSleep   Preset = "sleep"
)

// ParsePreset maps a preset name. Unknown names report an error alongside PresetNone.
func ParsePreset(name string) (Preset, error) {
	switch p := Preset(strings.ToLower(name)); p {
	case PresetNone, PresetComfort, PresetEco, PresetBoost, PresetSleep:
		return p, nil
	}
	return PresetNone, fmt.Errorf("unknown preset %q", name)
}

// EffectivePreset picks the active preset. Turbo wins over breeze, breeze over
// eco plus, eco plus over sleep.
func (s ShadowState) EffectivePreset() Preset {
	switch {
	case s.SetTurbo != 0:
		return PresetBoost
	case s.SetBreeze != 0:
		return PresetComfort
	case s.SetEcoplus != 0:
		return PresetEco
	case s.SetSleep != 0:
		return PresetSleep
	default:
		return PresetNone
	}
}

// SupportedPresets lists presets the unit advertises via its Ena_* flags.
func (s ShadowState) SupportedPresets() []Preset {
	presets := make([]Preset, 0, 4)
	if s.EnaTurbo != 0 {
		presets = append(presets, PresetBoost)
	}
	if s.EnaBreeze != 0 {
		presets = append(presets, PresetComfort)
	}
	if s.EnaEcoplus != 0 {
		presets = append(presets, PresetEco)
	}
	if s.EnaSilent != 0 {
		presets = append(presets, PresetSleep)
	}
	return presets
}
