package daikin

import (
	"reflect"
	"testing"
)

func TestModeNames(t *testing.T) {
	if ModeFanOnly.String() != "fan_only" || Mode(9).String() != "unknown" {
		t.Fatalf("unexpected mode names")
	}
	m, err := ParseMode("DRY")
	if err != nil || m != ModeDry {
		t.Fatalf("ParseMode(DRY) = %v, %v", m, err)
	}
	if _, err := ParseMode("off"); err == nil {
		t.Fatalf("off is not a mode code")
	}
	if _, err := ParseMode("heat"); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}

func TestFanSpeedParse(t *testing.T) {
	f, err := ParseFanSpeed("Medium")
	if err != nil || f != FanMedium {
		t.Fatalf("ParseFanSpeed(Medium) = %v, %v", f, err)
	}
	if _, err := ParseFanSpeed("turbo"); err == nil {
		t.Fatalf("expected unknown fan error")
	}
	if FanSpeed(64).String() != "unknown" || FanSpeed(64).Known() {
		t.Fatalf("unexpected handling of unknown fan code")
	}
}

func TestSwingParseAndModes(t *testing.T) {
	s, err := ParseSwing("step_3")
	if err != nil || s != SwingStep3 {
		t.Fatalf("ParseSwing(step_3) = %v, %v", s, err)
	}
	s, err = ParseSwing("AUTO")
	if err != nil || s != SwingAuto {
		t.Fatalf("ParseSwing(AUTO) = %v, %v", s, err)
	}
	if _, err := ParseSwing("Step_9"); err == nil {
		t.Fatalf("expected unknown swing error")
	}
	if Swing(7).String() != "Unknown" {
		t.Fatalf("unexpected name for unknown swing")
	}

	if got := SwingModes(false); !reflect.DeepEqual(got, []string{"Off", "Auto"}) {
		t.Fatalf("SwingModes(false) = %v", got)
	}
	want := []string{"Off", "Auto", "Step_1", "Step_2", "Step_3", "Step_4", "Step_5"}
	if got := SwingModes(true); !reflect.DeepEqual(got, want) {
		t.Fatalf("SwingModes(true) = %v", got)
	}
}

func TestParsePresetFallsBackToNone(t *testing.T) {
	p, err := ParsePreset("ECO")
	if err != nil || p != PresetEco {
		t.Fatalf("ParsePreset(ECO) = %v, %v", p, err)
	}
	p, err = ParsePreset("party")
	if err == nil || p != PresetNone {
		t.Fatalf("ParsePreset(party) = %v, %v", p, err)
	}
}

func TestPatches(t *testing.T) {
	tests := []struct {
		name string
		got  DesiredState
		want DesiredState
	}{
		{"mode", ModePatch(ModeCool), DesiredState{"Set_OnOff": 1, "Set_Mode": 1}},
		{"off", OffPatch(), DesiredState{"Set_OnOff": 0}},
		{"fan", FanPatch(FanAuto), DesiredState{"Set_Fan": 128}},
		{"swing auto", SwingPatch(SwingAuto), DesiredState{"Set_Swing": 1, "Set_UDLvr": 15}},
		{"swing step", SwingPatch(SwingStep2), DesiredState{"Set_Swing": 0, "Set_UDLvr": 2}},
		{"horizontal", HorizontalSwingPatch(SwingStep4), DesiredState{"Set_LRLvr": 4}},
		{"temperature", TemperaturePatch(24), DesiredState{"Set_Temp": 24}},
		{"led on", StatusLEDPatch(true), DesiredState{"Set_LEDOff": 0, "Set_PwrInd": 1}},
		{"led off", StatusLEDPatch(false), DesiredState{"Set_LEDOff": 1, "Set_PwrInd": 0}},
		{"comfort", PresetPatch(PresetComfort), DesiredState{"Set_Breeze": 1, "Set_LRLvr": 0, "Set_Swing": 0}},
		{"eco", PresetPatch(PresetEco), DesiredState{"Set_Ecoplus": 1, "Set_SmEcomax": 0}},
		{"boost", PresetPatch(PresetBoost), DesiredState{"Set_Silent": 0, "Set_Turbo": 1}},
		{"sleep", PresetPatch(PresetSleep), DesiredState{"Set_Sleep": 1, "Set_SmSleepplus": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Fatalf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	none := PresetPatch(PresetNone)
	if len(none) != 8 {
		t.Fatalf("none preset clears %d flags, want 8", len(none))
	}
	for key, value := range none {
		if value != 0 {
			t.Fatalf("%s = %d, want 0", key, value)
		}
	}
}
