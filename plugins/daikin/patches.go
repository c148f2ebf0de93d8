package daikin

// DesiredState is a partial shadow document pushed to the unit.
type DesiredState map[string]int

// ModePatch powers the unit on in mode m.
func ModePatch(m Mode) DesiredState {
	return DesiredState{"Set_OnOff": 1, "Set_Mode": int(m)}
}

func OffPatch() DesiredState {
	return DesiredState{"Set_OnOff": 0}
}

func FanPatch(f FanSpeed) DesiredState {
	return DesiredState{"Set_Fan": int(f)}
}

// SwingPatch sets the vertical louvre. Set_Swing tracks whether it oscillates.
func SwingPatch(s Swing) DesiredState {
	swinging := 0
	if s == SwingAuto {
		swinging = 1
	}
	return DesiredState{"Set_Swing": swinging, "Set_UDLvr": int(s)}
}

func HorizontalSwingPatch(s Swing) DesiredState {
	return DesiredState{"Set_LRLvr": int(s)}
}

func TemperaturePatch(celsius int) DesiredState {
	return DesiredState{"Set_Temp": celsius}
}

func StatusLEDPatch(on bool) DesiredState {
	if on {
		return DesiredState{"Set_LEDOff": 0, "Set_PwrInd": 1}
	}
	return DesiredState{"Set_LEDOff": 1, "Set_PwrInd": 0}
}

// PresetPatch enables p. PresetNone clears every comfort flag.
func PresetPatch(p Preset) DesiredState {
	switch p {
	case PresetComfort:
		return DesiredState{"Set_Breeze": 1, "Set_LRLvr": 0, "Set_Swing": 0}
	case PresetEco:
		return DesiredState{"Set_Ecoplus": 1, "Set_SmEcomax": 0}
	case PresetBoost:
		return DesiredState{"Set_Silent": 0, "Set_Turbo": 1}
	case PresetSleep:
		return DesiredState{"Set_Sleep": 1, "Set_SmSleepplus": 0}
	default:
		return DesiredState{
			"Set_Breeze":       0,
			"Set_Ecoplus":      0,
			"Set_Silent":       0,
			"Set_Sleep":        0,
			"Set_SmEcomax":     0,
			"Set_SmSleepplus":  0,
			"Set_SmPwrfulplus": 0,
			"Set_Turbo":        0,
		}
	}
}
