package daikin

import (
	"fmt"
	"strings"
)

// Aircond is one unit as returned by the home page listing.
type Aircond struct {
	ACGroup                 string      `json:"ACGroup"`
	ACName                  string      `json:"ACName"`
	IP                      string      `json:"IP"`
	Logo                    string      `json:"Logo"`
	ThingName               string      `json:"ThingName"`
	ThingType               string      `json:"ThingType"`
	GatewayIP               string      `json:"gatewayIP"`
	GroupIndex              int         `json:"groupIndex"`
	GuestPaired             int         `json:"guestPaired"`
	IsGooglePreferredDevice int         `json:"isGooglePreferredDevice"`
	IsPreferredDevice       int         `json:"isPreferredDevice"`
	Manufacturer            string      `json:"manufacturer"`
	PlanExpiredDate         string      `json:"planExpiredDate"`
	PlanID                  string      `json:"planID"`
	QX                      string      `json:"qx"`
	ShadowState             ShadowState `json:"shadowState"`
	SubStartDate            string      `json:"subStartDate"`
	SubnetMask              string      `json:"subnetMask"`
	UnitIndex               int         `json:"unitIndex"`

	// The listing carries both ThingName and thingName ("<thing>=AC"). Without a
	// dedicated field encoding/json folds the lowercase key onto ThingName.
	ThingNameQualified string `json:"thingName"`
}

// ShadowState is the vendor's mirrored device document. Values are opaque vendor codes.
type ShadowState struct {
	BarAutoF int `json:"Bar_AutoF"`
	BarAutoM int `json:"Bar_AutoM"`
	BarCoolM int `json:"Bar_CoolM"`
	BarDryM  int `json:"Bar_DryM"`
	BarFanM  int `json:"Bar_FanM"`
	BarHeatM int `json:"Bar_HeatM"`
	BarLowF  int `json:"Bar_LowF"`
	BarSleep int `json:"Bar_Sleep"`
	BarSwing int `json:"Bar_Swing"`
	BarTimer int `json:"Bar_Timer"`

	EnaACoilCln     int `json:"Ena_ACoilCln"`
	EnaBreeze       int `json:"Ena_Breeze"`
	EnaCKSwing      int `json:"Ena_CKSwing"`
	EnaCmode        int `json:"Ena_Cmode"`
	EnaCoilCln      int `json:"Ena_CoilCln"`
	EnaDOTA         int `json:"Ena_DOTA"`
	EnaEcoplus      int `json:"Ena_Ecoplus"`
	EnaIcoolx       int `json:"Ena_Icoolx"`
	EnaLEDOff       int `json:"Ena_LEDOff"`
	EnaLRStep       int `json:"Ena_LRStep"`
	EnaLRSwing      int `json:"Ena_LRSwing"`
	EnaMDemand      int `json:"Ena_MDemand"`
	EnaMoSupp       int `json:"Ena_MoSupp"`
	EnaPwrInd       int `json:"Ena_PwrInd"`
	EnaSense        int `json:"Ena_Sense"`
	EnaSilent       int `json:"Ena_Silent"`
	EnaSmDrift      int `json:"Ena_SmDrift"`
	EnaSmEcomax     int `json:"Ena_SmEcomax"`
	EnaSmPerDiag    int `json:"Ena_SmPerDiag"`
	EnaSmPwrfulplus int `json:"Ena_SmPwrfulplus"`
	EnaSmSleepplus  int `json:"Ena_SmSleepplus"`
	EnaStreamer     int `json:"Ena_Streamer"`
	EnaTurbo        int `json:"Ena_Turbo"`
	EnaUDStep       int `json:"Ena_UDStep"`
	EnaELight       int `json:"Ena_eLight"`

	InfIDAlgo    int `json:"Inf_IDAlgo"`
	InfIDCap     int `json:"Inf_IDCap"`
	InfIDType    int `json:"Inf_IDType"`
	InfMaxPL     int `json:"Inf_MaxPL"`
	InfMinPL     int `json:"Inf_MinPL"`
	InfNSVer     int `json:"Inf_NSVer"`
	InfODPwrCon  int `json:"Inf_ODPwrCon"`
	InfProd      int `json:"Inf_Prod"`
	InfProdBrand int `json:"Inf_ProdBrand"`
	InfProdSys   int `json:"Inf_ProdSys"`

	SetACoilCln     int `json:"Set_ACoilCln"`
	SetBreeze       int `json:"Set_Breeze"`
	SetCKSwing      int `json:"Set_CKSwing"`
	SetCoilCln      int `json:"Set_CoilCln"`
	SetCommStep     int `json:"Set_CommStep"`
	SetEcoplus      int `json:"Set_Ecoplus"`
	SetFan          int `json:"Set_Fan"`
	SetFanExtend    int `json:"Set_FanExtend"`
	SetIcoolx       int `json:"Set_Icoolx"`
	SetIon          int `json:"Set_Ion"`
	SetLEDOff       int `json:"Set_LEDOff"`
	SetLRLvr        int `json:"Set_LRLvr"`
	SetMDemand      int `json:"Set_MDemand"`
	SetMoSupp       int `json:"Set_MoSupp"`
	SetMode         int `json:"Set_Mode"`
	SetOnOff        int `json:"Set_OnOff"`
	SetPL           int `json:"Set_PL"`
	SetPdown        int `json:"Set_Pdown"`
	SetPwrInd       int `json:"Set_PwrInd"`
	SetSancMode     int `json:"Set_SancMode"`
	SetSense        int `json:"Set_Sense"`
	SetSilent       int `json:"Set_Silent"`
	SetSleep        int `json:"Set_Sleep"`
	SetSmDrift      int `json:"Set_SmDrift"`
	SetSmEcomax     int `json:"Set_SmEcomax"`
	SetSmPerDiag    int `json:"Set_SmPerDiag"`
	SetSmPwrfulplus int `json:"Set_SmPwrfulplus"`
	SetSmSleepplus  int `json:"Set_SmSleepplus"`
	SetStreamer     int `json:"Set_Streamer"`
	SetSwing        int `json:"Set_Swing"`
	SetTemp         int `json:"Set_Temp"`
	SetTurbo        int `json:"Set_Turbo"`
	SetTurboplus    int `json:"Set_Turboplus"`
	SetUDLvr        int `json:"Set_UDLvr"`
	SetELight       int `json:"Set_eLight"`

	StaAutoM       int `json:"Sta_AutoM"`
	StaCmode       int `json:"Sta_Cmode"`
	StaCmodeC      int `json:"Sta_Cmode_C"`
	StaCoilCln     int `json:"Sta_CoilCln"`
	StaCpOnOff     int `json:"Sta_CpOnOff"`
	StaCpRT        int `json:"Sta_CpRT"`
	StaDCBus       int `json:"Sta_DCBus"`
	StaErrCode     int `json:"Sta_ErrCode"`
	StaFaht        int `json:"Sta_Faht"`
	StaHumanDct    int `json:"Sta_HumanDct"`
	StaIDCoilTemp  int `json:"Sta_IDCoilTemp"`
	StaIDRPM       int `json:"Sta_IDRPM"`
	StaIDRh        int `json:"Sta_IDRh"`
	StaIDRoomTemp  int `json:"Sta_IDRoomTemp"`
	StaODAirTemp   int `json:"Sta_ODAirTemp"`
	StaODCoilTemp  int `json:"Sta_ODCoilTemp"`
	StaODCpFreq    int `json:"Sta_ODCpFreq"`
	StaODCurrConsp int `json:"Sta_ODCurrConsp"`
	StaODDiscTemp  int `json:"Sta_ODDiscTemp"`
	StaODEXVPulse  int `json:"Sta_ODEXVPulse"`
	StaODPwrCon    int `json:"Sta_ODPwrCon"`
	StaODRPM       int `json:"Sta_ODRPM"`

	Cfg                int    `json:"cfg"`
	DOTAFlag           int    `json:"d_ota_flag"`
	EventType          string `json:"eventType"`
	IP                 string `json:"ip"`
	Key                string `json:"key"`
	OTAFlag            int    `json:"ota_flag"`
	Port               string `json:"port"`
	Rbt                int    `json:"rbt"`
	RemoteOTAFlag      int    `json:"remote_ota_flag"`
	Sch                int    `json:"sch"`
	ShadowStateVersion int    `json:"shadowStateVersion"`
	ThingName          string `json:"thingName"`
	TimerState         int    `json:"timerState"`
	UpdatedOn          string `json:"updatedOn"`
	Version            string `json:"version"`
}

// UniqueID is the case-normalized thing name.
func (a Aircond) UniqueID() string {
	return strings.ToLower(a.ThingName)
}

// ObjectID is the entity object id used in discovery documents.
func (a Aircond) ObjectID() string {
	return strings.ReplaceAll(strings.ToLower(a.ACName), " ", "_") + "_ac"
}

func (a Aircond) IsOn() bool {
	return a.ShadowState.SetOnOff == 1
}

// IsConnected reports the cloud connectivity of the unit, independent of power.
func (a Aircond) IsConnected() bool {
	return a.ShadowState.EventType == "connected"
}

// DrawingPower is true only when the power flag, the on state and the raw
// outdoor power reading all agree the unit is running.
func (a Aircond) DrawingPower() bool {
	return a.ShadowState.SetOnOff == 1 && a.IsOn() && a.ShadowState.StaODPwrCon > 0
}

// MACAddress derives the MAC from the last 12 characters of the thing name.
func (a Aircond) MACAddress() string {
	const unknown = "00:00:00:00:00:00"
	name := a.ThingName
	if len(name) < 12 {
		return unknown
	}
	raw := name[len(name)-12:]
	pairs := make([]string, 0, 6)
	for i := 0; i < 12; i += 2 {
		pairs = append(pairs, raw[i:i+2])
	}
	return strings.Join(pairs, ":")
}

func (a Aircond) String() string {
	return fmt.Sprintf("%s (%s)", a.ACName, a.UniqueID())
}
