package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joshp123/godaikin/internal/energy"
	"github.com/joshp123/godaikin/internal/mqtt"
	"github.com/joshp123/godaikin/internal/publish"
	"github.com/joshp123/godaikin/plugins/daikin"
)

type patchCall struct {
	uniqueID  string
	thingName string
	key       string
	state     daikin.DesiredState
}

// fakeAPI serves a mutable unit list and applies patches to it.
type fakeAPI struct {
	mu       sync.Mutex
	units    []daikin.Aircond
	patches  []patchCall
	lists    int
	listErr  error
	patchErr error
	panicMsg string
}

func (f *fakeAPI) ListDevices(context.Context) ([]daikin.Aircond, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]daikin.Aircond(nil), f.units...), nil
}

func (f *fakeAPI) PatchState(_ context.Context, uniqueID, thingName, key string, state daikin.DesiredState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patches = append(f.patches, patchCall{uniqueID, thingName, key, state})
	for i := range f.units {
		if f.units[i].UniqueID() != uniqueID {
			continue
		}
		if temp, ok := state["Set_Temp"]; ok {
			f.units[i].ShadowState.SetTemp = temp
		}
		if on, ok := state["Set_OnOff"]; ok {
			f.units[i].ShadowState.SetOnOff = on
		}
	}
	return nil
}

func (f *fakeAPI) patchCalls() []patchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patchCall(nil), f.patches...)
}

func testUnit() daikin.Aircond {
	return daikin.Aircond{
		ACName:    "Bedroom",
		ThingName: "AC1",
		ShadowState: daikin.ShadowState{
			SetOnOff:      1,
			SetMode:       int(daikin.ModeCool),
			SetTemp:       22,
			SetFan:        int(daikin.FanAuto),
			SetUDLvr:      int(daikin.SwingAuto),
			StaIDRoomTemp: 27,
			StaODAirTemp:  31,
			StaODPwrCon:   900,
			EventType:     "connected",
			Key:           "shadow-key",
		},
	}
}

func newTestController(api *fakeAPI) (*Controller, *mqtt.FakeClient) {
	bus := mqtt.NewFakeClient()
	cfg := Config{Prefix: "godaikin", DiscoveryPrefix: "homeassistant", RefreshInterval: time.Hour}
	c := NewController(cfg, api, bus, publish.NewPublisher(bus, nil), energy.NewAccumulator(), nil)
	return c, bus
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func lastPayload(bus *mqtt.FakeClient, topic string) string {
	got := bus.PublishedTo(topic)
	if len(got) == 0 {
		return ""
	}
	return string(got[len(got)-1].Payload)
}

func TestTemperatureCommandEndToEnd(t *testing.T) {
	api := &fakeAPI{units: []daikin.Aircond{testUnit()}}
	c, bus := newTestController(api)
	status := "godaikin/ac1/status"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, "first status", func() bool { return len(bus.PublishedTo(status)) == 1 })
	if c.State() != StateSteady {
		t.Fatalf("state = %s, want STEADY", c.State())
	}
	if subs := bus.Subscriptions(); subs["godaikin/+/set/+"] != 1 {
		t.Fatalf("subscriptions = %v", subs)
	}

	bus.Inject("godaikin/ac1/set/temperature", "24.0")

	waitFor(t, "updated status", func() bool { return len(bus.PublishedTo(status)) == 2 })
	var payload StatusPayload
	if err := json.Unmarshal([]byte(lastPayload(bus, status)), &payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload.Temperature != 24 {
		t.Fatalf("temperature = %d, want 24", payload.Temperature)
	}

	patches := api.patchCalls()
	if len(patches) != 1 {
		t.Fatalf("patches = %d, want 1", len(patches))
	}
	p := patches[0]
	if p.uniqueID != "ac1" || p.thingName != "AC1" || p.key != "shadow-key" || p.state["Set_Temp"] != 24 {
		t.Fatalf("unexpected patch %+v", p)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}

	availability := bus.PublishedTo("godaikin/bridge/availability")
	if len(availability) != 2 || string(availability[0].Payload) != "online" || string(availability[1].Payload) != "offline" {
		t.Fatalf("bridge availability = %+v", availability)
	}
	if !availability[1].Retained || availability[1].QoS != 1 {
		t.Fatalf("offline announcement must be retained QoS 1")
	}
	if c.State() != StateShuttingDown {
		t.Fatalf("state = %s after Run", c.State())
	}
}

func TestAPIFailureStopsBridgeAndAnnouncesOffline(t *testing.T) {
	sentinel := errors.New("cloud down")
	api := &fakeAPI{units: []daikin.Aircond{testUnit()}, listErr: sentinel}
	c, bus := newTestController(api)

	err := c.Run(context.Background())
	if !errors.Is(err, sentinel) {
		t.Fatalf("Run err = %v, want cloud down", err)
	}
	if got := lastPayload(bus, "godaikin/bridge/availability"); got != "offline" {
		t.Fatalf("last bridge availability = %q", got)
	}
}

func TestPanicInLoopStillAnnouncesOffline(t *testing.T) {
	api := &fakeAPI{panicMsg: "boom"}
	c, bus := newTestController(api)

	err := c.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("Run err = %v, want recovered panic", err)
	}
	if got := lastPayload(bus, "godaikin/bridge/availability"); got != "offline" {
		t.Fatalf("last bridge availability = %q", got)
	}
}

func TestOnlineAnnouncementFailure(t *testing.T) {
	api := &fakeAPI{}
	c, bus := newTestController(api)
	bus.PublishError = errors.New("broker gone")

	if err := c.Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if api.lists != 0 {
		t.Fatalf("polled %d times without announcing online", api.lists)
	}
	if got := c.State(); got != StateShuttingDown {
		t.Fatalf("state = %s, want SHUTTING_DOWN", got)
	}
}

func TestDecodeErrorIsIgnoredAndPreempts(t *testing.T) {
	api := &fakeAPI{units: []daikin.Aircond{testUnit()}}
	c, _ := newTestController(api)
	if _, err := c.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	bad := []mqtt.Message{
		{Topic: "godaikin/ac1/set/mode", Payload: []byte("heat")},
		{Topic: "godaikin/ac1/set/fan_mode", Payload: []byte("turbo")},
		{Topic: "godaikin/ac1/set/status_led", Payload: []byte("on")},
		{Topic: "godaikin/ac1/set/temperature", Payload: []byte("warm")},
		{Topic: "godaikin/ac1/set/unknown_key", Payload: []byte("1")},
		{Topic: "godaikin/ac1/get/mode", Payload: []byte("cool")},
		{Topic: "godaikin/ghost/set/mode", Payload: []byte("cool")},
	}
	for _, msg := range bad {
		if err := c.handleMessage(context.Background(), msg); err != nil {
			t.Fatalf("%s: handleMessage = %v, want nil", msg.Topic, err)
		}
		select {
		case <-c.preempt:
		default:
			t.Fatalf("%s: preempt not set", msg.Topic)
		}
	}
	if got := api.patchCalls(); len(got) != 0 {
		t.Fatalf("malformed commands reached the API: %+v", got)
	}
}

func TestUnknownPresetClearsPresets(t *testing.T) {
	api := &fakeAPI{units: []daikin.Aircond{testUnit()}}
	c, _ := newTestController(api)
	_, _ = c.poll(context.Background())

	if err := c.handleMessage(context.Background(), mqtt.Message{Topic: "godaikin/ac1/set/preset_mode", Payload: []byte("party")}); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	patches := api.patchCalls()
	if len(patches) != 1 || len(patches[0].state) != len(daikin.PresetPatch(daikin.PresetNone)) {
		t.Fatalf("patches = %+v", patches)
	}
}

func TestPatchFailureIsFatal(t *testing.T) {
	sentinel := errors.New("patch rejected")
	api := &fakeAPI{units: []daikin.Aircond{testUnit()}, patchErr: sentinel}
	c, _ := newTestController(api)
	_, _ = c.poll(context.Background())

	err := c.handleMessage(context.Background(), mqtt.Message{Topic: "godaikin/ac1/set/mode", Payload: []byte("off")})
	if !errors.Is(err, sentinel) {
		t.Fatalf("handleMessage = %v, want patch error", err)
	}
	if len(c.preempt) != 1 {
		t.Fatalf("preempt not set after failed patch")
	}
}

func TestPreemptCollapses(t *testing.T) {
	c, _ := newTestController(&fakeAPI{})
	c.Preempt()
	c.Preempt()
	c.Preempt()
	if len(c.preempt) != 1 {
		t.Fatalf("pending preempts = %d, want 1", len(c.preempt))
	}

	start := time.Now()
	if err := c.wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("preempted wait took %s", time.Since(start))
	}
	if len(c.preempt) != 0 {
		t.Fatalf("preempt not cleared by wait")
	}
}

func TestPublishUnitOrderAndGating(t *testing.T) {
	c, bus := newTestController(&fakeAPI{})
	unit := testUnit()

	for i := 0; i < 2; i++ {
		if err := c.publishUnit(context.Background(), unit); err != nil {
			t.Fatalf("publishUnit: %v", err)
		}
	}

	got := bus.Published()
	want := []string{"godaikin/ac1/status", "godaikin/ac1/availability", "godaikin/ac1/sensor"}
	if len(got) != len(want) {
		t.Fatalf("published %d messages, want %d (second cycle must be suppressed)", len(got), len(want))
	}
	for i, topic := range want {
		if got[i].Topic != topic || got[i].QoS != 1 || !got[i].Retained {
			t.Fatalf("publish %d = %s qos=%d retained=%v", i, got[i].Topic, got[i].QoS, got[i].Retained)
		}
	}
	if string(got[1].Payload) != "online" {
		t.Fatalf("availability = %s", got[1].Payload)
	}
}

func TestReturningUnitRepublishes(t *testing.T) {
	api := &fakeAPI{units: []daikin.Aircond{testUnit()}}
	c, bus := newTestController(api)
	ctx := context.Background()

	for _, units := range [][]daikin.Aircond{{testUnit()}, {testUnit()}, nil, {testUnit()}} {
		api.mu.Lock()
		api.units = units
		api.mu.Unlock()
		if err := c.refresh(ctx); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}

	if got := len(bus.PublishedTo("godaikin/ac1/status")); got != 2 {
		t.Fatalf("status published %d times, want 2", got)
	}
	if got := len(bus.PublishedTo("godaikin/ac1/availability")); got != 2 {
		t.Fatalf("availability published %d times, want 2", got)
	}
}

func TestTurnedOffUnitReportsZeroEnergy(t *testing.T) {
	c, bus := newTestController(&fakeAPI{})
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.energy = energy.NewAccumulatorWithClock(func() time.Time { return clock })
	unit := testUnit()

	_ = c.publishUnit(context.Background(), unit)
	clock = clock.Add(time.Hour)
	_ = c.publishUnit(context.Background(), unit)

	var sensor SensorPayload
	_ = json.Unmarshal([]byte(lastPayload(bus, "godaikin/ac1/sensor")), &sensor)
	if sensor.Energy != 0.9 {
		t.Fatalf("energy after one hour at 900W = %v, want 0.9", sensor.Energy)
	}

	unit.ShadowState.SetOnOff = 0
	clock = clock.Add(time.Hour)
	_ = c.publishUnit(context.Background(), unit)
	_ = json.Unmarshal([]byte(lastPayload(bus, "godaikin/ac1/sensor")), &sensor)
	if sensor.Energy != 0 || sensor.Power != 0 {
		t.Fatalf("off unit sensor = %+v", sensor)
	}
	var status StatusPayload
	_ = json.Unmarshal([]byte(lastPayload(bus, "godaikin/ac1/status")), &status)
	if status.Mode != "off" {
		t.Fatalf("off unit mode = %q", status.Mode)
	}
}

type recordingSink struct {
	mu  sync.Mutex
	obs []Observation
	err error
}

func (s *recordingSink) Observe(_ context.Context, obs Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obs = append(s.obs, obs)
	return s.err
}

func TestSinkErrorsAreNotFatal(t *testing.T) {
	bus := mqtt.NewFakeClient()
	sink := &recordingSink{err: errors.New("influx down")}
	c := NewController(Config{Prefix: "godaikin"}, &fakeAPI{}, bus, publish.NewPublisher(bus, nil), energy.NewAccumulator(), nil, sink)

	if err := c.publishUnit(context.Background(), testUnit()); err != nil {
		t.Fatalf("publishUnit: %v", err)
	}
	if len(sink.obs) != 1 || sink.obs[0].Status.Mode != "cool" || sink.obs[0].Sensor.Power != 900 {
		t.Fatalf("observations = %+v", sink.obs)
	}
}

func TestSendCommand(t *testing.T) {
	api := &fakeAPI{units: []daikin.Aircond{testUnit()}}
	c, _ := newTestController(api)
	_, _ = c.poll(context.Background())

	if err := c.SendCommand(context.Background(), "ac1", KeyFanMode, "HIGH"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if len(c.preempt) != 1 {
		t.Fatalf("preempt not set")
	}
	var decodeErr *DecodeError
	if err := c.SendCommand(context.Background(), "ac1", KeyFanMode, "loud"); !errors.As(err, &decodeErr) {
		t.Fatalf("SendCommand(loud) = %v, want DecodeError", err)
	}

	status := c.Status()
	if status.Units != 1 || status.LastPoll.IsZero() {
		t.Fatalf("status = %+v", status)
	}
}

func TestViews(t *testing.T) {
	api := &fakeAPI{units: []daikin.Aircond{testUnit()}}
	c, _ := newTestController(api)
	if len(c.Views()) != 0 {
		t.Fatalf("views before first poll")
	}
	_, _ = c.poll(context.Background())

	views := c.Views()
	if len(views) != 1 || views[0].UnitID != "ac1" || views[0].Mode != "cool" || views[0].PowerWatts != 900 {
		t.Fatalf("views = %+v", views)
	}
	if _, ok := c.View("ghost"); ok {
		t.Fatalf("unexpected view for unknown unit")
	}
}
