package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/joshp123/godaikin/internal/bridge"
	"github.com/joshp123/godaikin/internal/config"
	"github.com/joshp123/godaikin/plugins/daikin"
)

func testObservation() bridge.Observation {
	unit := daikin.Aircond{
		ACName:    "Bedroom",
		ThingName: "Daikin_4C50DD423066",
		ShadowState: daikin.ShadowState{
			SetOnOff:      1,
			SetMode:       int(daikin.ModeCool),
			SetTemp:       24,
			StaIDRoomTemp: 27,
			StaODAirTemp:  31,
			StaODPwrCon:   850,
			EventType:     "connected",
		},
	}
	return bridge.Observation{
		Unit:   unit,
		Status: bridge.NewStatusPayload(unit),
		Sensor: bridge.NewSensorPayload(unit, 1.5),
		At:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSinksDisabled(t *testing.T) {
	if _, err := NewInflux(context.Background(), config.InfluxDBConfig{}, nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("NewInflux = %v, want ErrDisabled", err)
	}
	if _, err := NewNATSMirror(config.NATSConfig{}, nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("NewNATSMirror = %v, want ErrDisabled", err)
	}
}

func TestInfluxWritesEnergyPoint(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		query  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			data, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(data))
			query = r.URL.RawQuery
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	sink, err := NewInflux(context.Background(), config.InfluxDBConfig{
		Enabled: true,
		URL:     server.URL,
		Token:   "token",
		Org:     "home",
		Bucket:  "climate",
	}, nil)
	if err != nil {
		t.Fatalf("NewInflux: %v", err)
	}
	defer sink.Close()

	if err := sink.Observe(context.Background(), testObservation()); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	sink.Flush()

	// The batch is written from the client's own goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(bodies)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("writes = %d, want 1", len(bodies))
	}
	line := bodies[0]
	for _, want := range []string{"energy,", "unit=daikin_4c50dd423066", "mode=cool", "power_watts=850i", "energy_kwh=1.5"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
	if !strings.Contains(query, "bucket=climate") || !strings.Contains(query, "org=home") {
		t.Fatalf("query = %s", query)
	}
}

func TestInfluxLogsRejectedWritesAndCloses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid","message":"bad line"}`))
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	sink, err := NewInflux(context.Background(), config.InfluxDBConfig{
		Enabled: true,
		URL:     server.URL,
		Org:     "home",
		Bucket:  "climate",
	}, zap.New(core))
	if err != nil {
		t.Fatalf("NewInflux: %v", err)
	}

	if err := sink.Observe(context.Background(), testObservation()); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	sink.Flush()

	deadline := time.Now().Add(2 * time.Second)
	for logs.FilterMessage("influxdb write failed").Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if logs.FilterMessage("influxdb write failed").Len() == 0 {
		t.Fatalf("rejected write was not logged")
	}

	done := make(chan struct{})
	go func() {
		sink.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Close did not return")
	}
}

func TestInfluxUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewInflux(context.Background(), config.InfluxDBConfig{Enabled: true, URL: url, Bucket: "b"}, nil)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("NewInflux = %v, want ErrConnectionFailed", err)
	}
}

func startNATS(t *testing.T) *natssrv.Server {
	t.Helper()
	srv, err := natssrv.NewServer(&natssrv.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestNATSMirrorPublishesPayloads(t *testing.T) {
	srv := startNATS(t)

	sub, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()
	inbox, err := sub.SubscribeSync("godaikin.>")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	mirror, err := NewNATSMirror(config.NATSConfig{Enabled: true, URL: srv.ClientURL(), SubjectPrefix: "godaikin"}, nil)
	if err != nil {
		t.Fatalf("NewNATSMirror: %v", err)
	}
	defer mirror.Close()

	if err := mirror.Observe(context.Background(), testObservation()); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	got := map[string][]byte{}
	for i := 0; i < 2; i++ {
		msg, err := inbox.NextMsg(2 * time.Second)
		if err != nil {
			t.Fatalf("next message: %v", err)
		}
		got[msg.Subject] = msg.Data
	}

	var status bridge.StatusPayload
	if err := json.Unmarshal(got["godaikin.daikin_4c50dd423066.status"], &status); err != nil {
		t.Fatalf("decode status: %v (subjects %v)", err, got)
	}
	if status.Mode != "cool" || status.Temperature != 24 {
		t.Fatalf("status = %+v", status)
	}
	var sensor bridge.SensorPayload
	if err := json.Unmarshal(got["godaikin.daikin_4c50dd423066.sensor"], &sensor); err != nil {
		t.Fatalf("decode sensor: %v", err)
	}
	if sensor.Power != 850 || sensor.Energy != 1.5 {
		t.Fatalf("sensor = %+v", sensor)
	}
}
