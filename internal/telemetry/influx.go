// Package telemetry holds optional bridge sinks that copy every poll
// observation to a time-series store or a second message bus.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/joshp123/godaikin/internal/bridge"
	"github.com/joshp123/godaikin/internal/config"
	"github.com/joshp123/godaikin/internal/logging"
)

const (
	influxPingTimeout   = 5 * time.Second
	influxBatchSize     = 50
	influxFlushInterval = 10_000 // milliseconds
	measurementEnergy   = "energy"
)

var (
	ErrDisabled         = errors.New("telemetry sink disabled")
	ErrConnectionFailed = errors.New("telemetry connection failed")
)

// Influx writes one point per unit and poll. Writes are batched and never block
// the poll loop; write failures surface on the logger.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *zap.Logger
}

func NewInflux(ctx context.Context, cfg config.InfluxDBConfig, logger *zap.Logger) (*Influx, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(influxBatchSize).
			SetFlushInterval(influxFlushInterval))

	pingCtx, cancel := context.WithTimeout(ctx, influxPingTimeout)
	defer cancel()
	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb not healthy", ErrConnectionFailed)
	}

	i := &Influx{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:   logging.OrNop(logger).Named("influxdb"),
	}
	// Errors creates its channel lazily; take it here so Close cannot race it.
	errorsCh := i.writeAPI.Errors()
	go i.drainErrors(errorsCh)
	return i, nil
}

func (i *Influx) drainErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		i.logger.Warn("influxdb write failed", zap.Error(err))
	}
}

func (i *Influx) Observe(_ context.Context, obs bridge.Observation) error {
	i.writeAPI.WritePoint(energyPoint(obs))
	return nil
}

func energyPoint(obs bridge.Observation) *write.Point {
	return write.NewPoint(measurementEnergy,
		map[string]string{
			"unit":      obs.Unit.UniqueID(),
			"unit_name": obs.Unit.ACName,
			"mode":      obs.Status.Mode,
		},
		map[string]any{
			"power_watts":          obs.Sensor.Power,
			"energy_kwh":           obs.Sensor.Energy,
			"indoor_temp_celsius":  obs.Sensor.IndoorTemperature,
			"outdoor_temp_celsius": obs.Sensor.OutdoorTemperature,
			"setpoint_celsius":     obs.Status.Temperature,
		},
		obs.At)
}

// Flush forces pending points out.
func (i *Influx) Flush() {
	i.writeAPI.Flush()
}

func (i *Influx) Close() {
	i.writeAPI.Flush()
	i.client.Close()
}
