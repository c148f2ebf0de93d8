// Package bridge runs the poll/publish loop between the GO DAIKIN cloud and
// the MQTT bus, and applies inbound commands.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/godaikin/internal/energy"
	"github.com/joshp123/godaikin/internal/logging"
	"github.com/joshp123/godaikin/internal/mqtt"
	"github.com/joshp123/godaikin/internal/publish"
	"github.com/joshp123/godaikin/plugins/daikin"
)

const (
	qosAtLeastOnce      byte = 1
	defaultRefreshEvery      = 60 * time.Second
)

// DeviceAPI is the cloud side of the bridge.
type DeviceAPI interface {
	ListDevices(ctx context.Context) ([]daikin.Aircond, error)
	PatchState(ctx context.Context, uniqueID, thingName, shadowKey string, state daikin.DesiredState) error
}

// Bus is the inbound half of the message bus. Outbound traffic goes through
// the publisher.
type Bus interface {
	Subscribe(topic string, qos byte) error
	Messages() <-chan mqtt.Message
}

// Observation is the per-unit result of one poll cycle.
type Observation struct {
	Unit   daikin.Aircond
	Status StatusPayload
	Sensor SensorPayload
	At     time.Time
}

// Sink receives every observation after it was published. Sink errors are
// logged and never stop the bridge.
type Sink interface {
	Observe(ctx context.Context, obs Observation) error
}

type Config struct {
	Prefix          string
	DiscoveryPrefix string
	RefreshInterval time.Duration
}

// Status is a point-in-time view of the controller.
type Status struct {
	State    State
	Units    int
	LastPoll time.Time
}

// Controller owns the poll loop and the command loop.
type Controller struct {
	cfg       Config
	topics    Topics
	api       DeviceAPI
	bus       Bus
	publisher *publish.Publisher
	energy    *energy.Accumulator
	sinks     []Sink
	logger    *zap.Logger
	now       func() time.Time

	// preempt holds at most one pending wake-up.
	preempt chan struct{}
	state   atomic.Int32

	mu       sync.RWMutex
	units    []daikin.Aircond
	byID     map[string]daikin.Aircond
	lastPoll time.Time
}

func NewController(cfg Config, api DeviceAPI, bus Bus, publisher *publish.Publisher, acc *energy.Accumulator, logger *zap.Logger, sinks ...Sink) *Controller {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshEvery
	}
	c := &Controller{
		cfg:       cfg,
		topics:    NewTopics(cfg.Prefix, cfg.DiscoveryPrefix),
		api:       api,
		bus:       bus,
		publisher: publisher,
		energy:    acc,
		sinks:     sinks,
		logger:    logging.OrNop(logger).Named("bridge"),
		now:       time.Now,
		preempt:   make(chan struct{}, 1),
		byID:      make(map[string]daikin.Aircond),
	}
	c.setState(StateStarting)
	return c
}

func (c *Controller) Topics() Topics { return c.topics }

// Run announces the bridge, publishes discovery and then polls until ctx is
// cancelled or either loop fails. The offline announcement is always attempted
// once the online one went out. A cancelled ctx is a clean exit.
func (c *Controller) Run(ctx context.Context) (err error) {
	c.setState(StateStarting)
	if err := c.publisher.Publish(c.topics.BridgeAvailability(), availabilityOnline, qosAtLeastOnce, true); err != nil {
		c.setState(StateShuttingDown)
		return fmt.Errorf("announce online: %w", err)
	}
	c.logger.Info("bridge online", zap.String("topic", c.topics.BridgeAvailability()))

	defer func() {
		c.setState(StateShuttingDown)
		if offErr := c.publisher.Publish(c.topics.BridgeAvailability(), availabilityOffline, qosAtLeastOnce, true); offErr != nil {
			c.logger.Error("announce offline failed", zap.Error(offErr))
			err = errors.Join(err, fmt.Errorf("announce offline: %w", offErr))
			return
		}
		c.logger.Info("bridge offline")
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(c.recovered("poll", func() error { return c.pollLoop(gctx) }))
	g.Go(c.recovered("messages", func() error { return c.messageLoop(gctx) }))

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		c.logger.Error("bridge stopped", zap.Error(err))
	}
	return err
}

func (c *Controller) recovered(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s loop panic: %v", name, r)
			}
		}()
		return fn()
	}
}

func (c *Controller) pollLoop(ctx context.Context) error {
	c.setState(StateAnnouncing)
	if err := c.publishDiscovery(ctx); err != nil {
		return err
	}
	c.setState(StateSteady)

	for {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		if err := c.wait(ctx); err != nil {
			return err
		}
	}
}

// wait returns when the refresh interval elapses or a preempt arrives. Taking
// the preempt from the channel clears it.
func (c *Controller) wait(ctx context.Context) error {
	timer := time.NewTimer(c.cfg.RefreshInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	case <-c.preempt:
		preemptionsTotal.Inc()
		c.logger.Debug("poll preempted")
	}
	return nil
}

// Preempt requests an immediate poll. Repeated calls before the loop wakes
// collapse into one.
func (c *Controller) Preempt() {
	select {
	case c.preempt <- struct{}{}:
	default:
	}
}

func (c *Controller) publishDiscovery(ctx context.Context) error {
	units, err := c.poll(ctx)
	if err != nil {
		return err
	}
	for _, unit := range units {
		for _, msg := range c.topics.DiscoveryMessages(unit) {
			if err := c.publisher.Publish(msg.Topic, msg.Payload, qosAtLeastOnce, true); err != nil {
				return err
			}
		}
	}
	c.logger.Info("discovery published", zap.Int("units", len(units)))
	return nil
}

func (c *Controller) poll(ctx context.Context) ([]daikin.Aircond, error) {
	units, err := c.api.ListDevices(ctx)
	if err != nil {
		pollsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list devices: %w", err)
	}
	pollsTotal.WithLabelValues("ok").Inc()

	now := c.now()
	byID := make(map[string]daikin.Aircond, len(units))
	for _, unit := range units {
		byID[unit.UniqueID()] = unit
	}
	c.mu.Lock()
	previous := c.byID
	c.units = units
	c.byID = byID
	c.lastPoll = now
	c.mu.Unlock()
	lastPollGauge.Set(float64(now.Unix()))

	// A unit that comes back republishes in full.
	for id := range previous {
		if _, ok := byID[id]; !ok {
			c.logger.Info("unit disappeared", zap.String("unit", id))
			topics := c.topics.Unit(id)
			for _, topic := range []string{topics.Status, topics.Availability, topics.Sensor} {
				c.publisher.Forget(topic)
			}
		}
	}
	return units, nil
}

func (c *Controller) refresh(ctx context.Context) error {
	units, err := c.poll(ctx)
	if err != nil {
		return err
	}
	c.logger.Debug("refreshing state", zap.Int("units", len(units)))
	for _, unit := range units {
		if err := c.publishUnit(ctx, unit); err != nil {
			return err
		}
	}
	return nil
}

// publishUnit publishes status before sensor. The energy total is reset before
// it is accumulated so a unit that just turned off reports zero at once.
func (c *Controller) publishUnit(ctx context.Context, unit daikin.Aircond) error {
	topics := c.topics.Unit(unit.UniqueID())

	status := NewStatusPayload(unit)
	if _, err := c.publisher.PublishChanged(topics.Status, status, qosAtLeastOnce, true); err != nil {
		return err
	}
	if _, err := c.publisher.PublishChanged(topics.Availability, Availability(unit.IsConnected()), qosAtLeastOnce, true); err != nil {
		return err
	}

	c.energy.ResetIfOff(unit)
	kWh := c.energy.Accumulate(unit)
	sensor := NewSensorPayload(unit, kWh)
	if _, err := c.publisher.PublishChanged(topics.Sensor, sensor, qosAtLeastOnce, true); err != nil {
		return err
	}

	obs := Observation{Unit: unit, Status: status, Sensor: sensor, At: c.now()}
	for _, sink := range c.sinks {
		if err := sink.Observe(ctx, obs); err != nil {
			c.logger.Warn("sink failed", zap.String("unit", unit.UniqueID()), zap.Error(err))
		}
	}
	return nil
}

func (c *Controller) messageLoop(ctx context.Context) error {
	if err := c.bus.Subscribe(c.topics.CommandFilter(), qosAtLeastOnce); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.topics.CommandFilter(), err)
	}
	messages := c.bus.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("message stream closed")
			}
			if err := c.handleMessage(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// handleMessage applies one command. Decode errors are logged and dropped;
// anything else is fatal. The preempt is set either way.
func (c *Controller) handleMessage(ctx context.Context, msg mqtt.Message) error {
	defer c.Preempt()

	unitID, key, err := c.topics.ParseCommand(msg.Topic)
	if err == nil {
		err = c.dispatch(ctx, unitID, key, string(msg.Payload))
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		c.logger.Warn("ignoring command", zap.String("topic", msg.Topic), zap.String("reason", decodeErr.Reason))
		return nil
	}
	return err
}

// SendCommand applies a command from outside the bus and wakes the poll loop.
func (c *Controller) SendCommand(ctx context.Context, unitID, key, value string) error {
	defer c.Preempt()
	return c.dispatch(ctx, unitID, key, value)
}

func (c *Controller) dispatch(ctx context.Context, unitID, key, value string) error {
	topic := c.topics.Command(unitID, key)
	logger := c.logger.With(zap.String("unit", unitID), zap.String("key", key))

	unit, ok := c.Unit(unitID)
	if !ok {
		commandsTotal.WithLabelValues(key, "rejected").Inc()
		return &DecodeError{Topic: topic, Reason: "unknown unit " + unitID}
	}

	patch, err := decodePatch(topic, key, value, logger)
	if err != nil {
		commandsTotal.WithLabelValues(key, "rejected").Inc()
		return err
	}

	logger.Info("applying command", zap.String("value", value))
	if err := c.api.PatchState(ctx, unit.UniqueID(), unit.ThingName, unit.ShadowState.Key, patch); err != nil {
		commandsTotal.WithLabelValues(key, "error").Inc()
		return fmt.Errorf("patch %s: %w", unitID, err)
	}
	commandsTotal.WithLabelValues(key, "ok").Inc()
	return nil
}

// Units returns the units from the last poll.
func (c *Controller) Units() []daikin.Aircond {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]daikin.Aircond(nil), c.units...)
}

func (c *Controller) Unit(uniqueID string) (daikin.Aircond, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	unit, ok := c.byID[uniqueID]
	return unit, ok
}

// Views summarizes the units from the last poll.
func (c *Controller) Views() []UnitView {
	units := c.Units()
	views := make([]UnitView, 0, len(units))
	for _, unit := range units {
		views = append(views, NewUnitView(unit, c.energy.Get(unit.UniqueID())))
	}
	return views
}

func (c *Controller) View(uniqueID string) (UnitView, bool) {
	unit, ok := c.Unit(uniqueID)
	if !ok {
		return UnitView{}, false
	}
	return NewUnitView(unit, c.energy.Get(uniqueID)), true
}

func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		State:    c.State(),
		Units:    len(c.units),
		LastPoll: c.lastPoll,
	}
}
