// Package publish serializes payloads onto the bus and suppresses repeats.
package publish

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joshp123/godaikin/internal/logging"
)

// Bus is the transport a Publisher writes to.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Publisher remembers the last payload it sent per topic. PublishChanged only
// transmits when the serialized payload differs from that record.
type Publisher struct {
	bus    Bus
	logger *zap.Logger

	mu   sync.Mutex
	last map[string][]byte
}

func NewPublisher(bus Bus, logger *zap.Logger) *Publisher {
	return &Publisher{
		bus:    bus,
		logger: logging.OrNop(logger).Named("publish"),
		last:   make(map[string][]byte),
	}
}

// Publish always transmits. The cache is neither consulted nor updated.
func (p *Publisher) Publish(topic string, payload any, qos byte, retain bool) error {
	data, err := Encode(payload)
	if err != nil {
		return err
	}
	return p.send(topic, data, qos, retain)
}

// PublishChanged transmits only when the payload for topic changed. It reports
// whether a transmission happened.
func (p *Publisher) PublishChanged(topic string, payload any, qos byte, retain bool) (bool, error) {
	data, err := Encode(payload)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.last[topic]; ok && bytes.Equal(prev, data) {
		publishTotal.WithLabelValues(resultSuppressed).Inc()
		return false, nil
	}
	// The cache only advances after the bus accepted the payload, so a failed
	// send is retried on the next cycle.
	if err := p.send(topic, data, qos, retain); err != nil {
		return false, err
	}
	p.last[topic] = data
	return true, nil
}

// Forget drops the cached payload so the next PublishChanged transmits.
func (p *Publisher) Forget(topic string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.last, topic)
}

func (p *Publisher) send(topic string, data []byte, qos byte, retain bool) error {
	if err := p.bus.Publish(topic, data, qos, retain); err != nil {
		publishTotal.WithLabelValues(resultError).Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	publishTotal.WithLabelValues(resultSent).Inc()
	p.logger.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(data)))
	return nil
}

// Encode turns a payload into bytes. Strings and byte slices pass through
// unchanged; anything else is JSON.
func Encode(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return append([]byte(nil), v...), nil
	case nil:
		return []byte{}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}
