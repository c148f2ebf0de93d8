package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/joshp123/godaikin/internal/bridge"
	"github.com/joshp123/godaikin/internal/config"
	"github.com/joshp123/godaikin/internal/logging"
	"github.com/joshp123/godaikin/internal/publish"
)

const natsConnectTimeout = 5 * time.Second

// NATSMirror republishes each unit's status and sensor payloads on
// <prefix>.<unit>.status and <prefix>.<unit>.sensor.
type NATSMirror struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

func NewNATSMirror(cfg config.NATSConfig, logger *zap.Logger) (*NATSMirror, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	logger = logging.OrNop(logger).Named("nats")
	conn, err := nats.Connect(cfg.URL,
		nats.Name("godaikin"),
		nats.Timeout(natsConnectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: nats connect %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = config.DefaultNATSPrefix
	}
	return &NATSMirror{conn: conn, prefix: prefix, logger: logger}, nil
}

func (m *NATSMirror) Subject(unitID, kind string) string {
	return m.prefix + "." + unitID + "." + kind
}

func (m *NATSMirror) Observe(_ context.Context, obs bridge.Observation) error {
	uid := obs.Unit.UniqueID()
	for kind, payload := range map[string]any{"status": obs.Status, "sensor": obs.Sensor} {
		data, err := publish.Encode(payload)
		if err != nil {
			return err
		}
		if err := m.conn.Publish(m.Subject(uid, kind), data); err != nil {
			return fmt.Errorf("nats publish %s: %w", m.Subject(uid, kind), err)
		}
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (m *NATSMirror) Close() error {
	return m.conn.Drain()
}
