// Package mqtt wraps the paho client with the connection semantics the bridge
// relies on: a retained last-will, resubscription after reconnect and a single
// ordered inbound message channel.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshp123/godaikin/internal/logging"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	messageBuffer            = 64
)

var (
	ErrNotConnected = errors.New("mqtt: not connected")
	ErrClosed       = errors.New("mqtt: client closed")
)

// Message is one inbound publish.
type Message struct {
	Topic   string
	Payload []byte
}

// Will is the last-will message the broker publishes if the session drops.
type Will struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

type Config struct {
	BrokerURL string
	// ClientID is used as a prefix; a random suffix keeps restarts from
	// kicking a still-registered session.
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	Will           *Will
}

// Client is a connected broker session.
type Client struct {
	cfg    Config
	client paho.Client
	logger *zap.Logger

	mu            sync.Mutex
	subscriptions map[string]byte
	closed        bool

	messages chan Message
	done     chan struct{}
}

// NewClient builds a client; Connect must be called before use.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	c := &Client{
		cfg:           cfg,
		logger:        logging.OrNop(logger).Named("mqtt"),
		subscriptions: make(map[string]byte),
		messages:      make(chan Message, messageBuffer),
		done:          make(chan struct{}),
	}
	c.client = paho.NewClient(c.options())
	return c
}

func (c *Client) options() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(c.cfg.BrokerURL)
	opts.SetClientID(clientID(c.cfg.ClientID))
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	if c.cfg.KeepAlive > 0 {
		opts.SetKeepAlive(c.cfg.KeepAlive)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	// Initial connection failures are reported to the caller.
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	opts.SetOrderMatters(true)
	if w := c.cfg.Will; w != nil {
		opts.SetWill(w.Topic, w.Payload, w.QoS, w.Retained)
	}
	opts.SetDefaultPublishHandler(c.handle)
	opts.SetOnConnectHandler(func(paho.Client) {
		c.logger.Info("mqtt connected", zap.String("broker", c.cfg.BrokerURL))
		c.resubscribe()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.logger.Warn("mqtt connection lost", zap.Error(err))
	})
	return opts
}

func clientID(prefix string) string {
	suffix := uuid.NewString()[:8]
	if prefix == "" {
		return "godaikin-" + suffix
	}
	return prefix + "-" + suffix
}

// Connect opens the broker session.
func (c *Client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	token := c.client.Connect()
	if err := waitToken(ctx, token, c.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", c.cfg.BrokerURL, err)
	}
	return nil
}

// Subscribe registers a topic filter. The filter is restored on every reconnect.
func (c *Client) Subscribe(topic string, qos byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.subscriptions[topic] = qos
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := c.client.Subscribe(topic, qos, nil)
	if err := waitToken(context.Background(), token, c.cfg.PublishTimeout); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	filters := make(map[string]byte, len(c.subscriptions))
	for topic, qos := range c.subscriptions {
		filters[topic] = qos
	}
	c.mu.Unlock()
	if len(filters) == 0 {
		return
	}
	token := c.client.SubscribeMultiple(filters, nil)
	if err := waitToken(context.Background(), token, c.cfg.PublishTimeout); err != nil {
		c.logger.Error("mqtt resubscribe failed", zap.Error(err))
	}
}

// Publish sends a payload and waits for the broker to acknowledge it (QoS>0)
// or for the write to complete (QoS 0).
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, qos, retained, payload)
	if err := waitToken(context.Background(), token, c.cfg.PublishTimeout); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Messages delivers inbound publishes in arrival order.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Close disconnects and stops delivering messages. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	if c.client.IsConnected() {
		c.client.Disconnect(defaultDisconnectQuiesce)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) handle(_ paho.Client, msg paho.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())
	// Runs on paho's router goroutine, so it must never block.
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.messages <- Message{Topic: msg.Topic(), Payload: payload}:
	default:
		c.logger.Warn("mqtt message dropped, queue full", zap.String("topic", msg.Topic()))
	}
}

func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.New("timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}
