package mqtt

import (
	"sync"
)

// Published is one recorded publish.
type Published struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// FakeClient records publishes and lets tests inject inbound messages.
// It is safe for concurrent use.
type FakeClient struct {
	mu            sync.Mutex
	published     []Published
	subscriptions map[string]byte

	// PublishError, if set, is returned by Publish.
	PublishError error
	// SubscribeError, if set, is returned by Subscribe.
	SubscribeError error

	messages chan Message
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		subscriptions: make(map[string]byte),
		messages:      make(chan Message, messageBuffer),
	}
}

func (f *FakeClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.published = append(f.published, Published{
		Topic:    topic,
		Payload:  append([]byte(nil), payload...),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (f *FakeClient) Subscribe(topic string, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.subscriptions[topic] = qos
	return nil
}

func (f *FakeClient) Messages() <-chan Message {
	return f.messages
}

// Inject queues an inbound message.
func (f *FakeClient) Inject(topic, payload string) {
	f.messages <- Message{Topic: topic, Payload: []byte(payload)}
}

// Published returns a copy of every recorded publish.
func (f *FakeClient) Published() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Published(nil), f.published...)
}

// PublishedTo returns the recorded publishes for one topic.
func (f *FakeClient) PublishedTo(topic string) []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Published
	for _, p := range f.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Subscriptions returns the registered topic filters.
func (f *FakeClient) Subscriptions() map[string]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]byte, len(f.subscriptions))
	for k, v := range f.subscriptions {
		out[k] = v
	}
	return out
}

// Reset clears recorded publishes.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = nil
}
