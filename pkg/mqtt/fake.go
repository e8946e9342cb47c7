package mqtt

import (
	"strings"
	"sync"
)

type Message struct {
	Topic   string
	Payload string
}

// FakeTransport records published messages for test assertions. It is safe for
// concurrent use.
type FakeTransport struct {
	mu            sync.Mutex
	published     []Message
	subscriptions map[string]MessageHandler
	onConnect     []func()
	connected     bool
	closed        bool

	// PublishError, if set, is returned by Publish for topics it returns true for.
	PublishError func(topic string) error
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		subscriptions: make(map[string]MessageHandler),
		connected:     true,
	}
}

func (f *FakeTransport) Subscribe(topic string, handler MessageHandler) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[topic] = handler
	return nil
}

func (f *FakeTransport) Publish(topic string, payload []byte) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	if f.PublishError != nil {
		if err := f.PublishError(topic); err != nil {
			return err
		}
	}
	f.published = append(f.published, Message{Topic: topic, Payload: string(payload)})
	return nil
}

func (f *FakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeTransport) OnConnect(fn func()) {
	f.mu.Lock()
	f.onConnect = append(f.onConnect, fn)
	connected := f.connected
	f.mu.Unlock()
	if connected {
		fn()
	}
}

func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

// Deliver calls the handler subscribed to exactly topic, if any, and reports
// whether there was one.
func (f *FakeTransport) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	handler, ok := f.subscriptions[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	recoverHandler(handler, topic, payload)
	return true
}

// Disconnect simulates a lost connection.
func (f *FakeTransport) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

// Reconnect simulates a reconnect and runs the OnConnect callbacks.
func (f *FakeTransport) Reconnect() {
	f.mu.Lock()
	f.connected = true
	callbacks := append([]func(){}, f.onConnect...)
	f.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func (f *FakeTransport) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	topics := make([]string, 0, len(f.subscriptions))
	for t := range f.subscriptions {
		topics = append(topics, t)
	}
	return topics
}

// Published returns all recorded messages, optionally only those whose topic
// has prefix.
func (f *FakeTransport) Published(prefix string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []Message
	for _, m := range f.published {
		if strings.HasPrefix(m.Topic, prefix) {
			result = append(result, m)
		}
	}
	return result
}

func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = nil
}
