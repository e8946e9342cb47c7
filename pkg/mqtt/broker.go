package mqtt

import (
	"fmt"
	"sync"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/sirupsen/logrus"
)

// Broker runs an MQTT server in process. zigbee2mqtt connects to it over TCP
// and the controller uses the inline client, which is always connected.
type Broker struct {
	server *mqttv2.Server

	mu     sync.Mutex
	subIDs map[string]int
	nextID int
	closed bool
}

// StartBroker listens on address and starts serving.
func StartBroker(address string) (*Broker, error) {
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
	})

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: address})
	err := server.AddListener(tcp)
	if err != nil {
		return nil, fmt.Errorf("error adding mqtt listener: %w", err)
	}

	err = server.Serve()
	if err != nil {
		return nil, fmt.Errorf("error starting mqtt server: %w", err)
	}
	logrus.WithField("address", address).Info("embedded mqtt broker started")

	return &Broker{
		server: server,
		subIDs: make(map[string]int),
		nextID: 1,
	}, nil
}

func (b *Broker) Subscribe(topic string, handler MessageHandler) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	b.mu.Lock()
	id, ok := b.subIDs[topic]
	if !ok {
		id = b.nextID
		b.nextID++
		b.subIDs[topic] = id
	}
	b.mu.Unlock()

	err := b.server.Subscribe(topic, id, func(cl *mqttv2.Client, sub packets.Subscription, pk packets.Packet) {
		recoverHandler(handler, pk.TopicName, pk.Payload)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	if !b.IsConnected() {
		return ErrNotConnected
	}
	err := b.server.Publish(topic, payload, false, defaultQoS)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// OnConnect runs f right away since the inline client never disconnects.
func (b *Broker) OnConnect(f func()) {
	if b.IsConnected() {
		f()
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return b.server.Close()
}
