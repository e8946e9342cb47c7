// Package mqtt is the message transport of the room controller. Client talks
// to an external broker, Broker runs one in process and uses its inline client.
package mqtt

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected    = errors.New("mqtt not connected")
	ErrConnectFailed   = errors.New("mqtt connect failed")
	ErrPublishFailed   = errors.New("mqtt publish failed")
	ErrSubscribeFailed = errors.New("mqtt subscribe failed")
	ErrInvalidTopic    = errors.New("invalid mqtt topic")
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds
	defaultQoS        = 0
)

// MessageHandler receives every message on a subscribed topic. It must not block.
type MessageHandler func(topic string, payload []byte)

// Transport is the publish/subscribe capability the controller runs on.
type Transport interface {
	// Subscribe registers handler for topic. Subscriptions survive reconnects.
	Subscribe(topic string, handler MessageHandler) error
	Publish(topic string, payload []byte) error
	IsConnected() bool
	// OnConnect registers f to run after every (re)connect, once subscriptions
	// are restored.
	OnConnect(f func())
	Close() error
}

// Topics builds zigbee2mqtt style topic names.
type Topics struct {
	Namespace string
}

// Device is the topic a device publishes its state on.
func (t Topics) Device(deviceID string) string {
	return fmt.Sprintf("%s/%s", t.Namespace, deviceID)
}

// Set is the topic a device accepts commands on.
func (t Topics) Set(deviceID string) string {
	return fmt.Sprintf("%s/%s/set", t.Namespace, deviceID)
}

func validTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	return nil
}

// recoverHandler calls handler and logs instead of crashing if it panics.
func recoverHandler(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"topic": topic,
				"panic": r,
			}).Error("mqtt handler panic recovered")
		}
	}()
	handler(topic, payload)
}
