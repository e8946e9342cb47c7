package mqtt

import (
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	// ClientID defaults to roomcontroller-<random>.
	ClientID string
}

func (o Options) broker() string {
	return fmt.Sprintf("tcp://%s:%d", o.Host, o.Port)
}

// Client is a Transport backed by paho. Subscriptions are tracked and restored
// on every reconnect.
type Client struct {
	client paho.Client

	subscriptions map[string]MessageHandler
	subMu         sync.RWMutex

	onConnect  []func()
	callbackMu sync.RWMutex

	onConnectionChange func(connected bool)
}

// Connect creates the client and starts connecting. If the broker is not
// reachable within the connect timeout Connect still returns the client, it
// keeps retrying in the background and restores subscriptions once connected.
func Connect(opts Options, onConnectionChange func(connected bool)) (*Client, error) {
	if opts.ClientID == "" {
		opts.ClientID = "roomcontroller-" + uuid.NewString()
	}
	c := &Client{
		subscriptions:      make(map[string]MessageHandler),
		onConnectionChange: onConnectionChange,
	}

	po := paho.NewClientOptions().
		AddBroker(opts.broker()).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(_ paho.Client) {
			c.handleConnect()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.handleDisconnect(err)
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	c.client = paho.NewClient(po)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logrus.WithField("broker", opts.broker()).Warnf("mqtt not connected after %s, retrying in background", connectTimeout)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return c, nil
}

func (c *Client) handleConnect() {
	logrus.Info("mqtt connected")
	if c.onConnectionChange != nil {
		c.onConnectionChange(true)
	}
	c.restoreSubscriptions()

	c.callbackMu.RLock()
	callbacks := append([]func(){}, c.onConnect...)
	c.callbackMu.RUnlock()
	for _, f := range callbacks {
		f()
	}
}

func (c *Client) handleDisconnect(err error) {
	logrus.WithField("err", err).Warn("mqtt connection lost")
	if c.onConnectionChange != nil {
		c.onConnectionChange(false)
	}
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for topic, handler := range c.subscriptions {
		err := c.subscribe(topic, handler)
		if err != nil {
			logrus.WithField("topic", topic).Error(err)
		}
	}
}

func (c *Client) subscribe(topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, defaultQoS, c.wrapHandler(handler))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %s", ErrSubscribeFailed, topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

func (c *Client) wrapHandler(handler MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		recoverHandler(handler, msg.Topic(), msg.Payload())
	}
}

// Subscribe tracks the subscription and subscribes right away if connected.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = handler
	c.subMu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	return c.subscribe(topic, handler)
}

func (c *Client) Publish(topic string, payload []byte) error {
	if err := validTopic(topic); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, defaultQoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %s", ErrPublishFailed, topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *Client) OnConnect(f func()) {
	c.callbackMu.Lock()
	c.onConnect = append(c.onConnect, f)
	c.callbackMu.Unlock()
	if c.IsConnected() {
		f()
	}
}

func (c *Client) Close() error {
	c.client.Disconnect(disconnectQuiesce)
	return nil
}
