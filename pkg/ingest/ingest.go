// Package ingest turns raw transport messages into stored device readings.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nergy-se/roomcontroller/pkg/device"
	"github.com/nergy-se/roomcontroller/pkg/metrics"
	"github.com/nergy-se/roomcontroller/pkg/state"
	"github.com/sirupsen/logrus"
)

var (
	ErrMalformedTopic = errors.New("malformed topic")
	ErrUnknownDevice  = state.ErrUnknownDevice
	ErrDecode         = errors.New("decode error")
)

// maxPayloadLog is how much of a rejected payload is kept for logging.
const maxPayloadLog = 256

// Error is returned by Handle for every rejected message.
type Error struct {
	Topic    string
	DeviceID string
	Payload  string
	Err      error
}

func (e *Error) Error() string {
	if e.DeviceID == "" {
		return fmt.Sprintf("topic %q: %s", e.Topic, e.Err)
	}
	return fmt.Sprintf("topic %q device %s: %s", e.Topic, e.DeviceID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason is a short label for e used in metrics.
func (e *Error) Reason() string {
	switch {
	case errors.Is(e.Err, ErrMalformedTopic):
		return "malformed_topic"
	case errors.Is(e.Err, ErrUnknownDevice):
		return "unknown_device"
	case errors.Is(e.Err, ErrDecode):
		return "decode"
	}
	return "store"
}

func (e *Error) Fields() logrus.Fields {
	return logrus.Fields{
		"topic":   e.Topic,
		"device":  e.DeviceID,
		"payload": e.Payload,
	}
}

func truncate(payload []byte) string {
	if len(payload) > maxPayloadLog {
		return string(payload[:maxPayloadLog]) + "..."
	}
	return string(payload)
}

type Store interface {
	Kind(deviceID string) device.Kind
	Update(deviceID string, reading device.Reading) error
}

type Ingestor struct {
	store   Store
	metrics *metrics.Metrics
}

func New(store Store, m *metrics.Metrics) *Ingestor {
	return &Ingestor{
		store:   store,
		metrics: m,
	}
}

// Handle decodes payload for the device named by topic and stores it. Nothing
// is stored when an error is returned.
func (i *Ingestor) Handle(topic string, payload []byte) error {
	_, err := i.handle(topic, payload)
	return err
}

func (i *Ingestor) handle(topic string, payload []byte) (device.Kind, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 2 {
		return device.KindUnknown, &Error{Topic: topic, Payload: truncate(payload), Err: ErrMalformedTopic}
	}
	deviceID := parts[1]

	kind := i.store.Kind(deviceID)
	if kind == device.KindUnknown {
		return kind, &Error{Topic: topic, DeviceID: deviceID, Payload: truncate(payload), Err: ErrUnknownDevice}
	}

	reading, err := device.Decode(kind, payload)
	if err != nil {
		return kind, &Error{Topic: topic, DeviceID: deviceID, Payload: truncate(payload), Err: fmt.Errorf("%w: %s: %w", ErrDecode, kind, err)}
	}

	err = i.store.Update(deviceID, reading)
	if err != nil {
		return kind, &Error{Topic: topic, DeviceID: deviceID, Payload: truncate(payload), Err: err}
	}
	return kind, nil
}

// handleAndLog is the log-and-drop boundary for Handle.
func (i *Ingestor) handleAndLog(msg Message) {
	kind, err := i.handle(msg.Topic, msg.Payload)
	if err == nil {
		i.metrics.Ingested(kind.String())
		logrus.WithFields(logrus.Fields{"topic": msg.Topic, "kind": kind}).Debug("stored reading")
		return
	}

	var ierr *Error
	if errors.As(err, &ierr) {
		i.metrics.Rejected(ierr.Reason())
		logrus.WithFields(ierr.Fields()).Warnf("dropping message: %s", ierr.Err)
		return
	}
	i.metrics.Rejected("store")
	logrus.WithField("topic", msg.Topic).Warnf("dropping message: %s", err)
}
