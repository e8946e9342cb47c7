// Package device holds the decoded telemetry of zone sensors and radiator thermostats.
package device

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the device kind a configured id was classified as.
type Kind int

const (
	KindUnknown Kind = iota
	KindSensor
	KindThermostat
)

func (k Kind) String() string {
	switch k {
	case KindSensor:
		return "sensor"
	case KindThermostat:
		return "thermostat"
	}
	return "unknown"
}

// Reading is either a SensorReading or a ThermostatReading.
type Reading interface {
	Kind() Kind
}

var ErrMissingField = errors.New("missing required field")

// Decode decodes a telemetry payload for the given device kind.
func Decode(kind Kind, payload []byte) (Reading, error) {
	switch kind {
	case KindSensor:
		return DecodeSensor(payload)
	case KindThermostat:
		return DecodeThermostat(payload)
	}
	return nil, fmt.Errorf("cannot decode payload for device kind %s", kind)
}

// decodeStrict unmarshals payload into v after checking that every required
// key is present and not null. Unknown keys are ignored since zigbee2mqtt adds
// fields like last_seen depending on its own configuration.
func decodeStrict(payload []byte, v any, required ...string) error {
	var fields map[string]json.RawMessage
	err := json.Unmarshal(payload, &fields)
	if err != nil {
		return err
	}
	for _, name := range required {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}
	return json.Unmarshal(payload, v)
}
