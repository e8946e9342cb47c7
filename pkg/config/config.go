package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nergy-se/roomcontroller/pkg/device"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// TRVTempControl selects which temperature the TRVs in a room regulate on.
type TRVTempControl string

var (
	// TRV only uses the external sensor, falls back to internal sensor if the external one is not available.
	TRVTempControlExternalSensor = TRVTempControl("ExternalSensor")
	// TRV uses both the external and the internal sensor (auto offset).
	TRVTempControlMixed = TRVTempControl("Mixed")
	// TRV only uses its internal sensor.
	TRVTempControlInternalSensor = TRVTempControl("InternalSensor")
)

func (t TRVTempControl) valid() bool {
	switch t {
	case TRVTempControlExternalSensor, TRVTempControlMixed, TRVTempControlInternalSensor:
		return true
	}
	return false
}

// Aggregation decides how rooms sharing one flow target are combined.
type Aggregation string

var (
	AggregationMin = Aggregation("min")
	AggregationMax = Aggregation("max")
)

const (
	DefaultNamespace         = "zigbee2mqtt"
	DefaultMQTTHost          = "localhost"
	DefaultMQTTPort          = 1883
	DefaultControlPeriod     = 30 * time.Second
	DefaultExternalPeriod    = 5 * time.Minute
	DefaultDemandThreshold   = 0.75
	DefaultMaxAdjustment     = 2.0
	DefaultHeatOffAdjustment = -40.0
	DefaultFlowTarget        = "heatsource/flow_temperature/set"
	DefaultBaseFlow          = 35.0
)

type Sensor struct {
	DeviceID string `yaml:"device_id"`
}

type Thermostat struct {
	DeviceID string `yaml:"device_id"`
}

type Room struct {
	Name          string       `yaml:"name"`
	Sensor        Sensor       `yaml:"sensor"`
	Thermostats   []Thermostat `yaml:"thermostats"`
	LoadBalancing bool         `yaml:"load_balancing"` // enables load balancing between TRVs in the room
	// applies to all TRVs in the room
	TRVTempControl TRVTempControl `yaml:"trv_temp_control"`
	// FlowTarget overrides Control.FlowTarget for rooms on a separate heating circuit.
	FlowTarget string `yaml:"flow_target,omitempty"`
}

func (r Room) ThermostatIDs() []string {
	ids := make([]string, 0, len(r.Thermostats))
	for _, t := range r.Thermostats {
		ids = append(ids, t.DeviceID)
	}
	return ids
}

type Control struct {
	Period time.Duration `yaml:"period"`
	// DemandThreshold is the demand fraction above which the flow is adjusted.
	DemandThreshold float64 `yaml:"demand_threshold"`
	// MaxAdjustment caps a single adjustment in degrees celsius.
	MaxAdjustment float64 `yaml:"max_adjustment"`
	// HeatOffAdjustment is used when no thermostat requires heat.
	HeatOffAdjustment float64     `yaml:"heat_off_adjustment"`
	FlowTarget        string      `yaml:"flow_target"`
	Aggregation       Aggregation `yaml:"aggregation"`
	// StaleAfter treats readings older than this as missing. 0 disables.
	StaleAfter time.Duration `yaml:"stale_after"`
}

type ExternalSensor struct {
	Period time.Duration `yaml:"period"`
}

type FlowSourceType string

var (
	FlowSourceStatic = FlowSourceType("static")
	FlowSourceModbus = FlowSourceType("modbus")
	FlowSourceMBus   = FlowSourceType("mbus")
)

type FlowSource struct {
	Type FlowSourceType `yaml:"type"`

	// static
	Temperature float64 `yaml:"temperature"`

	// modbus
	Address  string  `yaml:"address"`
	SlaveID  int     `yaml:"slave_id"`
	Register uint16  `yaml:"register"`
	Scale    float64 `yaml:"scale"`

	// mbus
	Device         string `yaml:"device"`
	PrimaryAddress int    `yaml:"primary_address"`
	Record         int    `yaml:"record"`
}

type Config struct {
	MQTTHost       string         `yaml:"mqtt_host"`
	MQTTPort       int            `yaml:"mqtt_port"`
	Namespace      string         `yaml:"namespace"`
	Rooms          []Room         `yaml:"rooms"`
	Control        Control        `yaml:"control"`
	ExternalSensor ExternalSensor `yaml:"external_sensor"`
	FlowSource     FlowSource     `yaml:"flow_source"`
}

// Load reads, defaults and validates the room config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	c := &Config{}
	err := yaml.Unmarshal(b, c)
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	c.FillDefaults()
	return c, c.Validate()
}

func (c *Config) FillDefaults() {
	if c.MQTTHost == "" {
		c.MQTTHost = DefaultMQTTHost
	}
	if c.MQTTPort == 0 {
		c.MQTTPort = DefaultMQTTPort
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Control.Period == 0 {
		c.Control.Period = DefaultControlPeriod
	}
	if c.Control.DemandThreshold == 0 {
		c.Control.DemandThreshold = DefaultDemandThreshold
	}
	if c.Control.MaxAdjustment == 0 {
		c.Control.MaxAdjustment = DefaultMaxAdjustment
	}
	if c.Control.HeatOffAdjustment == 0 {
		c.Control.HeatOffAdjustment = DefaultHeatOffAdjustment
	}
	if c.Control.FlowTarget == "" {
		c.Control.FlowTarget = DefaultFlowTarget
	}
	if c.Control.Aggregation == "" {
		c.Control.Aggregation = AggregationMin
	}
	if c.ExternalSensor.Period == 0 {
		c.ExternalSensor.Period = DefaultExternalPeriod
	}
	if c.FlowSource.Type == "" {
		c.FlowSource.Type = FlowSourceStatic
	}
	if c.FlowSource.Type == FlowSourceStatic && c.FlowSource.Temperature == 0 {
		c.FlowSource.Temperature = DefaultBaseFlow
	}
	if c.FlowSource.Scale == 0 {
		c.FlowSource.Scale = 100
	}
	for i := range c.Rooms {
		if c.Rooms[i].TRVTempControl == "" {
			c.Rooms[i].TRVTempControl = TRVTempControlExternalSensor
		}
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	if len(c.Rooms) == 0 {
		return invalid("at least one room is required")
	}

	names := make(map[string]bool)
	kinds := make(map[string]device.Kind)
	for _, room := range c.Rooms {
		if room.Name == "" {
			return invalid("room name is required")
		}
		if names[room.Name] {
			return invalid("duplicate room name %q", room.Name)
		}
		names[room.Name] = true

		if room.Sensor.DeviceID == "" {
			return invalid("room %q: sensor device_id is required", room.Name)
		}
		if kinds[room.Sensor.DeviceID] == device.KindThermostat {
			return invalid("room %q: %s is configured both as sensor and thermostat", room.Name, room.Sensor.DeviceID)
		}
		kinds[room.Sensor.DeviceID] = device.KindSensor

		if len(room.Thermostats) == 0 {
			return invalid("room %q: at least one thermostat is required", room.Name)
		}
		for _, t := range room.Thermostats {
			if t.DeviceID == "" {
				return invalid("room %q: thermostat device_id is required", room.Name)
			}
			switch kinds[t.DeviceID] {
			case device.KindSensor:
				return invalid("room %q: %s is configured both as sensor and thermostat", room.Name, t.DeviceID)
			case device.KindThermostat:
				return invalid("room %q: thermostat %s is already used", room.Name, t.DeviceID)
			}
			kinds[t.DeviceID] = device.KindThermostat
		}

		if !room.TRVTempControl.valid() {
			return invalid("room %q: unknown trv_temp_control %q", room.Name, room.TRVTempControl)
		}
	}

	ctl := c.Control
	if ctl.DemandThreshold <= 0 || ctl.DemandThreshold >= 1 {
		return invalid("control.demand_threshold must be between 0 and 1, got %v", ctl.DemandThreshold)
	}
	if ctl.MaxAdjustment <= 0 {
		return invalid("control.max_adjustment must be positive")
	}
	if ctl.HeatOffAdjustment >= 0 || -ctl.HeatOffAdjustment <= ctl.MaxAdjustment {
		return invalid("control.heat_off_adjustment must be negative with a magnitude larger than max_adjustment")
	}
	if ctl.Aggregation != AggregationMin && ctl.Aggregation != AggregationMax {
		return invalid("control.aggregation must be min or max, got %q", ctl.Aggregation)
	}
	if ctl.Period <= 0 || c.ExternalSensor.Period <= 0 || ctl.StaleAfter < 0 {
		return invalid("periods must be positive")
	}

	switch c.FlowSource.Type {
	case FlowSourceStatic:
	case FlowSourceModbus:
		if c.FlowSource.Address == "" {
			return invalid("flow_source.address is required for modbus")
		}
	case FlowSourceMBus:
		if c.FlowSource.Device == "" {
			return invalid("flow_source.device is required for mbus")
		}
	default:
		return invalid("unknown flow_source.type %q", c.FlowSource.Type)
	}
	return nil
}

func (c *Config) SensorIDs() []string {
	ids := make([]string, 0, len(c.Rooms))
	for _, room := range c.Rooms {
		ids = append(ids, room.Sensor.DeviceID)
	}
	return ids
}

func (c *Config) ThermostatIDs() []string {
	var ids []string
	for _, room := range c.Rooms {
		ids = append(ids, room.ThermostatIDs()...)
	}
	return ids
}

// Kinds classifies every configured device id.
func (c *Config) Kinds() map[string]device.Kind {
	kinds := make(map[string]device.Kind)
	for _, id := range c.SensorIDs() {
		kinds[id] = device.KindSensor
	}
	for _, id := range c.ThermostatIDs() {
		kinds[id] = device.KindThermostat
	}
	return kinds
}

// FlowTarget returns the topic the flow command for room is published to.
func (c *Config) FlowTarget(room Room) string {
	if room.FlowTarget != "" {
		return room.FlowTarget
	}
	return c.Control.FlowTarget
}
