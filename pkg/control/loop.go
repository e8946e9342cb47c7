package control

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nergy-se/roomcontroller/pkg/alarm"
	"github.com/nergy-se/roomcontroller/pkg/config"
	"github.com/nergy-se/roomcontroller/pkg/device"
	"github.com/nergy-se/roomcontroller/pkg/flowsource"
	"github.com/nergy-se/roomcontroller/pkg/metrics"
	"github.com/nergy-se/roomcontroller/pkg/state"
	"github.com/sirupsen/logrus"
)

// Store is the read side of the device state store. Every call takes its own
// read lock and returns copies, so no lock is held while publishing.
type Store interface {
	LatestSensor(deviceID string) (device.SensorReading, bool)
	LatestThermostats(ids []string) []device.ThermostatReading
	Snapshot() []state.RoomSnapshot
}

type Publisher interface {
	Publish(topic string, payload []byte) error
}

const (
	reasonNoSensor     = "no sensor state"
	reasonNoThermostat = "no thermostat state"
)

// Decision is the outcome of the control law for one room.
type Decision struct {
	Room         string  `json:"room"`
	Target       string  `json:"target"`
	HeatRequired bool    `json:"heatRequired"`
	Demand       float64 `json:"demand"`
	Setpoint     float64 `json:"setpoint"`
	SensorTemp   float64 `json:"sensorTemperature"`
	Adjustment   float64 `json:"adjustment"`
}

// FlowCommand is the flow temperature published to one target.
type FlowCommand struct {
	Target string   `json:"target"`
	Value  float64  `json:"value"`
	Rooms  []string `json:"rooms"`
	Error  string   `json:"error,omitempty"`
}

func (f FlowCommand) Payload() []byte {
	return []byte(FormatFlow(f.Value))
}

// FormatFlow formats a flow temperature with one decimal.
func FormatFlow(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

type Pass struct {
	Time      time.Time     `json:"time"`
	BaseFlow  float64       `json:"baseFlow"`
	Decisions []Decision    `json:"decisions"`
	Commands  []FlowCommand `json:"commands"`
	Error     string        `json:"error,omitempty"`
}

// ControlLoop computes and publishes the flow temperature commands.
type ControlLoop struct {
	cfg       *config.Config
	params    Params
	store     Store
	publisher Publisher
	flow      flowsource.Source
	missing   *alarm.ActiveAlarms
	metrics   *metrics.Metrics

	lastPass Pass
	mu       sync.RWMutex
}

func NewControlLoop(cfg *config.Config, store Store, publisher Publisher, flow flowsource.Source, m *metrics.Metrics) *ControlLoop {
	return &ControlLoop{
		cfg:       cfg,
		params:    ParamsFromConfig(cfg.Control),
		store:     store,
		publisher: publisher,
		flow:      flow,
		missing:   alarm.New(),
		metrics:   m,
	}
}

// Decide applies the control law to every room that has state. Rooms without
// state are reported and left out.
func (c *ControlLoop) Decide() []Decision {
	var decisions []Decision
	for _, room := range c.cfg.Rooms {
		sensor, ok := c.store.LatestSensor(room.Sensor.DeviceID)
		if !ok {
			c.reportMissing(room.Name, reasonNoSensor)
			continue
		}
		thermostats := c.store.LatestThermostats(room.ThermostatIDs())
		if len(thermostats) == 0 {
			c.reportMissing(room.Name, reasonNoThermostat)
			continue
		}
		if c.missing.Remove(room.Name) {
			logrus.WithField("room", room.Name).Info("state available for room again")
		}

		in := combine(sensor, thermostats)
		d := Decision{
			Room:         room.Name,
			Target:       c.cfg.FlowTarget(room),
			HeatRequired: in.HeatRequired,
			Demand:       in.Demand,
			Setpoint:     in.Setpoint,
			SensorTemp:   in.SensorTemp,
			Adjustment:   Adjustment(in.HeatRequired, in.Demand, in.Setpoint, in.SensorTemp, c.params),
		}
		c.metrics.RoomState(room.Name, d.SensorTemp, d.Demand, d.Adjustment)
		logrus.WithFields(logrus.Fields{
			"room":         d.Room,
			"demand":       d.Demand,
			"setpoint":     d.Setpoint,
			"temperature":  d.SensorTemp,
			"heatRequired": d.HeatRequired,
			"adjustment":   d.Adjustment,
		}).Debug("room decision")
		decisions = append(decisions, d)
	}
	return decisions
}

func (c *ControlLoop) reportMissing(room, reason string) {
	c.metrics.RoomMissing(room)
	l := logrus.WithField("room", room)
	if c.missing.Add(room, reason) {
		l.Infof("missing state for room: %s", reason)
		return
	}
	l.Debugf("missing state for room: %s", reason)
}

// Missing returns the rooms currently skipped because of missing state.
func (c *ControlLoop) Missing() []alarm.Alarm {
	return c.missing.Active()
}

// Aggregate combines the decisions sharing a flow target into one command per
// target, in order of first appearance. Every room asks for base - adjustment
// and the policy picks the lowest (min) or highest (max) of those values.
func Aggregate(decisions []Decision, policy config.Aggregation, base float64) []FlowCommand {
	var commands []FlowCommand
	index := make(map[string]int)
	for _, d := range decisions {
		value := base - d.Adjustment
		i, ok := index[d.Target]
		if !ok {
			index[d.Target] = len(commands)
			commands = append(commands, FlowCommand{Target: d.Target, Value: value, Rooms: []string{d.Room}})
			continue
		}
		cmd := &commands[i]
		cmd.Rooms = append(cmd.Rooms, d.Room)
		switch policy {
		case config.AggregationMax:
			if value > cmd.Value {
				cmd.Value = value
			}
		default:
			if value < cmd.Value {
				cmd.Value = value
			}
		}
	}
	return commands
}

// RunPass does one control pass: log the room snapshot, decide, read the base
// flow temperature and publish one command per flow target. A failed publish
// is logged and does not stop the other targets.
func (c *ControlLoop) RunPass() Pass {
	c.logSnapshot()

	pass := Pass{Time: time.Now()}
	pass.Decisions = c.Decide()
	if len(pass.Decisions) == 0 {
		c.setLastPass(pass)
		return pass
	}

	base, err := c.flow.FlowTemperature()
	if err != nil {
		logrus.WithField("err", err).Error("error reading base flow temperature, skipping flow commands")
		pass.Error = err.Error()
		c.setLastPass(pass)
		return pass
	}
	c.metrics.BaseFlow(base)
	pass.BaseFlow = base

	pass.Commands = Aggregate(pass.Decisions, c.cfg.Control.Aggregation, base)
	for i, cmd := range pass.Commands {
		err := c.publisher.Publish(cmd.Target, cmd.Payload())
		if err != nil {
			c.metrics.PublishError("flow")
			pass.Commands[i].Error = err.Error()
			logrus.WithFields(logrus.Fields{
				"topic": cmd.Target,
				"err":   err,
			}).Error("error publishing flow temperature")
			continue
		}
		c.metrics.FlowTemperature(cmd.Target, cmd.Value)
		logrus.WithFields(logrus.Fields{
			"topic": cmd.Target,
			"rooms": strings.Join(cmd.Rooms, ","),
		}).Debugf("published flow temperature %s", FormatFlow(cmd.Value))
	}
	c.setLastPass(pass)
	return pass
}

func (c *ControlLoop) setLastPass(p Pass) {
	c.mu.Lock()
	c.lastPass = p
	c.mu.Unlock()
}

func (c *ControlLoop) LastPass() Pass {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPass
}

func (c *ControlLoop) logSnapshot() {
	for _, room := range c.store.Snapshot() {
		for _, t := range room.Thermostats {
			logrus.WithFields(logrus.Fields{
				"room":       room.Room,
				"thermostat": t.DeviceID,
			}).Info(formatRoomState(room.Sensor, t.Reading))
		}
	}
}

const unknown = "UNK"

func formatRoomState(s *device.SensorReading, t *device.ThermostatReading) string {
	temp, hum := unknown, unknown
	if s != nil {
		temp = fmt.Sprintf("%.1f", s.Temperature)
		hum = fmt.Sprintf("%.1f", s.Humidity)
	}
	ext, local, demand, covered, window := unknown, unknown, unknown, unknown, unknown
	if t != nil {
		ext = fmt.Sprintf("%.2f", float64(t.ExternalMeasuredRoomSensor)/100)
		local = fmt.Sprintf("%.1f", t.LocalTemperature)
		demand = strconv.Itoa(t.PIHeatingDemand)
		covered = strconv.FormatBool(t.RadiatorCovered)
		window = strconv.FormatBool(t.IsWindowOpen())
	}
	return fmt.Sprintf("%s°C sen, %s%% hum sen, %s ext temp, %s int temp, %s%% heat demand, %s rad covered, %s window open",
		temp, hum, ext, local, demand, covered, window)
}
