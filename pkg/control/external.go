package control

import (
	"encoding/json"
	"math"

	"github.com/nergy-se/roomcontroller/pkg/config"
	"github.com/nergy-se/roomcontroller/pkg/metrics"
	"github.com/nergy-se/roomcontroller/pkg/mqtt"
	"github.com/sirupsen/logrus"
)

// ExternalValue converts a temperature to the hundredths of a degree the
// thermostats expect in external_measured_room_sensor.
func ExternalValue(celsius float64) int {
	return int(math.Round(celsius * 100))
}

type externalTemperature struct {
	ExternalMeasuredRoomSensor int `json:"external_measured_room_sensor"`
}

// ExternalSensorPublisher sends the zone sensor temperature of every room to
// the thermostats in it.
type ExternalSensorPublisher struct {
	cfg       *config.Config
	store     Store
	publisher Publisher
	topics    mqtt.Topics
	metrics   *metrics.Metrics
}

func NewExternalSensorPublisher(cfg *config.Config, store Store, publisher Publisher, m *metrics.Metrics) *ExternalSensorPublisher {
	return &ExternalSensorPublisher{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		topics:    mqtt.Topics{Namespace: cfg.Namespace},
		metrics:   m,
	}
}

// RunPass publishes to every thermostat of every room with sensor state and
// returns the number of successful publishes.
func (e *ExternalSensorPublisher) RunPass() int {
	published := 0
	for _, room := range e.cfg.Rooms {
		sensor, ok := e.store.LatestSensor(room.Sensor.DeviceID)
		if !ok {
			logrus.WithField("room", room.Name).Debug("no sensor state for room, skipping external temperature")
			continue
		}

		payload, err := json.Marshal(externalTemperature{ExternalMeasuredRoomSensor: ExternalValue(sensor.Temperature)})
		if err != nil {
			logrus.Error(err)
			continue
		}
		for _, id := range room.ThermostatIDs() {
			topic := e.topics.Set(id)
			err := e.publisher.Publish(topic, payload)
			if err != nil {
				e.metrics.PublishError("external_temperature")
				logrus.WithFields(logrus.Fields{
					"room":  room.Name,
					"topic": topic,
					"err":   err,
				}).Error("error publishing external temperature")
				continue
			}
			published++
			logrus.WithFields(logrus.Fields{
				"room":  room.Name,
				"topic": topic,
			}).Debugf("published external temperature %s", payload)
		}
	}
	return published
}
