package control

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nergy-se/roomcontroller/pkg/config"
	"github.com/nergy-se/roomcontroller/pkg/metrics"
	"github.com/nergy-se/roomcontroller/pkg/mqtt"
	"github.com/sirupsen/logrus"
)

type trvSettings struct {
	RadiatorCovered     bool `json:"radiator_covered"`
	LoadBalancingEnable bool `json:"load_balancing_enable"`
}

// TRVConfigurator pushes the per room TRV settings. radiator_covered makes the
// TRV regulate on the external temperature only.
type TRVConfigurator struct {
	cfg       *config.Config
	publisher Publisher
	topics    mqtt.Topics
	metrics   *metrics.Metrics
}

func NewTRVConfigurator(cfg *config.Config, publisher Publisher, m *metrics.Metrics) *TRVConfigurator {
	return &TRVConfigurator{
		cfg:       cfg,
		publisher: publisher,
		topics:    mqtt.Topics{Namespace: cfg.Namespace},
		metrics:   m,
	}
}

// Configure publishes the settings to every thermostat. It tries all of them
// and returns the joined errors.
func (t *TRVConfigurator) Configure() error {
	var errs []error
	for _, room := range t.cfg.Rooms {
		payload, err := json.Marshal(trvSettings{
			RadiatorCovered:     room.TRVTempControl == config.TRVTempControlExternalSensor,
			LoadBalancingEnable: room.LoadBalancing,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, id := range room.ThermostatIDs() {
			topic := t.topics.Set(id)
			err := t.publisher.Publish(topic, payload)
			if err != nil {
				t.metrics.PublishError("trv_config")
				errs = append(errs, fmt.Errorf("room %s thermostat %s: %w", room.Name, id, err))
				continue
			}
			logrus.WithFields(logrus.Fields{
				"room":  room.Name,
				"topic": topic,
			}).Debugf("configured trv %s", payload)
		}
	}
	return errors.Join(errs...)
}
