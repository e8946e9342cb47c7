// Package flowsource reads the base flow temperature the control adjustments
// are applied to.
package flowsource

import (
	"fmt"

	"github.com/nergy-se/roomcontroller/pkg/config"
)

type Source interface {
	// FlowTemperature returns the current base flow temperature in celsius.
	FlowTemperature() (float64, error)
	Close() error
}

func New(cfg config.FlowSource) (Source, error) {
	switch cfg.Type {
	case config.FlowSourceStatic:
		return Static(cfg.Temperature), nil
	case config.FlowSourceModbus:
		return NewModbus(cfg.Address, byte(cfg.SlaveID), cfg.Register, cfg.Scale), nil
	case config.FlowSourceMBus:
		return NewMBus(cfg.Device, cfg.PrimaryAddress, cfg.Record), nil
	}
	return nil, fmt.Errorf("unknown flow source type %q", cfg.Type)
}

// Static is a fixed base flow temperature.
type Static float64

func (s Static) FlowTemperature() (float64, error) {
	return float64(s), nil
}

func (s Static) Close() error {
	return nil
}
