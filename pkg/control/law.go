// Package control derives heating commands from the latest device state.
package control

import (
	"github.com/nergy-se/roomcontroller/pkg/config"
	"github.com/nergy-se/roomcontroller/pkg/device"
)

// Params are the constants of the flow adjustment law.
type Params struct {
	DemandThreshold   float64
	MaxAdjustment     float64
	HeatOffAdjustment float64
}

func ParamsFromConfig(c config.Control) Params {
	return Params{
		DemandThreshold:   c.DemandThreshold,
		MaxAdjustment:     c.MaxAdjustment,
		HeatOffAdjustment: c.HeatOffAdjustment,
	}
}

// Adjustment is the demand gated proportional law. Below the threshold nothing
// is adjusted. Above it the setpoint error is scaled by how far demand exceeds
// the threshold and clamped to [0, MaxAdjustment]. When no heat is required
// HeatOffAdjustment is returned regardless of the other inputs.
func Adjustment(heatRequired bool, demand, setpoint, sensorTemp float64, p Params) float64 {
	if !heatRequired {
		return p.HeatOffAdjustment
	}
	if demand <= p.DemandThreshold {
		return 0
	}
	raw := (setpoint - sensorTemp) * ((demand - p.DemandThreshold) / (1 - p.DemandThreshold))
	return clamp(raw, 0, p.MaxAdjustment)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// roomInput is what the law needs from one room.
type roomInput struct {
	HeatRequired bool
	Demand       float64
	Setpoint     float64
	SensorTemp   float64
}

// combine merges the readings of all thermostats in a room. The thermostat
// with the highest demand decides demand and setpoint, heat is required if any
// thermostat requires it.
func combine(sensor device.SensorReading, thermostats []device.ThermostatReading) roomInput {
	in := roomInput{SensorTemp: sensor.Temperature}
	for i, t := range thermostats {
		if t.HeatRequired {
			in.HeatRequired = true
		}
		if i == 0 || t.Demand() > in.Demand {
			in.Demand = t.Demand()
			in.Setpoint = t.OccupiedHeatingSetpoint
		}
	}
	return in
}
