package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

const thermostatPayload = `{
  "adaptation_run_control": "none",
  "adaptation_run_settings": true,
  "adaptation_run_status": "none",
  "algorithm_scale_factor": 1,
  "battery": 87,
  "day_of_week": "monday",
  "external_measured_room_sensor": 2050,
  "heat_available": true,
  "heat_required": true,
  "keypad_lockout": "unlock",
  "last_seen": "2024-02-01T18:12:02+01:00",
  "linkquality": 120,
  "load_balancing_enable": false,
  "load_estimate": -8000,
  "load_room_mean": -8000,
  "local_temperature": 22.1,
  "mounted_mode_active": false,
  "mounted_mode_control": false,
  "occupied_heating_setpoint": 21,
  "occupied_heating_setpoint_scheduled": 21,
  "pi_heating_demand": 80,
  "preheat_status": false,
  "programming_operation_mode": "setpoint",
  "radiator_covered": true,
  "regulation_setpoint_offset": 0,
  "running_state": "heat",
  "setpoint_change_source": "manual",
  "system_mode": "heat",
  "thermostat_vertical_orientation": false,
  "trigger_time": 0,
  "window_open_external": false,
  "window_open_feature": true,
  "window_open_internal": "quarantine"
}`

func TestDecodeSensor(t *testing.T) {
	s, err := DecodeSensor([]byte(`{"battery":100,"humidity":41.2,"linkquality":98,"temperature":21.37,"voltage":3000,"last_seen":"x"}`))
	assert.NoError(t, err)
	assert.Equal(t, SensorReading{Battery: 100, Humidity: 41.2, LinkQuality: 98, Temperature: 21.37, Voltage: 3000}, s)
}

func TestDecodeSensorErrors(t *testing.T) {
	var tests = []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `temperature=21`},
		{name: "empty", payload: ``},
		{name: "missing temperature", payload: `{"humidity":40}`},
		{name: "null temperature", payload: `{"temperature":null}`},
		{name: "wrong type", payload: `{"temperature":"warm"}`},
		{name: "array", payload: `[1,2,3]`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSensor([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestDecodeThermostat(t *testing.T) {
	th, err := DecodeThermostat([]byte(thermostatPayload))
	assert.NoError(t, err)
	assert.True(t, th.HeatRequired)
	assert.Equal(t, 80, th.PIHeatingDemand)
	assert.Equal(t, 0.8, th.Demand())
	assert.Equal(t, 21.0, th.OccupiedHeatingSetpoint)
	assert.Equal(t, 22.1, th.LocalTemperature)
	assert.Equal(t, 2050, th.ExternalMeasuredRoomSensor)
	assert.True(t, th.RadiatorCovered)
	assert.False(t, th.IsWindowOpen())
}

func TestDecodeThermostatErrors(t *testing.T) {
	_, err := DecodeThermostat([]byte(`{"pi_heating_demand":10,"occupied_heating_setpoint":20}`))
	assert.True(t, errors.Is(err, ErrMissingField))

	_, err = DecodeThermostat([]byte(`{"heat_required":true,"pi_heating_demand":140,"occupied_heating_setpoint":20}`))
	assert.Error(t, err)

	_, err = DecodeThermostat([]byte(`{"heat_required":"yes","pi_heating_demand":10,"occupied_heating_setpoint":20}`))
	assert.Error(t, err)
}

func TestDecodeByKind(t *testing.T) {
	r, err := Decode(KindSensor, []byte(`{"temperature":20.5}`))
	assert.NoError(t, err)
	assert.Equal(t, KindSensor, r.Kind())

	r, err = Decode(KindThermostat, []byte(thermostatPayload))
	assert.NoError(t, err)
	assert.Equal(t, KindThermostat, r.Kind())

	_, err = Decode(KindUnknown, []byte(`{}`))
	assert.Error(t, err)
}

func TestIsWindowOpen(t *testing.T) {
	var tests = []struct {
		name     string
		external bool
		internal string
		expected bool
	}{
		{name: "external flag", external: true, internal: "closed", expected: true},
		{name: "external flag empty internal", external: true, internal: "", expected: true},
		{name: "internal external_open", internal: "external_open", expected: true},
		{name: "internal open", internal: "open", expected: true},
		{name: "closed", internal: "closed", expected: false},
		{name: "empty", internal: "", expected: false},
		{name: "quarantine", internal: "quarantine", expected: false},
		{name: "in window open state", internal: "in_window_open_state", expected: false},
		{name: "case sensitive", internal: "Open", expected: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			th := ThermostatReading{WindowOpenExternal: tt.external, WindowOpenInternal: tt.internal}
			assert.Equal(t, tt.expected, th.IsWindowOpen())
		})
	}
}
