package device

import "fmt"

// ThermostatReading is the telemetry of a radiator thermostat (TRV). Only
// HeatRequired, PIHeatingDemand, OccupiedHeatingSetpoint and the window flags
// are used for control, the rest is kept for the room snapshot.
type ThermostatReading struct {
	AdaptationRunControl            string  `json:"adaptation_run_control"`
	AdaptationRunSettings           bool    `json:"adaptation_run_settings"`
	AdaptationRunStatus             string  `json:"adaptation_run_status"`
	AlgorithmScaleFactor            int     `json:"algorithm_scale_factor"`
	Battery                         int     `json:"battery"`
	DayOfWeek                       string  `json:"day_of_week"`
	ExternalMeasuredRoomSensor      int     `json:"external_measured_room_sensor"`
	HeatAvailable                   bool    `json:"heat_available"`
	HeatRequired                    bool    `json:"heat_required"`
	KeypadLockout                   string  `json:"keypad_lockout"`
	LinkQuality                     int     `json:"linkquality"`
	LoadBalancingEnable             bool    `json:"load_balancing_enable"`
	LoadEstimate                    int     `json:"load_estimate"`
	LoadRoomMean                    int     `json:"load_room_mean"`
	LocalTemperature                float64 `json:"local_temperature"`
	MountedModeActive               bool    `json:"mounted_mode_active"`
	MountedModeControl              bool    `json:"mounted_mode_control"`
	OccupiedHeatingSetpoint         float64 `json:"occupied_heating_setpoint"`
	OccupiedHeatingSetpointSchedule float64 `json:"occupied_heating_setpoint_scheduled"`
	PIHeatingDemand                 int     `json:"pi_heating_demand"`
	PreheatStatus                   bool    `json:"preheat_status"`
	ProgrammingOperationMode        string  `json:"programming_operation_mode"`
	RadiatorCovered                 bool    `json:"radiator_covered"`
	RegulationSetpointOffset        float64 `json:"regulation_setpoint_offset"`
	RunningState                    string  `json:"running_state"`
	SetpointChangeSource            string  `json:"setpoint_change_source"`
	SystemMode                      string  `json:"system_mode"`
	ThermostatVerticalOrientation   bool    `json:"thermostat_vertical_orientation"`
	TriggerTime                     int     `json:"trigger_time"`
	WindowOpenExternal              bool    `json:"window_open_external"`
	WindowOpenFeature               bool    `json:"window_open_feature"`
	WindowOpenInternal              string  `json:"window_open_internal"`
}

func (ThermostatReading) Kind() Kind { return KindThermostat }

// IsWindowOpen reports whether either the external window input or the
// thermostat's own open-window detection says the window is open.
func (t ThermostatReading) IsWindowOpen() bool {
	return t.WindowOpenExternal ||
		t.WindowOpenInternal == "external_open" ||
		t.WindowOpenInternal == "open"
}

// Demand returns pi_heating_demand as a fraction in [0,1].
func (t ThermostatReading) Demand() float64 {
	return float64(t.PIHeatingDemand) / 100.0
}

func DecodeThermostat(payload []byte) (ThermostatReading, error) {
	t := ThermostatReading{}
	err := decodeStrict(payload, &t, "heat_required", "pi_heating_demand", "occupied_heating_setpoint")
	if err != nil {
		return t, err
	}
	if t.PIHeatingDemand < 0 || t.PIHeatingDemand > 100 {
		return ThermostatReading{}, fmt.Errorf("pi_heating_demand %d out of range 0-100", t.PIHeatingDemand)
	}
	return t, nil
}
