// Package metrics holds the prometheus collectors of the room controller. All
// methods are safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ingested        *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	dropped         prometheus.Counter
	publishErrors   *prometheus.CounterVec
	sensorTemp      *prometheus.GaugeVec
	demand          *prometheus.GaugeVec
	adjustment      *prometheus.GaugeVec
	flowTemperature *prometheus.GaugeVec
	baseFlow        prometheus.Gauge
	missingState    *prometheus.GaugeVec
	connected       prometheus.Gauge
}

// New creates the collectors and registers them in reg.
func New(reg prometheus.Registerer) *Metrics {
	room := []string{"room"}
	m := &Metrics{
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcontroller_messages_ingested_total",
			Help: "Telemetry messages stored, by device kind.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcontroller_messages_rejected_total",
			Help: "Telemetry messages rejected, by reason.",
		}, []string{"reason"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomcontroller_messages_dropped_total",
			Help: "Telemetry messages dropped because the inbound queue was full.",
		}),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomcontroller_publish_errors_total",
			Help: "Failed command publishes, by command type.",
		}, []string{"command"}),
		sensorTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomcontroller_room_temperature_celsius",
			Help: "Latest zone sensor temperature per room.",
		}, room),
		demand: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomcontroller_room_heating_demand_ratio",
			Help: "Heating demand fraction used for control per room.",
		}, room),
		adjustment: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomcontroller_room_flow_adjustment_celsius",
			Help: "Flow temperature adjustment computed per room.",
		}, room),
		flowTemperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomcontroller_flow_temperature_celsius",
			Help: "Flow temperature last commanded per target.",
		}, []string{"target"}),
		baseFlow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roomcontroller_base_flow_temperature_celsius",
			Help: "Base flow temperature read from the flow source.",
		}),
		missingState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomcontroller_room_missing_state_bool",
			Help: "1 when the room was skipped in the last control pass because of missing state.",
		}, room),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roomcontroller_mqtt_connected_bool",
			Help: "MQTT transport connection state (1=connected).",
		}),
	}

	reg.MustRegister(
		m.ingested,
		m.rejected,
		m.dropped,
		m.publishErrors,
		m.sensorTemp,
		m.demand,
		m.adjustment,
		m.flowTemperature,
		m.baseFlow,
		m.missingState,
		m.connected,
	)
	return m
}

func (m *Metrics) Ingested(kind string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(kind).Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) PublishError(command string) {
	if m == nil {
		return
	}
	m.publishErrors.WithLabelValues(command).Inc()
}

func (m *Metrics) RoomState(room string, temperature, demand, adjustment float64) {
	if m == nil {
		return
	}
	m.sensorTemp.WithLabelValues(room).Set(temperature)
	m.demand.WithLabelValues(room).Set(demand)
	m.adjustment.WithLabelValues(room).Set(adjustment)
	m.missingState.WithLabelValues(room).Set(0)
}

func (m *Metrics) RoomMissing(room string) {
	if m == nil {
		return
	}
	m.missingState.WithLabelValues(room).Set(1)
}

func (m *Metrics) FlowTemperature(target string, value float64) {
	if m == nil {
		return
	}
	m.flowTemperature.WithLabelValues(target).Set(value)
}

func (m *Metrics) BaseFlow(value float64) {
	if m == nil {
		return
	}
	m.baseFlow.Set(value)
}

func (m *Metrics) Connected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}
