package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nergy-se/roomcontroller/pkg/alarm"
	"github.com/nergy-se/roomcontroller/pkg/control"
	"github.com/nergy-se/roomcontroller/pkg/device"
	"github.com/nergy-se/roomcontroller/pkg/metrics"
	"github.com/nergy-se/roomcontroller/pkg/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	rooms []state.RoomSnapshot
}

func (f fakeStore) Snapshot() []state.RoomSnapshot { return f.rooms }

type fakeControl struct{}

func (fakeControl) LastPass() control.Pass {
	return control.Pass{BaseFlow: 35, Commands: []control.FlowCommand{{Target: "heatsource/flow_temperature/set", Value: 33, Rooms: []string{"Bathroom"}}}}
}

func (fakeControl) Missing() []alarm.Alarm {
	return []alarm.Alarm{{Key: "Bedroom", Reason: "no sensor state"}}
}

type fakeConnection bool

func (f fakeConnection) IsConnected() bool { return bool(f) }

func newServer(connected bool) *Server {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Ingested("sensor")
	store := fakeStore{rooms: []state.RoomSnapshot{
		{
			Room:     "Bathroom",
			SensorID: "sensor1",
			Sensor:   &device.SensorReading{Temperature: 21.5},
			Thermostats: []state.ThermostatSnapshot{
				{DeviceID: "trv1"},
			},
		},
	}}
	return New(":0", store, fakeControl{}, fakeConnection(connected), reg)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newServer(true), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	h := health{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	assert.True(t, h.MQTTConnected)

	w = get(t, newServer(false), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestRooms(t *testing.T) {
	w := get(t, newServer(true), "/api/rooms")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var rooms []state.RoomSnapshot
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
	assert.Len(t, rooms, 1)
	assert.Equal(t, 21.5, rooms[0].Sensor.Temperature)
	assert.Nil(t, rooms[0].Thermostats[0].Reading)
}

func TestControl(t *testing.T) {
	w := get(t, newServer(true), "/api/control")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"baseFlow":35`)
	assert.Contains(t, body, `"target":"heatsource/flow_temperature/set"`)
	assert.Contains(t, body, `"missing":[{"key":"Bedroom","reason":"no sensor state"}]`)
}

func TestMetrics(t *testing.T) {
	w := get(t, newServer(true), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `roomcontroller_messages_ingested_total{kind="sensor"} 1`))
}

func TestMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", nil)
	w := httptest.NewRecorder()
	newServer(true).Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
