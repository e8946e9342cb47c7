package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nergy-se/roomcontroller/pkg/config"
	"github.com/nergy-se/roomcontroller/pkg/device"
	"github.com/stretchr/testify/assert"
)

func testConfig() *config.Config {
	c := &config.Config{
		Rooms: []config.Room{
			{
				Name:        "Bathroom",
				Sensor:      config.Sensor{DeviceID: "sensor1"},
				Thermostats: []config.Thermostat{{DeviceID: "trv1"}},
			},
			{
				Name:        "Bedroom",
				Sensor:      config.Sensor{DeviceID: "sensor2"},
				Thermostats: []config.Thermostat{{DeviceID: "trv2"}, {DeviceID: "trv3"}},
			},
		},
	}
	c.FillDefaults()
	return c
}

func TestUpdateAndLatest(t *testing.T) {
	s := New(testConfig())

	_, ok := s.LatestSensor("sensor1")
	assert.False(t, ok)

	first := device.SensorReading{Battery: 90, Humidity: 40, Temperature: 21.5}
	err := s.Update("sensor1", first)
	assert.NoError(t, err)

	r, ok := s.LatestSensor("sensor1")
	assert.True(t, ok)
	assert.Equal(t, first, r)

	// a second reading replaces the first, fields are not merged
	second := device.SensorReading{Temperature: 19.0}
	err = s.Update("sensor1", second)
	assert.NoError(t, err)
	r, ok = s.LatestSensor("sensor1")
	assert.True(t, ok)
	assert.Equal(t, second, r)
	assert.Equal(t, 0, r.Battery)

	th := device.ThermostatReading{HeatRequired: true, PIHeatingDemand: 80, OccupiedHeatingSetpoint: 21}
	err = s.Update("trv1", th)
	assert.NoError(t, err)
	got, ok := s.LatestThermostat("trv1")
	assert.True(t, ok)
	assert.Equal(t, th, got)

	// kinds never cross
	_, ok = s.LatestThermostat("sensor1")
	assert.False(t, ok)
	_, ok = s.LatestSensor("trv1")
	assert.False(t, ok)
}

func TestUpdateUnknownDevice(t *testing.T) {
	s := New(testConfig())

	err := s.Update("nope", device.SensorReading{Temperature: 20})
	assert.True(t, errors.Is(err, ErrUnknownDevice))

	s.RLock()
	assert.Len(t, s.entries, 0)
	s.RUnlock()
}

func TestUpdateKindMismatch(t *testing.T) {
	s := New(testConfig())

	err := s.Update("sensor1", device.ThermostatReading{})
	assert.True(t, errors.Is(err, ErrKindMismatch))
	err = s.Update("trv1", device.SensorReading{})
	assert.True(t, errors.Is(err, ErrKindMismatch))
	err = s.Update("trv1", nil)
	assert.True(t, errors.Is(err, ErrKindMismatch))

	_, ok := s.LatestSensor("sensor1")
	assert.False(t, ok)
	_, ok = s.LatestThermostat("trv1")
	assert.False(t, ok)
}

func TestKind(t *testing.T) {
	s := New(testConfig())
	assert.Equal(t, device.KindSensor, s.Kind("sensor2"))
	assert.Equal(t, device.KindThermostat, s.Kind("trv3"))
	assert.Equal(t, device.KindUnknown, s.Kind("nope"))
}

func TestStale(t *testing.T) {
	cfg := testConfig()
	cfg.Control.StaleAfter = time.Minute
	s := New(cfg)

	now := time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	err := s.Update("sensor1", device.SensorReading{Temperature: 20})
	assert.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, ok := s.LatestSensor("sensor1")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = s.LatestSensor("sensor1")
	assert.False(t, ok)

	snap := s.Snapshot()
	assert.Nil(t, snap[0].Sensor)

	// a new reading makes it fresh again
	err = s.Update("sensor1", device.SensorReading{Temperature: 20.5})
	assert.NoError(t, err)
	r, ok := s.LatestSensor("sensor1")
	assert.True(t, ok)
	assert.Equal(t, 20.5, r.Temperature)
}

func TestStaleDisabled(t *testing.T) {
	s := New(testConfig())
	now := time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	err := s.Update("trv1", device.ThermostatReading{PIHeatingDemand: 10})
	assert.NoError(t, err)

	now = now.Add(24 * time.Hour)
	_, ok := s.LatestThermostat("trv1")
	assert.True(t, ok)
}

func TestLatestThermostats(t *testing.T) {
	s := New(testConfig())
	assert.Empty(t, s.LatestThermostats([]string{"trv2", "trv3"}))

	err := s.Update("trv3", device.ThermostatReading{PIHeatingDemand: 30})
	assert.NoError(t, err)
	err = s.Update("trv2", device.ThermostatReading{PIHeatingDemand: 20})
	assert.NoError(t, err)

	got := s.LatestThermostats([]string{"trv2", "trv3", "nope"})
	assert.Len(t, got, 2)
	assert.Equal(t, 20, got[0].PIHeatingDemand)
	assert.Equal(t, 30, got[1].PIHeatingDemand)
}

func TestSnapshot(t *testing.T) {
	s := New(testConfig())

	err := s.Update("sensor2", device.SensorReading{Temperature: 22.3, Humidity: 35})
	assert.NoError(t, err)
	err = s.Update("trv3", device.ThermostatReading{PIHeatingDemand: 55})
	assert.NoError(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap, 2)

	assert.Equal(t, "Bathroom", snap[0].Room)
	assert.Nil(t, snap[0].Sensor)
	assert.Len(t, snap[0].Thermostats, 1)
	assert.Nil(t, snap[0].Thermostats[0].Reading)

	assert.Equal(t, "Bedroom", snap[1].Room)
	assert.Equal(t, "sensor2", snap[1].SensorID)
	assert.Equal(t, 22.3, snap[1].Sensor.Temperature)
	assert.Equal(t, "trv2", snap[1].Thermostats[0].DeviceID)
	assert.Nil(t, snap[1].Thermostats[0].Reading)
	assert.Equal(t, "trv3", snap[1].Thermostats[1].DeviceID)
	assert.Equal(t, 55, snap[1].Thermostats[1].Reading.PIHeatingDemand)

	// the snapshot is a copy
	snap[1].Sensor.Temperature = 0
	r, _ := s.LatestSensor("sensor2")
	assert.Equal(t, 22.3, r.Temperature)
}

func TestConcurrentReadsNeverTorn(t *testing.T) {
	s := New(testConfig())

	a := device.ThermostatReading{HeatRequired: true, PIHeatingDemand: 100, OccupiedHeatingSetpoint: 22, WindowOpenInternal: "open"}
	b := device.ThermostatReading{HeatRequired: false, PIHeatingDemand: 0, OccupiedHeatingSetpoint: 17, WindowOpenInternal: "closed"}
	assert.NoError(t, s.Update("trv1", a))

	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			r := a
			if i%2 == 0 {
				r = b
			}
			_ = s.Update("trv1", r)
		}
	}()

	readers := &sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for j := 0; j < 2000; j++ {
				got, ok := s.LatestThermostat("trv1")
				if !ok || (got != a && got != b) {
					t.Errorf("torn read: %+v", got)
					return
				}
				for _, room := range s.Snapshot() {
					for _, th := range room.Thermostats {
						if th.DeviceID == "trv1" && *th.Reading != a && *th.Reading != b {
							t.Errorf("torn snapshot: %+v", *th.Reading)
							return
						}
					}
				}
			}
		}()
	}
	readers.Wait()
	close(stop)
	wg.Wait()
}
