// Package state keeps the latest decoded reading of every configured device.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nergy-se/roomcontroller/pkg/config"
	"github.com/nergy-se/roomcontroller/pkg/device"
)

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrKindMismatch  = errors.New("reading kind does not match device kind")
)

type entry struct {
	reading  device.Reading
	received time.Time
}

// Store is safe for one writer and any number of concurrent readers. Readers
// get copies, a stored reading is never modified in place.
type Store struct {
	rooms []config.Room
	kinds map[string]device.Kind

	// readings older than staleAfter are reported as missing, 0 disables.
	staleAfter time.Duration
	now        func() time.Time

	entries map[string]entry
	sync.RWMutex
}

func New(cfg *config.Config) *Store {
	return &Store{
		rooms:      cfg.Rooms,
		kinds:      cfg.Kinds(),
		staleAfter: cfg.Control.StaleAfter,
		now:        time.Now,
		entries:    make(map[string]entry),
	}
}

// Kind returns the configured kind of deviceID. It does not need the lock
// since the classification never changes after New.
func (s *Store) Kind(deviceID string) device.Kind {
	return s.kinds[deviceID]
}

// Update replaces the reading stored for deviceID.
func (s *Store) Update(deviceID string, reading device.Reading) error {
	kind := s.kinds[deviceID]
	if kind == device.KindUnknown {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	if reading == nil || reading.Kind() != kind {
		return fmt.Errorf("%w: %s is a %s", ErrKindMismatch, deviceID, kind)
	}

	e := entry{reading: reading, received: s.now()}
	s.Lock()
	s.entries[deviceID] = e
	s.Unlock()
	return nil
}

func (s *Store) LatestSensor(deviceID string) (device.SensorReading, bool) {
	s.RLock()
	defer s.RUnlock()
	return s.sensor(deviceID, s.now())
}

func (s *Store) LatestThermostat(deviceID string) (device.ThermostatReading, bool) {
	s.RLock()
	defer s.RUnlock()
	return s.thermostat(deviceID, s.now())
}

// LatestThermostats returns the readings of every id that has one, in the
// order of ids.
func (s *Store) LatestThermostats(ids []string) []device.ThermostatReading {
	s.RLock()
	defer s.RUnlock()
	now := s.now()
	var result []device.ThermostatReading
	for _, id := range ids {
		if t, ok := s.thermostat(id, now); ok {
			result = append(result, t)
		}
	}
	return result
}

// caller must hold the read lock.
func (s *Store) sensor(deviceID string, now time.Time) (device.SensorReading, bool) {
	e, ok := s.fresh(deviceID, now)
	if !ok {
		return device.SensorReading{}, false
	}
	r, ok := e.reading.(device.SensorReading)
	return r, ok
}

// caller must hold the read lock.
func (s *Store) thermostat(deviceID string, now time.Time) (device.ThermostatReading, bool) {
	e, ok := s.fresh(deviceID, now)
	if !ok {
		return device.ThermostatReading{}, false
	}
	r, ok := e.reading.(device.ThermostatReading)
	return r, ok
}

func (s *Store) fresh(deviceID string, now time.Time) (entry, bool) {
	e, ok := s.entries[deviceID]
	if !ok {
		return entry{}, false
	}
	if s.staleAfter > 0 && now.Sub(e.received) > s.staleAfter {
		return entry{}, false
	}
	return e, true
}

type ThermostatSnapshot struct {
	DeviceID string                    `json:"deviceId"`
	Reading  *device.ThermostatReading `json:"reading,omitempty"`
}

type RoomSnapshot struct {
	Room        string                `json:"room"`
	SensorID    string                `json:"sensorId"`
	Sensor      *device.SensorReading `json:"sensor,omitempty"`
	Thermostats []ThermostatSnapshot  `json:"thermostats"`
}

// Snapshot returns the state of every room, in config order, taken in a single
// read pass.
func (s *Store) Snapshot() []RoomSnapshot {
	s.RLock()
	defer s.RUnlock()
	now := s.now()

	result := make([]RoomSnapshot, 0, len(s.rooms))
	for _, room := range s.rooms {
		rs := RoomSnapshot{
			Room:        room.Name,
			SensorID:    room.Sensor.DeviceID,
			Thermostats: make([]ThermostatSnapshot, 0, len(room.Thermostats)),
		}
		if sensor, ok := s.sensor(room.Sensor.DeviceID, now); ok {
			rs.Sensor = &sensor
		}
		for _, id := range room.ThermostatIDs() {
			ts := ThermostatSnapshot{DeviceID: id}
			if t, ok := s.thermostat(id, now); ok {
				ts.Reading = &t
			}
			rs.Thermostats = append(rs.Thermostats, ts)
		}
		result = append(result, rs)
	}
	return result
}
