package flowsource

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"
)

// Modbus reads the flow temperature from an input register of a heat pump
// over modbus TCP. The value is divided by scale, 100 for registers in
// hundredths of a degree.
type Modbus struct {
	address  string
	slaveID  byte
	register uint16
	scale    float64

	handler *modbus.TCPClientHandler
	client  modbus.Client
	mutex   sync.Mutex
}

func NewModbus(address string, slaveID byte, register uint16, scale float64) *Modbus {
	if scale == 0 {
		scale = 1
	}
	return &Modbus{
		address:  address,
		slaveID:  slaveID,
		register: register,
		scale:    scale,
	}
}

// caller must hold the mutex.
func (m *Modbus) connect() error {
	if m.client != nil {
		return nil
	}
	handler := modbus.NewTCPClientHandler(m.address)
	handler.SlaveId = m.slaveID
	handler.Timeout = 5 * time.Second
	err := handler.Connect()
	if err != nil {
		return fmt.Errorf("error connecting to modbus %s: %w", m.address, err)
	}
	m.handler = handler
	m.client = modbus.NewClient(handler)
	return nil
}

// caller must hold the mutex.
func (m *Modbus) closeIfNeeded(e error) {
	if e == nil {
		return
	}
	if errors.Is(e, syscall.EPIPE) {
		logrus.Warn("modbus reconnect due to broken pipe")
	} else if errors.Is(e, os.ErrDeadlineExceeded) {
		logrus.Warn("modbus reconnect due to i/o timeout")
	} else {
		return
	}
	err := m.close()
	if err != nil {
		logrus.Errorf("error closing modbus client: %s", err)
	}
}

func (m *Modbus) FlowTemperature() (float64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	err := m.connect()
	if err != nil {
		return 0, err
	}

	b, err := m.client.ReadInputRegisters(m.register, 1)
	if err != nil {
		m.closeIfNeeded(err)
		return 0, fmt.Errorf("error reading address %d: %w", m.register, err)
	}
	return float64(Decode(b)) / m.scale, nil
}

func (m *Modbus) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.close()
}

func (m *Modbus) close() error {
	if m.handler == nil {
		return nil
	}
	err := m.handler.Close()
	m.handler = nil
	m.client = nil
	return err
}

// Decode High byte first high word first (big endian)
func Decode(data []byte) int {
	switch len(data) {
	case 1:
		var i int8
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	case 2:
		var i int16
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	case 4:
		var i int32
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	case 8:
		var i int64
		binary.Read(bytes.NewBuffer(data), binary.BigEndian, &i)
		return int(i)
	}

	return 0
}
