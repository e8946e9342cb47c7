package flowsource

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonaz/gombus"
)

// MBus reads the flow temperature from a data record of an M-Bus heat meter
// on a serial device.
type MBus struct {
	device         string
	primaryAddress int
	record         int

	conn  gombus.Conn
	mutex sync.Mutex
}

func NewMBus(device string, primaryAddress, record int) *MBus {
	return &MBus{
		device:         device,
		primaryAddress: primaryAddress,
		record:         record,
	}
}

// caller must hold the mutex.
func (m *MBus) init() error {
	if m.conn != nil {
		return nil
	}
	c, err := gombus.DialSerial(m.device)
	if err != nil {
		return fmt.Errorf("error opening mbus device %s: %w", m.device, err)
	}
	m.conn = c
	return nil
}

func (m *MBus) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}

func (m *MBus) FlowTemperature() (float64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	err := m.init()
	if err != nil {
		return 0, err
	}

	frame, err := m.read()
	if err != nil {
		// reopen the port on the next read
		m.conn.Close()
		m.conn = nil
		return 0, err
	}
	return recordValue(frame, m.record)
}

// caller must hold the mutex.
func (m *MBus) read() (*gombus.DecodedFrame, error) {
	_, err := m.conn.Write(gombus.SndNKE(uint8(m.primaryAddress)))
	if err != nil {
		return nil, err
	}

	err = m.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	if err != nil {
		return nil, err
	}

	_, err = gombus.ReadSingleCharFrame(m.conn)
	if err != nil {
		return nil, err
	}

	return gombus.ReadSingleFrame(m.conn, m.primaryAddress)
}

func recordValue(frame *gombus.DecodedFrame, record int) (float64, error) {
	if record < 0 || record >= len(frame.DataRecords) {
		return 0, fmt.Errorf("mbus frame has %d data records, record %d not found", len(frame.DataRecords), record)
	}
	return frame.DataRecords[record].Value, nil
}
