package device

// SensorReading is the telemetry of a zone temperature/humidity sensor.
type SensorReading struct {
	Battery     int     `json:"battery"`
	Humidity    float64 `json:"humidity"`
	LinkQuality int     `json:"linkquality"`
	Temperature float64 `json:"temperature"`
	Voltage     int     `json:"voltage"`
}

func (SensorReading) Kind() Kind { return KindSensor }

func DecodeSensor(payload []byte) (SensorReading, error) {
	s := SensorReading{}
	err := decodeStrict(payload, &s, "temperature")
	return s, err
}
