package interfaces

import "fmt"

type State string

const (
	NOMINAL          State = "nominal"
	OVER_TEMPERATURE State = "over_temperature"
	UNKNOWN          State = "unknown"
)

// DeviceAddress is the bus address of a temperature sensor (7-bit I2C for the LM75BD).
type DeviceAddress uint16

func (a DeviceAddress) String() string {
	return fmt.Sprintf("0x%02x", uint16(a))
}

type TemperatureSensorInterface interface {
	Initialize() error
	ReadTemperature(addr DeviceAddress) (float64, error)
	GetName() string
}

// InterruptAcknowledger is implemented by sensors whose alert output latches
// until the host acknowledges it.
type InterruptAcknowledger interface {
	AcknowledgeInterrupt(addr DeviceAddress) error
}

// NotificationSink receives fire-and-forget reports from the thermal manager.
type NotificationSink interface {
	OnTelemetry(tempC float64)
	OnOverTemperature()
	OnSafeConditions()
}

type ThermalState struct {
	Temperature float64                `json:"temperature"`
	Timestamp   int64                  `json:"timestamp"`
	State       State                  `json:"state"`
	Event       string                 `json:"event"`
	Extras      map[string]interface{} `json:"extras,omitempty"`
}

type ThermalListenerInterface interface {
	RegisterChannel(chan *ThermalState, string)
	UnregisterChannel(string)
}

type ThermalManagerInterface interface {
	ThermalListenerInterface
	GetTemperature() (float64, error)
	GetLimits() (overTemperature float64, hysteresis float64)
	GetState() State
	RequestMeasurement() error
}
