package thermalmgr

import "fmt"

type EventType uint8

const (
	// EventMeasureTempCmd requests a reading that is reported as telemetry only.
	EventMeasureTempCmd EventType = iota
	// EventOsInterrupt is posted by the interrupt bridge when the sensor's
	// over-temperature shutdown (OS) output fires.
	EventOsInterrupt
	// EventShutdown makes the manager loop exit.
	EventShutdown
)

func (t EventType) String() string {
	switch t {
	case EventMeasureTempCmd:
		return "measure_temp_cmd"
	case EventOsInterrupt:
		return "os_interrupt"
	case EventShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t EventType) Valid() bool {
	return t <= EventShutdown
}

// Event is a fixed-size record; the temperature is always read by the
// manager, never carried in the event.
type Event struct {
	Type EventType
}
