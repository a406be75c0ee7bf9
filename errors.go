package thermalmgr

import (
	"errors"
	"fmt"

	"github.com/gurupras/thermalmgr/interfaces"
)

var (
	ErrInvalidArg     = errors.New("thermal_mgr: invalid argument")
	ErrInvalidState   = errors.New("thermal_mgr: manager not initialized")
	ErrQueueFull      = errors.New("thermal_mgr: queue full")
	ErrInvalidEvent   = errors.New("thermal_mgr: invalid event")
	ErrAlreadyRunning = errors.New("thermal_mgr: already running")
	ErrNotRunning     = errors.New("thermal_mgr: not running")
	ErrNoReading      = errors.New("thermal_mgr: no temperature reading yet")
)

// SensorReadError wraps a failure returned by the sensor transport.
type SensorReadError struct {
	Address interfaces.DeviceAddress
	Err     error
}

func (e *SensorReadError) Error() string {
	return fmt.Sprintf("thermal_mgr: failed to read sensor at %v: %v", e.Address, e.Err)
}

func (e *SensorReadError) Unwrap() error {
	return e.Err
}
