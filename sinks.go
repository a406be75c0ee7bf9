package thermalmgr

import (
	"errors"

	"github.com/gurupras/thermalmgr/interfaces"
	log "github.com/sirupsen/logrus"
)

var (
	_ interfaces.NotificationSink = (*ConsoleSink)(nil)
	_ interfaces.NotificationSink = (*RelaySink)(nil)
	_ interfaces.NotificationSink = MultiSink(nil)
)

// ConsoleSink writes notifications to the log.
type ConsoleSink struct {
	log *log.Entry
}

func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{log: log.WithField("service", "console")}
}

func (c *ConsoleSink) OnTelemetry(tempC float64) {
	c.log.Infof("Temperature telemetry: %f deg C", tempC)
}

func (c *ConsoleSink) OnOverTemperature() {
	c.log.Warnf("Over temperature detected!")
}

func (c *ConsoleSink) OnSafeConditions() {
	c.log.Infof("Returned to safe operating conditions!")
}

// RelaySink switches a cooling element on when the sensor reports
// over-temperature and off once conditions are safe again.
type RelaySink struct {
	element *Element
	log     *log.Entry
}

func NewRelaySink(element *Element) *RelaySink {
	return &RelaySink{
		element: element,
		log:     log.WithField("service", "cooling"),
	}
}

func (r *RelaySink) OnTelemetry(tempC float64) {}

func (r *RelaySink) OnOverTemperature() {
	if err := r.element.On(); err != nil {
		var delayErr ElementToggleDelayError
		if errors.As(err, &delayErr) {
			r.log.Debugf("cooling element not started yet: %v", err)
			return
		}
		r.log.Errorf("Failed to turn on cooling element: %v", err)
	}
}

func (r *RelaySink) OnSafeConditions() {
	if err := r.element.Off(); err != nil {
		r.log.Errorf("Failed to turn off cooling element: %v", err)
	}
}

// MultiSink forwards every notification to each sink in order.
type MultiSink []interfaces.NotificationSink

func (m MultiSink) OnTelemetry(tempC float64) {
	for _, s := range m {
		s.OnTelemetry(tempC)
	}
}

func (m MultiSink) OnOverTemperature() {
	for _, s := range m {
		s.OnOverTemperature()
	}
}

func (m MultiSink) OnSafeConditions() {
	for _, s := range m {
		s.OnSafeConditions()
	}
}
