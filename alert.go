package thermalmgr

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

const DefaultAlertPollInterval = 10 * time.Millisecond

// EdgeDetector is satisfied by rpio.Pin once edge detection is enabled.
type EdgeDetector interface {
	EdgeDetected() bool
}

// AlertPin watches the sensor's OS line and calls handler once per edge.
type AlertPin struct {
	pin      EdgeDetector
	interval time.Duration
	handler  func()
	log      *log.Entry
}

func NewAlertPin(pin EdgeDetector, pollInterval time.Duration, handler func()) *AlertPin {
	if pollInterval <= 0 {
		pollInterval = DefaultAlertPollInterval
	}
	return &AlertPin{
		pin:      pin,
		interval: pollInterval,
		handler:  handler,
		log:      log.WithField("service", "alert_pin"),
	}
}

// OpenAlertPin configures a GPIO as input with edge detection matching the
// OS output polarity. The LM75BD OS output is open-drain and active low by
// default.
func OpenAlertPin(gpio int, activeHigh bool) (rpio.Pin, error) {
	if err := rpio.Open(); err != nil {
		return 0, fmt.Errorf("Failed to call rpio.Open(): %v", err)
	}
	pin := rpio.Pin(gpio)
	pin.Input()
	if activeHigh {
		pin.PullDown()
		pin.Detect(rpio.RiseEdge)
	} else {
		pin.PullUp()
		pin.Detect(rpio.FallEdge)
	}
	return pin, nil
}

func (a *AlertPin) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.log.Debugf("watching alert line every %v", a.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.pin.EdgeDetected() {
				a.handler()
			}
		}
	}
}
