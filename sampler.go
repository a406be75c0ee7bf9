package thermalmgr

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

type MeasurementRequester interface {
	RequestMeasurement() error
}

// Sampler asks for a telemetry reading every Interval.
type Sampler struct {
	Interval time.Duration
	target   MeasurementRequester
	log      *log.Entry
}

func NewSampler(interval time.Duration, target MeasurementRequester) *Sampler {
	return &Sampler{
		Interval: interval,
		target:   target,
		log:      log.WithField("service", "sampler"),
	}
}

// Run blocks until ctx is done. Failed requests are logged and retried on
// the next tick.
func (s *Sampler) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		return ErrInvalidArg
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.target.RequestMeasurement(); err != nil {
				s.log.Errorf("Failed to request measurement: %v", err)
			}
		}
	}
}
