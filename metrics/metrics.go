// Package metrics holds the prometheus collectors exported by the thermal manager.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Temperature is the last successfully read sensor value.
	Temperature = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "thermalmgr_temperature_celsius",
		Help: "Last temperature read from the supervised sensor",
	})

	// Notifications counts reports delivered to the notification sink.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thermalmgr_notifications_total",
		Help: "Notifications emitted by kind (telemetry, over_temperature, safe_conditions)",
	}, []string{"kind"})

	SensorReadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thermalmgr_sensor_read_errors_total",
		Help: "Sensor reads that failed and abandoned their iteration",
	})

	InvalidEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thermalmgr_invalid_events_total",
		Help: "Events with an unrecognized kind that reached the dispatcher",
	})

	// DroppedInterrupts counts interrupt notices that found the queue full.
	DroppedInterrupts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thermalmgr_dropped_interrupts_total",
		Help: "Interrupt notices dropped because the event queue was full",
	})

	// DiscardedEvents counts events still queued when the loop shut down.
	DiscardedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thermalmgr_discarded_events_total",
		Help: "Events left in the queue behind a shutdown",
	})

	SendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thermalmgr_send_failures_total",
		Help: "Rejected SendEvent calls by reason",
	}, []string{"reason"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "thermalmgr_queue_depth",
		Help: "Events waiting in the manager queue after the last receive",
	})
)

const (
	KindTelemetry       = "telemetry"
	KindOverTemperature = "over_temperature"
	KindSafeConditions  = "safe_conditions"
)

// ObserveTelemetry records a successful reading.
func ObserveTelemetry(tempC float64) {
	Temperature.Set(tempC)
	Notifications.WithLabelValues(KindTelemetry).Inc()
}

func ObserveNotification(kind string) {
	Notifications.WithLabelValues(kind).Inc()
}

func ObserveSendFailure(reason string) {
	SendFailures.WithLabelValues(reason).Inc()
}
