package thermalmgr

import (
	"github.com/gurupras/thermalmgr/metrics"
)

// HandleInterrupt is the entry point for the sensor's OS (over-temperature
// shutdown) interrupt. It only posts an EventOsInterrupt without blocking;
// the sensor is read later by the manager loop. When the queue is full, or
// the manager is not started or is stopping, the notice is dropped and
// counted.
func (m *Manager) HandleInterrupt() {
	err := ErrInvalidState
	// A held or pending write lock means a shutdown is being queued; drop rather than wait.
	if m.sendMu.TryRLock() {
		if q := m.queue.Load(); q != nil && m.running.Load() && !m.stopping.Load() {
			err = q.ISRProducer().TrySend(Event{Type: EventOsInterrupt})
		}
		m.sendMu.RUnlock()
	}
	if err == nil {
		return
	}

	n := m.dropped.Add(1)
	metrics.DroppedInterrupts.Inc()
	m.log.Warnf("dropped interrupt notice (%d total): %v", n, err)
}

// DroppedInterrupts reports how many interrupt notices could not be queued.
func (m *Manager) DroppedInterrupts() uint64 {
	return m.dropped.Load()
}
