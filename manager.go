package thermalmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gurupras/thermalmgr/interfaces"
	"github.com/gurupras/thermalmgr/metrics"
	log "github.com/sirupsen/logrus"
)

// Manager owns the event queue and the single goroutine that talks to the
// temperature sensor. Every sensor read goes through that goroutine, so the
// bus needs no lock of its own.
type Manager struct {
	config ThermalConfig
	sensor interfaces.TemperatureSensorInterface
	sink   interfaces.NotificationSink
	log    *log.Entry

	lifecycle sync.Mutex
	started   bool
	queue     atomic.Pointer[Queue]
	running   atomic.Bool
	done      chan struct{}

	// Producers hold sendMu for reading across the state check and the
	// enqueue. Setting stopping takes it for writing, so nothing can land
	// behind the shutdown event.
	sendMu   sync.RWMutex
	stopping atomic.Bool

	dropped atomic.Uint64

	// Written only by the run loop.
	snapshotMu sync.RWMutex
	state      interfaces.State
	lastTemp   float64
	hasReading bool

	listenersMu sync.Mutex
	listeners   map[string]chan *interfaces.ThermalState
}

func New(config ThermalConfig, sensor interfaces.TemperatureSensorInterface, sink interfaces.NotificationSink) (*Manager, error) {
	if sensor == nil {
		return nil, fmt.Errorf("%w: sensor is nil", ErrInvalidArg)
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: notification sink is nil", ErrInvalidArg)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		config:    config,
		sensor:    sensor,
		sink:      sink,
		log:       log.WithField("service", "thermal_mgr"),
		state:     interfaces.UNKNOWN,
		listeners: make(map[string]chan *interfaces.ThermalState),
	}, nil
}

func (m *Manager) SetLogger(entry *log.Entry) {
	m.log = entry
}

// Start creates the event queue and launches the manager loop. A Manager
// runs once: Start after Stop returns ErrInvalidState.
func (m *Manager) Start() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.started {
		if m.running.Load() {
			return ErrAlreadyRunning
		}
		return fmt.Errorf("%w: manager already stopped", ErrInvalidState)
	}
	q, err := NewQueue(m.config.QueueLength)
	if err != nil {
		return err
	}
	m.started = true
	m.done = make(chan struct{})
	m.queue.Store(q)
	m.running.Store(true)

	go m.run(q, m.done)
	m.log.Infof("started: sensor=%v address=%v over=%.2f hysteresis=%.2f queue=%d",
		m.sensor.GetName(), m.config.Address, m.config.OverTemperature, m.config.Hysteresis, q.Cap())
	return nil
}

// Stop closes the queue to producers, queues a shutdown event behind any
// pending work and waits for the loop to drain and exit.
func (m *Manager) Stop() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	q := m.queue.Load()
	if q == nil || !m.running.Load() {
		return ErrNotRunning
	}
	// The loop may exit on its own (an externally sent shutdown) while we
	// wait for a slot.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-m.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := m.requestShutdown(ctx, q); err != nil {
		select {
		case <-m.done:
			return nil
		default:
		}
		if !errors.Is(err, ErrInvalidState) {
			return err
		}
	}
	<-m.done
	return nil
}

// requestShutdown marks the manager as stopping and queues EventShutdown.
// ErrInvalidState means a shutdown is already on its way.
func (m *Manager) requestShutdown(ctx context.Context, q *Queue) error {
	m.sendMu.Lock()
	if m.stopping.Load() || !m.running.Load() {
		m.sendMu.Unlock()
		return ErrInvalidState
	}
	m.stopping.Store(true)
	m.sendMu.Unlock()

	if err := q.Producer().Send(ctx, Event{Type: EventShutdown}); err != nil {
		m.stopping.Store(false)
		return err
	}
	return nil
}

// SendEvent enqueues e, waiting at most the configured send timeout for a
// free slot.
func (m *Manager) SendEvent(e Event) error {
	if !e.Type.Valid() {
		metrics.ObserveSendFailure("invalid_argument")
		return fmt.Errorf("%w: unknown event type %v", ErrInvalidArg, e.Type)
	}
	q := m.queue.Load()
	if q == nil {
		metrics.ObserveSendFailure("invalid_state")
		return ErrInvalidState
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.config.SendTimeout)
	defer cancel()
	if e.Type == EventShutdown {
		err := m.requestShutdown(ctx, q)
		if errors.Is(err, ErrQueueFull) {
			metrics.ObserveSendFailure("queue_full")
		} else if err != nil {
			metrics.ObserveSendFailure("invalid_state")
		}
		return err
	}

	m.sendMu.RLock()
	defer m.sendMu.RUnlock()
	if !m.running.Load() || m.stopping.Load() {
		metrics.ObserveSendFailure("invalid_state")
		return ErrInvalidState
	}
	if err := q.Producer().Send(ctx, e); err != nil {
		metrics.ObserveSendFailure("queue_full")
		return err
	}
	return nil
}

func (m *Manager) RequestMeasurement() error {
	return m.SendEvent(Event{Type: EventMeasureTempCmd})
}

func (m *Manager) run(q *Queue, done chan struct{}) {
	defer close(done)
	defer m.running.Store(false)

	m.log.Debugf("running")
	for {
		e, err := q.Receive(context.Background())
		if err != nil {
			m.log.Errorf("receive failed: %v", err)
			return
		}
		metrics.QueueDepth.Set(float64(q.Len()))

		if e.Type == EventShutdown {
			m.log.Infof("shutting down")
			m.discardPending(q)
			return
		}
		m.handleEvent(e)
	}
}

// discardPending empties the queue after a shutdown so nothing is left
// unaccounted for.
func (m *Manager) discardPending(q *Queue) {
	for {
		e, ok := q.TryReceive()
		if !ok {
			return
		}
		metrics.DiscardedEvents.Inc()
		m.log.Warnf("discarding %v queued behind shutdown", e.Type)
	}
}

func (m *Manager) handleEvent(e Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("panic recovered while handling %v: %v", e.Type, r)
		}
	}()

	switch e.Type {
	case EventMeasureTempCmd, EventOsInterrupt:
	default:
		metrics.InvalidEvents.Inc()
		m.log.Errorf("%v", fmt.Errorf("%w: %v", ErrInvalidEvent, e.Type))
		return
	}

	temp, err := m.sensor.ReadTemperature(m.config.Address)
	if err != nil {
		metrics.SensorReadErrors.Inc()
		m.log.Errorf("%v", &SensorReadError{Address: m.config.Address, Err: err})
		return
	}

	m.recordReading(temp)
	m.sink.OnTelemetry(temp)
	metrics.ObserveTelemetry(temp)
	m.log.Debugf("temp=%v event=%v", temp, e.Type)

	if e.Type == EventMeasureTempCmd {
		m.publish(temp, metrics.KindTelemetry)
		return
	}

	switch Classify(temp, m.config) {
	case ConditionOverTemperature:
		m.setState(temp, interfaces.OVER_TEMPERATURE)
		m.sink.OnOverTemperature()
		metrics.ObserveNotification(metrics.KindOverTemperature)
		m.publish(temp, metrics.KindOverTemperature)
		m.acknowledgeInterrupt()
	case ConditionSafe:
		m.setState(temp, interfaces.NOMINAL)
		m.sink.OnSafeConditions()
		metrics.ObserveNotification(metrics.KindSafeConditions)
		m.publish(temp, metrics.KindSafeConditions)
		m.acknowledgeInterrupt()
	default:
		m.log.Debugf("temp=%.2f inside dead band [%.2f, %.2f]", temp, m.config.Hysteresis, m.config.OverTemperature)
		m.publish(temp, metrics.KindTelemetry)
	}
}

func (m *Manager) acknowledgeInterrupt() {
	ack, ok := m.sensor.(interfaces.InterruptAcknowledger)
	if !ok {
		return
	}
	if err := ack.AcknowledgeInterrupt(m.config.Address); err != nil {
		m.log.Errorf("failed to acknowledge interrupt at %v: %v", m.config.Address, err)
	}
}

func (m *Manager) recordReading(temp float64) {
	m.snapshotMu.Lock()
	m.lastTemp = temp
	m.hasReading = true
	m.snapshotMu.Unlock()
}

func (m *Manager) setState(temp float64, state interfaces.State) {
	m.snapshotMu.Lock()
	last := m.state
	m.state = state
	m.snapshotMu.Unlock()

	if last != state {
		m.log.Infof("temp=%.2f over=%.2f hysteresis=%.2f -> %v", temp, m.config.OverTemperature, m.config.Hysteresis, state)
	}
}

// GetTemperature returns the last successful reading. It never touches the
// sensor; use RequestMeasurement to refresh it.
func (m *Manager) GetTemperature() (float64, error) {
	m.snapshotMu.RLock()
	defer m.snapshotMu.RUnlock()
	if !m.hasReading {
		return 0, ErrNoReading
	}
	return m.lastTemp, nil
}

func (m *Manager) GetState() interfaces.State {
	m.snapshotMu.RLock()
	defer m.snapshotMu.RUnlock()
	return m.state
}

func (m *Manager) GetLimits() (float64, float64) {
	return m.config.OverTemperature, m.config.Hysteresis
}

func (m *Manager) Config() ThermalConfig {
	return m.config
}

// RegisterChannel subscribes ch to state updates under name. Delivery is
// best effort: a full channel misses the update.
func (m *Manager) RegisterChannel(ch chan *interfaces.ThermalState, name string) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners[name] = ch
}

func (m *Manager) UnregisterChannel(name string) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	delete(m.listeners, name)
}

func (m *Manager) publish(temp float64, event string) {
	st := &interfaces.ThermalState{
		Temperature: temp,
		Timestamp:   time.Now().UnixMilli(),
		State:       m.GetState(),
		Event:       event,
	}

	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	for name, ch := range m.listeners {
		select {
		case ch <- st:
		default:
			m.log.Debugf("listener %v is full, dropping state update", name)
		}
	}
}
