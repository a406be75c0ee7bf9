package thermalmgr

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v2"

	log "github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	relayRetries    = 5
	relayRetryDelay = 500 * time.Millisecond
)

type RelayInterface interface {
	yaml.Unmarshaler
	ActiveHigh() bool
	Toggle(swtch int) error
	On(swtch int) error
	Off(swtch int) error
	IsOn(swtch int) (bool, error)
	GetSwitchMap() map[int]uint8
}

type ElementToggleDelayError struct {
	msg string
}

func (e ElementToggleDelayError) Error() string {
	return e.msg
}

// Element is a relay-driven actuator (a fan or cooler) with a minimum
// off time between activations.
type Element struct {
	relay       RelayInterface `yaml:"relay"`
	ToggleDelay time.Duration  `yaml:"toggle_delay_sec"`
	lastOff     time.Time
}

func NewElement(relay RelayInterface, toggleDelay time.Duration) *Element {
	return &Element{relay: relay, ToggleDelay: toggleDelay}
}

func (e *Element) On() error {
	if e.ToggleDelay > 0 && !e.lastOff.IsZero() {
		if time.Since(e.lastOff) < e.ToggleDelay {
			return ElementToggleDelayError{"Minimum delay not elapsed"}
		}
	}
	return e.relay.On(1)
}

func (e *Element) Off() error {
	e.lastOff = time.Now()
	return e.relay.Off(1)
}

func (e *Element) IsOn() (bool, error) {
	return e.relay.IsOn(1)
}

func (e *Element) UnmarshalYAML(unmarshal func(i interface{}) error) error {
	m := make(map[string]interface{})
	if err := unmarshal(&m); err != nil {
		return err
	}
	log.Debugf("element.UnmarshalYAML: m=%v", m)
	relayUnmarshaler := func(i interface{}) error {
		b, _ := yaml.Marshal(m["relay"])
		return yaml.Unmarshal(b, i)
	}
	if e.relay == nil {
		e.relay = &Relay{}
	}
	if err := e.relay.UnmarshalYAML(relayUnmarshaler); err != nil {
		return err
	}
	if _, ok := m["toggle_delay_sec"]; !ok {
		m["toggle_delay_sec"] = 0
	}
	val, ok := m["toggle_delay_sec"].(int)
	if !ok {
		return fmt.Errorf("Failed while parsing toggle_delay_sec: %v", m["toggle_delay_sec"])
	}
	e.ToggleDelay = time.Duration(val) * time.Second
	return nil
}

type Relay struct {
	activeHigh bool       `yaml:"active_high"`
	pins       []rpio.Pin `yaml:"pins"`
	SwitchMap  map[int]uint8
}

func (r *Relay) ActiveHigh() bool {
	return r.activeHigh
}

func (r *Relay) GetSwitchMap() map[int]uint8 {
	return r.SwitchMap
}

func (r *Relay) UnmarshalYAML(unmarshal func(i interface{}) error) error {
	activeHigh, pins, err := parseRelayYAML(unmarshal)
	if err != nil {
		return err
	}
	log.Debugf("Relay unmarshalling: active_high=%v pins=%v", activeHigh, pins)
	r.activeHigh = activeHigh
	return r.buildSwitchMap(pins)
}

func parseRelayYAML(unmarshal func(i interface{}) error) (bool, []int, error) {
	m := make(map[string]interface{})
	if err := unmarshal(&m); err != nil {
		return false, nil, err
	}
	if _, ok := m["active_high"]; !ok {
		m["active_high"] = false
	}
	activeHigh, ok := m["active_high"].(bool)
	if !ok {
		return false, nil, fmt.Errorf("Failed while parsing active_high: %v", m["active_high"])
	}
	pinsInterface, ok := m["pins"].([]interface{})
	if !ok {
		return false, nil, fmt.Errorf("Failed while parsing pins: %v", m["pins"])
	}
	pins := make([]int, len(pinsInterface))
	for i := 0; i < len(pins); i++ {
		if pins[i], ok = pinsInterface[i].(int); !ok {
			return false, nil, fmt.Errorf("Failed while parsing pin %v", pinsInterface[i])
		}
	}
	return activeHigh, pins, nil
}

func NewRelay(activeHigh bool, gpioPins []int) (*Relay, error) {
	r := &Relay{}
	r.activeHigh = activeHigh
	if err := r.buildSwitchMap(gpioPins); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Relay) buildSwitchMap(gpioPins []int) error {
	pins := make([]rpio.Pin, len(gpioPins))
	switchMap := make(map[int]uint8)

	if err := rpio.Open(); err != nil {
		return fmt.Errorf("Failed to call rpio.Open(): %v", err)
	}

	for idx, gpioPin := range gpioPins {
		pin := rpio.Pin(gpioPin)
		switchMap[idx+1] = uint8(pin)
		pin.Output()
		pins[idx] = pin
	}
	r.pins = pins
	r.SwitchMap = switchMap
	return nil
}

func (r *Relay) pin(swtch int) (rpio.Pin, error) {
	p, ok := r.SwitchMap[swtch]
	if !ok {
		return 0, fmt.Errorf("Switch %v not initialized in relay", swtch)
	}
	return rpio.Pin(p), nil
}

func (r *Relay) Toggle(swtch int) error {
	pin, err := r.pin(swtch)
	if err != nil {
		return err
	}
	pin.Toggle()
	return nil
}

func (r *Relay) On(swtch int) error {
	return r.drive(swtch, true)
}

func (r *Relay) Off(swtch int) error {
	return r.drive(swtch, false)
}

// drive sets the switch and reads it back, retrying a bounded number of times.
func (r *Relay) drive(swtch int, on bool) error {
	pin, err := r.pin(swtch)
	if err != nil {
		return err
	}
	for i := 0; i < relayRetries; i++ {
		if on == r.activeHigh {
			pin.High()
		} else {
			pin.Low()
		}
		isOn, err := r.IsOn(swtch)
		if err != nil {
			return err
		}
		if isOn == on {
			return nil
		}
		log.Warnf("Failed to switch relay %v to on=%v...retrying", swtch, on)
		time.Sleep(relayRetryDelay)
	}
	return fmt.Errorf("Relay switch %v did not reach on=%v after %d attempts", swtch, on, relayRetries)
}

func (r *Relay) IsOn(swtch int) (bool, error) {
	pin, err := r.pin(swtch)
	if err != nil {
		return false, err
	}
	onState := rpio.Low
	if r.activeHigh {
		onState = rpio.High
	}
	return pin.Read() == onState, nil
}

// FakeRelay keeps switch state in memory. Switches are keyed by index
// starting at 1, like Relay.
type FakeRelay struct {
	mu         sync.Mutex
	activeHigh bool
	pins       []int
	SwitchMap  map[int]uint8
	on         map[int]bool
}

func NewFakeRelay(activeHigh bool, pins []int) *FakeRelay {
	f := &FakeRelay{}
	f.init(activeHigh, pins)
	return f
}

func (f *FakeRelay) init(activeHigh bool, pins []int) {
	f.activeHigh = activeHigh
	f.pins = pins
	f.SwitchMap = make(map[int]uint8)
	f.on = make(map[int]bool)
	for idx, pin := range pins {
		f.SwitchMap[idx+1] = uint8(pin)
	}
}

func (f *FakeRelay) ActiveHigh() bool {
	return f.activeHigh
}

func (f *FakeRelay) GetSwitchMap() map[int]uint8 {
	return f.SwitchMap
}

func (f *FakeRelay) set(swtch int, fn func(bool) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.SwitchMap[swtch]; !ok {
		return fmt.Errorf("Switch %v not initialized in relay", swtch)
	}
	f.on[swtch] = fn(f.on[swtch])
	return nil
}

func (f *FakeRelay) Toggle(swtch int) error {
	return f.set(swtch, func(on bool) bool { return !on })
}

func (f *FakeRelay) On(swtch int) error {
	return f.set(swtch, func(bool) bool { return true })
}

func (f *FakeRelay) Off(swtch int) error {
	return f.set(swtch, func(bool) bool { return false })
}

func (f *FakeRelay) IsOn(swtch int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.SwitchMap[swtch]; !ok {
		return false, fmt.Errorf("Switch %v not initialized in relay", swtch)
	}
	return f.on[swtch], nil
}

func (f *FakeRelay) UnmarshalYAML(unmarshal func(i interface{}) error) error {
	activeHigh, pins, err := parseRelayYAML(unmarshal)
	if err != nil {
		return err
	}
	f.init(activeHigh, pins)
	return nil
}
