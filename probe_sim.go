package thermalmgr

import (
	"sync"

	"github.com/gurupras/thermalmgr/interfaces"
)

type SimReading struct {
	Temp float64
	Err  error
}

// SimProbe is an in-memory sensor. Pushed readings are returned in order;
// once they run out every read returns the current temperature.
type SimProbe struct {
	mu       sync.Mutex
	name     string
	current  float64
	pending  []SimReading
	reads    int
	acks     int
	addrSeen []interfaces.DeviceAddress
}

func NewSimProbe(name string, temp float64) *SimProbe {
	return &SimProbe{name: name, current: temp}
}

func (s *SimProbe) Initialize() error {
	return nil
}

func (s *SimProbe) GetName() string {
	return s.name
}

func (s *SimProbe) Set(temp float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = temp
}

func (s *SimProbe) Push(readings ...SimReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, readings...)
}

func (s *SimProbe) ReadTemperature(addr interfaces.DeviceAddress) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	s.addrSeen = append(s.addrSeen, addr)
	if len(s.pending) > 0 {
		r := s.pending[0]
		s.pending = s.pending[1:]
		if r.Err != nil {
			return 0, r.Err
		}
		s.current = r.Temp
		return r.Temp, nil
	}
	return s.current, nil
}

func (s *SimProbe) AcknowledgeInterrupt(addr interfaces.DeviceAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks++
	return nil
}

func (s *SimProbe) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *SimProbe) Acks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acks
}

func (s *SimProbe) Addresses() []interfaces.DeviceAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interfaces.DeviceAddress(nil), s.addrSeen...)
}
