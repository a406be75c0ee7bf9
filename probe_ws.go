package thermalmgr

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gurupras/thermalmgr/interfaces"
)

// WSProbe reads temperatures pushed by a remote sensor over a websocket.
// Each read consumes the next message; the address is ignored because the
// stream carries a single sensor.
type WSProbe struct {
	Url  string `yaml:"url"`
	Name string `yaml:"name"`

	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *WSProbe) Initialize() error {
	c, _, err := websocket.DefaultDialer.Dial(p.Url, nil)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.conn = c
	p.mu.Unlock()
	return nil
}

func (p *WSProbe) ReadTemperature(addr interfaces.DeviceAddress) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return 0, fmt.Errorf("Failed to get temperature: probe %v not initialized", p.Name)
	}

	var err error
	for i := 0; i < 5; i++ {
		var body []byte
		var temp float64
		p.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		if _, body, err = p.conn.ReadMessage(); err != nil {
			err = fmt.Errorf("Failed to get temperature: %v", err)
			break
		}
		temp, err = strconv.ParseFloat(strings.TrimSpace(string(body)), 64)
		if err == nil {
			return temp, nil
		}
		err = fmt.Errorf("Failed to get temperature: %v", err)
	}
	return 0, err
}

func (p *WSProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *WSProbe) GetName() string {
	return p.Name
}
