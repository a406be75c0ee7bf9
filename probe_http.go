package thermalmgr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gurupras/thermalmgr/interfaces"
	"github.com/parnurzeal/gorequest"
)

const httpProbeAttempts = 5

// HTTPProbe reads a plain-text temperature from a remote sensor endpoint.
// The device address is passed as the "address" query parameter.
type HTTPProbe struct {
	Url     string        `yaml:"url"`
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"-"`
}

func (p *HTTPProbe) Initialize() error {
	if p.Url == "" {
		return fmt.Errorf("%w: http probe has no url", ErrInvalidArg)
	}
	if p.Timeout == 0 {
		p.Timeout = 1 * time.Second
	}
	return nil
}

func (p *HTTPProbe) ReadTemperature(addr interfaces.DeviceAddress) (float64, error) {
	var err error
	for i := 0; i < httpProbeAttempts; i++ {
		var temp float64
		if temp, err = p.get(addr); err == nil {
			return temp, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return 0, err
}

func (p *HTTPProbe) get(addr interfaces.DeviceAddress) (float64, error) {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 1 * time.Second
	}
	resp, body, errs := gorequest.New().Timeout(timeout).Get(p.Url).
		Param("address", addr.String()).End()
	if len(errs) > 0 {
		return 0, fmt.Errorf("Failed to get temperature: %v", errs)
	}
	if resp != nil && resp.StatusCode != 200 {
		return 0, fmt.Errorf("Failed to get temperature: Received response code: %v", resp.StatusCode)
	}
	temp, err := strconv.ParseFloat(strings.TrimSpace(body), 64)
	if err != nil {
		return 0, fmt.Errorf("Failed to get temperature: %v", err)
	}
	return temp, nil
}

func (p *HTTPProbe) GetName() string {
	return p.Name
}
