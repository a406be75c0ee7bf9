package thermalmgr

import (
	"fmt"
	"os"
	"time"

	"github.com/gurupras/thermalmgr/interfaces"
	"github.com/gurupras/thermalmgr/webserver"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	DefaultSensorAddress   interfaces.DeviceAddress = 0x48
	DefaultOverTemperature                          = 80.0
	DefaultHysteresis                               = 75.0
	DefaultSendTimeout                              = 100 * time.Millisecond

	maxSensorAddress = 0x7f
)

const (
	SensorLM75BD    = "lm75bd"
	SensorHTTP      = "http"
	SensorWebsocket = "ws"
	SensorSim       = "sim"
)

// ThermalConfig is fixed for the lifetime of a Manager.
type ThermalConfig struct {
	Address         interfaces.DeviceAddress
	OverTemperature float64
	Hysteresis      float64
	QueueLength     int
	SendTimeout     time.Duration
}

func DefaultThermalConfig() ThermalConfig {
	return ThermalConfig{
		Address:         DefaultSensorAddress,
		OverTemperature: DefaultOverTemperature,
		Hysteresis:      DefaultHysteresis,
		QueueLength:     DefaultQueueLength,
		SendTimeout:     DefaultSendTimeout,
	}
}

func (c ThermalConfig) Validate() error {
	if c.Hysteresis >= c.OverTemperature {
		return fmt.Errorf("%w: hysteresis %.2f must be below over-temperature threshold %.2f", ErrInvalidArg, c.Hysteresis, c.OverTemperature)
	}
	if c.QueueLength <= 0 {
		return fmt.Errorf("%w: queue length must be positive, got %d", ErrInvalidArg, c.QueueLength)
	}
	// A zero timeout never waits and an unbounded one can hang the caller.
	if c.SendTimeout <= 0 {
		return fmt.Errorf("%w: send timeout must be positive, got %v", ErrInvalidArg, c.SendTimeout)
	}
	return nil
}

func (c *ThermalConfig) UnmarshalYAML(unmarshal func(i interface{}) error) error {
	raw := struct {
		Address         *int     `yaml:"address"`
		OverTemperature *float64 `yaml:"over_temperature"`
		Hysteresis      *float64 `yaml:"hysteresis"`
		QueueLength     *int     `yaml:"queue_length"`
		SendTimeoutMs   *int     `yaml:"send_timeout_ms"`
	}{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	log.Debugf("thermal.UnmarshalYAML raw=%+v", raw)

	*c = DefaultThermalConfig()
	if raw.Address != nil {
		if *raw.Address < 0 || *raw.Address > maxSensorAddress {
			return fmt.Errorf("Failed while parsing address: %#x is not a 7-bit I2C address", *raw.Address)
		}
		c.Address = interfaces.DeviceAddress(*raw.Address)
	}
	if raw.OverTemperature != nil {
		c.OverTemperature = *raw.OverTemperature
	}
	if raw.Hysteresis != nil {
		c.Hysteresis = *raw.Hysteresis
	}
	if raw.QueueLength != nil {
		c.QueueLength = *raw.QueueLength
	}
	if raw.SendTimeoutMs != nil {
		c.SendTimeout = time.Duration(*raw.SendTimeoutMs) * time.Millisecond
	}
	return nil
}

type SensorConfig struct {
	Type string `yaml:"type"`
	Bus  string `yaml:"bus"`
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
	// Program the sensor's own Tos/Thyst registers from the thermal thresholds.
	ProgramThresholds bool `yaml:"program_thresholds"`
}

type AlertConfig struct {
	Pin            int  `yaml:"pin"`
	ActiveHigh     bool `yaml:"active_high"`
	PollIntervalMs int  `yaml:"poll_interval_ms"`
}

func (a AlertConfig) Enabled() bool {
	return a.Pin > 0
}

func (a AlertConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMs) * time.Millisecond
}

type Config struct {
	Sensor             SensorConfig         `yaml:"sensor"`
	Thermal            ThermalConfig        `yaml:"thermal"`
	MeasureIntervalSec int                  `yaml:"measure_interval_sec"`
	Alert              AlertConfig          `yaml:"alert"`
	CoolingElement     *Element             `yaml:"cooling_element"`
	Webserver          *webserver.Webserver `yaml:"webserver"`
}

func DefaultConfig() Config {
	return Config{
		Sensor: SensorConfig{
			Type:              SensorLM75BD,
			Name:              "lm75bd",
			ProgramThresholds: true,
		},
		Thermal: DefaultThermalConfig(),
		Alert: AlertConfig{
			PollIntervalMs: int(DefaultAlertPollInterval / time.Millisecond),
		},
	}
}

// UnmarshalYAML fills in defaults before decoding. A CoolingElement set by
// the caller beforehand is kept, so tests can inject a FakeRelay.
func (c *Config) UnmarshalYAML(unmarshal func(i interface{}) error) error {
	cooling := c.CoolingElement
	*c = DefaultConfig()
	c.CoolingElement = cooling

	type plain Config
	return unmarshal((*plain)(c))
}

func (c *Config) MeasureInterval() time.Duration {
	return time.Duration(c.MeasureIntervalSec) * time.Second
}

func (c *Config) Validate() error {
	switch c.Sensor.Type {
	case SensorLM75BD, SensorSim:
	case SensorHTTP, SensorWebsocket:
		if c.Sensor.URL == "" {
			return fmt.Errorf("%w: sensor type %v requires a url", ErrInvalidArg, c.Sensor.Type)
		}
	default:
		return fmt.Errorf("%w: unknown sensor type '%v'", ErrInvalidArg, c.Sensor.Type)
	}
	if c.MeasureIntervalSec < 0 {
		return fmt.Errorf("%w: measure_interval_sec must not be negative", ErrInvalidArg)
	}
	return c.Thermal.Validate()
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Failed to read conf file: %v", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal yaml: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
