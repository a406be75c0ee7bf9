package lm75bd

import (
	"fmt"
	"math"
	"sync"

	"github.com/gurupras/thermalmgr/interfaces"
	"periph.io/x/conn/v3/i2c"
)

type OSMode int

const (
	Comparator OSMode = iota
	Interrupt
)

// Config mirrors the LM75BD configuration register plus the two
// threshold registers.
type Config struct {
	Shutdown       bool
	Mode           OSMode
	ActiveHigh     bool
	FaultQueue     int // 1, 2, 4 or 6 consecutive faults
	OverTemp       float64
	HysteresisTemp float64
}

var DefaultConfig = Config{
	Mode:           Comparator,
	FaultQueue:     1,
	OverTemp:       80.0,
	HysteresisTemp: 75.0,
}

// Device reads LM75BD sensors on a shared bus. The address is passed per
// call so one Device serves every sensor on that bus.
type Device struct {
	mu   sync.Mutex
	bus  i2c.Bus
	name string

	buf [3]byte
}

var (
	_ interfaces.TemperatureSensorInterface = (*Device)(nil)
	_ interfaces.InterruptAcknowledger      = (*Device)(nil)
)

func New(bus i2c.Bus, name string) *Device {
	if name == "" {
		name = "lm75bd"
	}
	return &Device{bus: bus, name: name}
}

func (d *Device) Initialize() error {
	if d.bus == nil {
		return ErrNoBus
	}
	return nil
}

func (d *Device) GetName() string {
	return d.name
}

func (d *Device) ReadTemperature(addr interfaces.DeviceAddress) (float64, error) {
	b, err := d.readWord(addr, regTemp)
	if err != nil {
		return 0, fmt.Errorf("lm75bd: read temperature at %v: %w", addr, err)
	}
	return decodeTemperature(b), nil
}

// AcknowledgeInterrupt clears a latched OS output by reading the
// configuration register.
func (d *Device) AcknowledgeInterrupt(addr interfaces.DeviceAddress) error {
	if _, err := d.readByte(addr, regConf); err != nil {
		return fmt.Errorf("lm75bd: acknowledge interrupt at %v: %w", addr, err)
	}
	return nil
}

func (d *Device) ReadConfig(addr interfaces.DeviceAddress) (Config, error) {
	conf, err := d.readByte(addr, regConf)
	if err != nil {
		return Config{}, fmt.Errorf("lm75bd: read config at %v: %w", addr, err)
	}
	tos, err := d.readWord(addr, regTos)
	if err != nil {
		return Config{}, fmt.Errorf("lm75bd: read tos at %v: %w", addr, err)
	}
	thyst, err := d.readWord(addr, regThyst)
	if err != nil {
		return Config{}, fmt.Errorf("lm75bd: read thyst at %v: %w", addr, err)
	}

	cfg := Config{
		Shutdown:       conf&confShutdown != 0,
		ActiveHigh:     conf&confOSPolHigh != 0,
		FaultQueue:     faultQueueCounts[(conf&confFaultQMsk)>>confFaultQPos],
		OverTemp:       decodeThreshold(tos),
		HysteresisTemp: decodeThreshold(thyst),
	}
	if conf&confOSIntMode != 0 {
		cfg.Mode = Interrupt
	}
	return cfg, nil
}

// Configure writes Tos, Thyst and then the configuration register.
func (d *Device) Configure(addr interfaces.DeviceAddress, cfg Config) error {
	conf, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	tos, err := encodeThreshold(cfg.OverTemp)
	if err != nil {
		return err
	}
	thyst, err := encodeThreshold(cfg.HysteresisTemp)
	if err != nil {
		return err
	}
	if cfg.HysteresisTemp >= cfg.OverTemp {
		return fmt.Errorf("%w: hysteresis %.1f must be below %.1f", ErrOutOfRange, cfg.HysteresisTemp, cfg.OverTemp)
	}

	if err := d.write(addr, regTos, tos[0], tos[1]); err != nil {
		return fmt.Errorf("lm75bd: write tos at %v: %w", addr, err)
	}
	if err := d.write(addr, regThyst, thyst[0], thyst[1]); err != nil {
		return fmt.Errorf("lm75bd: write thyst at %v: %w", addr, err)
	}
	if err := d.write(addr, regConf, conf); err != nil {
		return fmt.Errorf("lm75bd: write config at %v: %w", addr, err)
	}
	return nil
}

func (d *Device) readByte(addr interfaces.DeviceAddress, reg byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		return 0, ErrNoBus
	}
	d.buf[0] = reg
	if err := d.bus.Tx(uint16(addr), d.buf[:1], d.buf[1:2]); err != nil {
		return 0, err
	}
	return d.buf[1], nil
}

func (d *Device) readWord(addr interfaces.DeviceAddress, reg byte) ([2]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		return [2]byte{}, ErrNoBus
	}
	d.buf[0] = reg
	if err := d.bus.Tx(uint16(addr), d.buf[:1], d.buf[1:3]); err != nil {
		return [2]byte{}, err
	}
	return [2]byte{d.buf[1], d.buf[2]}, nil
}

func (d *Device) write(addr interfaces.DeviceAddress, reg byte, data ...byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		return ErrNoBus
	}
	w := append([]byte{reg}, data...)
	return d.bus.Tx(uint16(addr), w, nil)
}

// decodeTemperature converts the 11-bit two's complement value held in the
// top bits of the temperature register.
func decodeTemperature(b [2]byte) float64 {
	raw := int16(uint16(b[0])<<8|uint16(b[1])) >> 5
	return float64(raw) * tempResolution
}

func decodeThreshold(b [2]byte) float64 {
	raw := int16(uint16(b[0])<<8|uint16(b[1])) >> 7
	return float64(raw) * thresholdResolution
}

func encodeThreshold(t float64) ([2]byte, error) {
	if t < MinTemperature || t > MaxTemperature || math.IsNaN(t) {
		return [2]byte{}, fmt.Errorf("%w: %.2f", ErrOutOfRange, t)
	}
	raw := int16(math.Round(t / thresholdResolution))
	word := uint16(raw << 7)
	return [2]byte{byte(word >> 8), byte(word)}, nil
}

var faultQueueCounts = [4]int{1, 2, 4, 6}

func encodeConfig(cfg Config) (byte, error) {
	var conf byte
	if cfg.Shutdown {
		conf |= confShutdown
	}
	if cfg.Mode == Interrupt {
		conf |= confOSIntMode
	}
	if cfg.ActiveHigh {
		conf |= confOSPolHigh
	}
	fq := cfg.FaultQueue
	if fq == 0 {
		fq = 1
	}
	for i, n := range faultQueueCounts {
		if n == fq {
			return conf | byte(i)<<confFaultQPos, nil
		}
	}
	return 0, fmt.Errorf("lm75bd: invalid fault queue length %d", cfg.FaultQueue)
}
