package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin"
	"github.com/gurupras/thermalmgr"
	"github.com/gurupras/thermalmgr/interfaces"
	"github.com/gurupras/thermalmgr/lm75bd"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	app          = kingpin.New("thermalmgr", "Thermal supervision manager")
	conf         = app.Arg("conf", "Configuration file (YAML)").Required().ExistingFile()
	verbose      = app.Flag("verbose", "Verbose logging").Short('v').Default("false").Bool()
	sensorSource = app.Flag("sensor", "Override conf sensor type (lm75bd, http, ws, sim)").Short('S').Default("").String()
	overTemp     = app.Flag("over-temperature", "Override conf over-temperature threshold").Short('t').Default("-100").Float64()
	hysteresis   = app.Flag("hysteresis", "Override conf hysteresis threshold").Short('T').Default("-100").Float64()
)

func buildSensor(cfg *thermalmgr.Config) (interfaces.TemperatureSensorInterface, io.Closer, error) {
	switch cfg.Sensor.Type {
	case thermalmgr.SensorLM75BD:
		if _, err := host.Init(); err != nil {
			return nil, nil, err
		}
		bus, err := i2creg.Open(cfg.Sensor.Bus)
		if err != nil {
			return nil, nil, err
		}
		return lm75bd.New(bus, cfg.Sensor.Name), bus, nil
	case thermalmgr.SensorHTTP:
		return &thermalmgr.HTTPProbe{Url: cfg.Sensor.URL, Name: cfg.Sensor.Name}, nil, nil
	case thermalmgr.SensorWebsocket:
		p := &thermalmgr.WSProbe{Url: cfg.Sensor.URL, Name: cfg.Sensor.Name}
		return p, p, nil
	default:
		return thermalmgr.NewSimProbe(cfg.Sensor.Name, 25.0), nil, nil
	}
}

// programSensor copies the thermal thresholds into the LM75BD so its OS
// output fires at the same temperatures the manager classifies against.
func programSensor(dev *lm75bd.Device, cfg *thermalmgr.Config) error {
	mode := lm75bd.Comparator
	if cfg.Alert.Enabled() {
		mode = lm75bd.Interrupt
	}
	return dev.Configure(cfg.Thermal.Address, lm75bd.Config{
		Mode:           mode,
		ActiveHigh:     cfg.Alert.ActiveHigh,
		FaultQueue:     1,
		OverTemp:       cfg.Thermal.OverTemperature,
		HysteresisTemp: cfg.Thermal.Hysteresis,
	})
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := thermalmgr.LoadConfig(*conf)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *sensorSource != "" {
		cfg.Sensor.Type = *sensorSource
	}
	if *overTemp != -100 {
		cfg.Thermal.OverTemperature = *overTemp
	}
	if *hysteresis != -100 {
		cfg.Thermal.Hysteresis = *hysteresis
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	sensor, closer, err := buildSensor(cfg)
	if err != nil {
		log.Fatalf("Failed to acquire temperature sensor: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	if err := sensor.Initialize(); err != nil {
		log.Fatalf("Failed to initialize temperature sensor: %v", err)
	}
	if dev, ok := sensor.(*lm75bd.Device); ok && cfg.Sensor.ProgramThresholds {
		if err := programSensor(dev, cfg); err != nil {
			log.Fatalf("Failed to program sensor thresholds: %v", err)
		}
	}

	sinks := thermalmgr.MultiSink{thermalmgr.NewConsoleSink()}
	if cfg.CoolingElement != nil {
		sinks = append(sinks, thermalmgr.NewRelaySink(cfg.CoolingElement))
	}

	mgr, err := thermalmgr.New(cfg.Thermal, sensor, sinks)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := mgr.Start(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Alert.Enabled() {
		pin, err := thermalmgr.OpenAlertPin(cfg.Alert.Pin, cfg.Alert.ActiveHigh)
		if err != nil {
			log.Fatalf("Failed to open alert pin %v: %v", cfg.Alert.Pin, err)
		}
		go thermalmgr.NewAlertPin(pin, cfg.Alert.PollInterval(), mgr.HandleInterrupt).Run(ctx)
	}

	if interval := cfg.MeasureInterval(); interval > 0 {
		go thermalmgr.NewSampler(interval, mgr).Run(ctx)
	}

	if cfg.Webserver != nil {
		go func() {
			if err := cfg.Webserver.Start(mgr); err != nil {
				log.Errorf("webserver: %v", err)
			}
		}()
		defer cfg.Webserver.Stop()
	}

	<-ctx.Done()
	log.Infof("Shutting down!")
	if err := mgr.Stop(); err != nil {
		log.Errorf("%v", err)
	}
	if n := mgr.DroppedInterrupts(); n > 0 {
		log.Warnf("%d interrupt notices were dropped", n)
	}
}
