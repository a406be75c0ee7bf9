package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kingpin"
	"github.com/gurupras/thermalmgr/interfaces"
	"github.com/gurupras/thermalmgr/lm75bd"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	app     = kingpin.New("lm75bd-dump", "Print LM75BD registers")
	bus     = app.Flag("bus", "I2C bus name (empty for the first one)").Short('b').Default("").String()
	address = app.Flag("address", "Sensor I2C address").Short('a').Default("72").Uint16()
	ack     = app.Flag("ack", "Acknowledge a latched OS interrupt after reading").Bool()
	verbose = app.Flag("verbose", "Verbose logging").Short('v').Default("false").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	if _, err := host.Init(); err != nil {
		log.Fatalf("Failed to initialize host: %v", err)
	}
	b, err := i2creg.Open(*bus)
	if err != nil {
		log.Fatalf("Failed to open i2c bus '%v': %v", *bus, err)
	}
	defer b.Close()

	addr := interfaces.DeviceAddress(*address)
	dev := lm75bd.New(b, "")
	temp, err := dev.ReadTemperature(addr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	cfg, err := dev.ReadConfig(addr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	mode := "comparator"
	if cfg.Mode == lm75bd.Interrupt {
		mode = "interrupt"
	}
	fmt.Printf("address:     %v\n", addr)
	fmt.Printf("temperature: %.3f C\n", temp)
	fmt.Printf("tos:         %.1f C\n", cfg.OverTemp)
	fmt.Printf("thyst:       %.1f C\n", cfg.HysteresisTemp)
	fmt.Printf("os mode:     %v (active high: %v, fault queue: %d)\n", mode, cfg.ActiveHigh, cfg.FaultQueue)
	fmt.Printf("shutdown:    %v\n", cfg.Shutdown)

	if *ack {
		if err := dev.AcknowledgeInterrupt(addr); err != nil {
			log.Fatalf("%v", err)
		}
	}
}
