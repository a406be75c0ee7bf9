package main

import (
	"bufio"
	"os"

	"github.com/alecthomas/kingpin"
	"github.com/gurupras/thermalmgr"
	log "github.com/sirupsen/logrus"
)

// relay-control drives the cooling element described in a thermalmgr
// configuration file by hand: every newline on stdin toggles it.
var (
	app     = kingpin.New("relay-control", "Cooling relay control")
	conf    = app.Arg("conf", "Configuration file (YAML)").Required().ExistingFile()
	verbose = app.Flag("verbose", "Verbose logging").Short('v').Default("false").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := thermalmgr.LoadConfig(*conf)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.CoolingElement == nil {
		log.Fatalf("No cooling_element in %v", *conf)
	}
	sink := thermalmgr.NewRelaySink(cfg.CoolingElement)

	reader := bufio.NewReader(os.Stdin)
	for {
		if _, err := reader.ReadString('\n'); err != nil {
			return
		}
		on, err := cfg.CoolingElement.IsOn()
		if err != nil {
			log.Fatalf("Failed to read relay state: %v", err)
		}
		if on {
			log.Infof("Switching cooling off")
			sink.OnSafeConditions()
		} else {
			log.Infof("Switching cooling on")
			sink.OnOverTemperature()
		}
	}
}
