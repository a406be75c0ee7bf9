package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/gurupras/thermalmgr"
	"github.com/gurupras/thermalmgr/webserver"
	log "github.com/sirupsen/logrus"
)

// A development server: the thermal manager runs against a simulated sensor
// that drifts around the thresholds and fires interrupts on its own.
var (
	app      = kingpin.New("webserver", "Thermal manager webserver (simulated sensor)")
	port     = app.Flag("port", "webserver port").Short('p').Default("8080").Int()
	start    = app.Flag("temperature", "Initial simulated temperature").Short('t').Default("76").Float64()
	interval = app.Flag("interval", "Simulation step").Short('i').Default("1s").Duration()
	verbose  = app.Flag("verbose", "Verbose logging").Short('v').Default("false").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	probe := thermalmgr.NewSimProbe("sim", *start)
	cfg := thermalmgr.DefaultThermalConfig()
	mgr, err := thermalmgr.New(cfg, probe, thermalmgr.NewConsoleSink())
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := mgr.Start(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go simulate(ctx, probe, mgr, cfg, *start)
	go thermalmgr.NewSampler(*interval, mgr).Run(ctx)

	ws := webserver.New()
	ws.Port = *port
	go func() {
		if err := ws.Start(mgr); err != nil {
			log.Fatalf("%v", err)
		}
	}()

	<-ctx.Done()
	ws.Stop()
	if err := mgr.Stop(); err != nil {
		log.Errorf("%v", err)
	}
}

// simulate random-walks the probe and raises an interrupt whenever the
// value leaves the dead band, the way an LM75BD in interrupt mode would.
func simulate(ctx context.Context, probe *thermalmgr.SimProbe, mgr *thermalmgr.Manager, cfg thermalmgr.ThermalConfig, temp float64) {
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			temp += rand.Float64() - 0.5
			probe.Set(temp)
			if thermalmgr.Classify(temp, cfg) != thermalmgr.ConditionDeadBand {
				mgr.HandleInterrupt()
			}
		}
	}
}
