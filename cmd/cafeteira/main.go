// Command cafeteira controls a coffee maker heater from a push button and
// MQTT commands, and publishes temperature/humidity telemetry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/cafeteira/internal/config"
	"github.com/sweeney/cafeteira/internal/display"
	"github.com/sweeney/cafeteira/internal/gpio"
	"github.com/sweeney/cafeteira/internal/logic"
	"github.com/sweeney/cafeteira/internal/mqtt"
	"github.com/sweeney/cafeteira/internal/network"
	"github.com/sweeney/cafeteira/internal/sensor"
	"github.com/sweeney/cafeteira/internal/web"
)

// statusInterval is how often the status tracker is refreshed for HTTP.
const statusInterval = time.Second

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	setupLogging(cfg.Debug)

	if err := run(cfg); err != nil {
		logrus.Fatalf("fatal: %v", err)
	}
}

func setupLogging(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func run(cfg config.Config) error {
	store, err := config.OpenStateStore(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("init state store: %w", err)
	}

	reader, err := openSensor(cfg.Sensor)
	if err != nil {
		return err
	}
	defer reader.Close()

	// Print state mode
	if cfg.PrintState {
		return printState(os.Stdout, reader, store)
	}

	relay, err := gpio.NewRealRelay(cfg.Chip, cfg.PinRelay)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	defer relay.Close()

	edges := gpio.NewRealEdgeSource(cfg.Chip, cfg.PinButton)
	defer edges.Close()

	panel, err := openPanel(cfg)
	if err != nil {
		return err
	}
	defer panel.Close()

	client := mqtt.NewRealClient(clientOptions(cfg))
	defer client.Close()

	start := time.Now()
	a, err := newApp(cfg, collaborators{
		relay:  relay,
		edges:  edges,
		reader: reader,
		panel:  panel,
		client: client,
		probe:  network.InterfaceProbe(cfg.Interface),
		store:  store,
	}, start)
	if err != nil {
		return err
	}

	// Buffered by the client until the broker is reachable.
	if err := a.publishSystem(start, "STARTUP", "", true); err != nil {
		logrus.Warnf("failed to publish startup event: %v", err)
	} else {
		logrus.Infof("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, a.tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logrus.Infof("http status server listening on %s", cfg.HTTPAddr)
	}

	netTicker := time.NewTicker(network.DefaultPollInterval)
	defer netTicker.Stop()
	telTicker := time.NewTicker(cfg.TelemetryInterval)
	defer telTicker.Stop()

	if err := a.start(context.Background(), ticks{network: netTicker.C, telemetry: telTicker.C}); err != nil {
		return err
	}
	defer a.stop()

	logrus.Infof("started: debounce=%v telemetry=%v broker=%s heartbeat=%v prefix=%s",
		cfg.Debounce, cfg.TelemetryInterval, cfg.Broker, cfg.Heartbeat, cfg.TopicPrefix)

	statusTicker := time.NewTicker(statusInterval)
	defer statusTicker.Stop()

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(a, time.Now, statusTicker.C, heartbeat, sigCh)
}

// runLoop keeps the status tracker fresh, emits heartbeats and handles
// shutdown signals. The device loops run in their own goroutines.
func runLoop(a *app, now func() time.Time, statusTick, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			logrus.Infof("received %v, shutting down", s)
			reason := signalName(s)
			if err := a.publishSystem(now(), "SHUTDOWN", reason, true); err != nil {
				logrus.Warnf("failed to publish shutdown event: %v", err)
			} else {
				logrus.Infof("published shutdown event")
			}
			a.coord.Show(display.Lines{display.Title, "Desligando...", "", ""})
			return nil

		case <-heartbeat:
			if err := a.publishSystem(now(), "HEARTBEAT", "", false); err != nil {
				logrus.Warnf("heartbeat publish error: %v", err)
				continue
			}
			snap := a.tracker.Snapshot()
			logrus.Infof("heartbeat: uptime=%v phase=%s heating=%s presses=%d commands=%d",
				snap.Uptime().Truncate(time.Second), snap.Phase, logic.StateOf(snap.Device.Heating),
				snap.Counts.ButtonPresses, snap.Counts.Commands)

		case <-statusTick:
			a.syncTracker()
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func clientOptions(cfg config.Config) mqtt.Options {
	topics := mqtt.NewTopics(cfg.TopicPrefix)
	will, err := mqtt.FormatSystemPayload(mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		logrus.Warnf("format last will: %v", err)
	}

	opts := mqtt.Options{
		Broker:      cfg.Broker,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SystemTopic: topics.System,
		WillPayload: will,
	}
	if cfg.Broker == config.BrokerMDNS {
		opts.Broker = ""
		opts.Resolve = func(ctx context.Context) (string, error) {
			return network.DiscoverBroker(ctx, network.DefaultDiscoverTimeout)
		}
	}
	return opts
}

func openSensor(name string) (sensor.Reader, error) {
	dir, err := sensor.FindIIODevice(sensor.DefaultIIORoot, name)
	if err != nil {
		return nil, fmt.Errorf("init sensor: %w", err)
	}
	return sensor.NewIIOReader(dir), nil
}

func openPanel(cfg config.Config) (display.Panel, error) {
	if cfg.Display != config.DisplaySSD1306 {
		return display.NewLogPanel(), nil
	}
	p, err := display.NewSSD1306Panel(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("init display: %w", err)
	}
	return p, nil
}

func printState(w io.Writer, reader sensor.Reader, store *config.StateStore) error {
	r, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	fmt.Fprintf(w, "Temp: %dC, Umi: %d%%, Scheduled: %s\n",
		r.Temperature, r.Humidity, logic.StateOf(store.Scheduled()))
	return nil
}
