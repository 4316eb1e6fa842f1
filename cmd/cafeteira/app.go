package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/cafeteira/internal/button"
	"github.com/sweeney/cafeteira/internal/command"
	"github.com/sweeney/cafeteira/internal/config"
	"github.com/sweeney/cafeteira/internal/device"
	"github.com/sweeney/cafeteira/internal/display"
	"github.com/sweeney/cafeteira/internal/gpio"
	"github.com/sweeney/cafeteira/internal/logic"
	"github.com/sweeney/cafeteira/internal/mqtt"
	"github.com/sweeney/cafeteira/internal/network"
	"github.com/sweeney/cafeteira/internal/sem"
	"github.com/sweeney/cafeteira/internal/sensor"
	"github.com/sweeney/cafeteira/internal/status"
	"github.com/sweeney/cafeteira/internal/supervisor"
	"github.com/sweeney/cafeteira/internal/telemetry"
)

// collaborators are the hardware and transport pieces the daemon drives.
type collaborators struct {
	relay  gpio.Relay
	edges  gpio.EdgeSource
	reader sensor.Reader
	panel  display.Panel
	client mqtt.Client
	probe  network.Probe
	// store may be nil.
	store *config.StateStore
}

// ticks drive the periodic loops.
type ticks struct {
	network   <-chan time.Time
	telemetry <-chan time.Time
}

// app is the wired daemon.
type app struct {
	topics mqtt.Topics
	client mqtt.Client
	edges  gpio.EdgeSource

	state     *device.State
	coord     *display.Coordinator
	monitor   *button.Monitor
	consumer  *button.Consumer
	handler   *command.Handler
	super     *supervisor.Supervisor
	watcher   *network.Watcher
	telemetry *telemetry.Loop
	tracker   *status.Tracker

	messagingReady *sem.Binary

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newApp(cfg config.Config, c collaborators, start time.Time) (*app, error) {
	state, err := device.NewState(c.relay)
	if err != nil {
		return nil, fmt.Errorf("init state: %w", err)
	}
	if c.store != nil {
		state.RestoreScheduled(c.store.Scheduled())
	}

	a := &app{
		topics:         mqtt.NewTopics(cfg.TopicPrefix),
		client:         c.client,
		edges:          c.edges,
		state:          state,
		monitor:        button.NewMonitor(cfg.Debounce),
		messagingReady: sem.NewBinary(),
	}
	a.coord = display.NewCoordinator(c.panel, state, cfg.DisplayLockTimeout)
	a.consumer = button.NewConsumer(a.monitor, state, a.coord, c.client, a.topics.Heating,
		logic.ManualStatus, logic.HeatingPayload)

	var store command.ScheduleStore
	if c.store != nil {
		store = c.store
	}
	a.handler = command.NewHandler(state, a.coord, a.topics, store)

	networkReady := sem.NewBinary()
	a.super = supervisor.New(networkReady, c.client, a.messagingReady, supervisor.DefaultRetry)
	a.watcher = network.NewWatcher(c.probe, networkReady, a.super.NetworkLost)
	a.telemetry = telemetry.NewLoop(c.reader, state, a.coord, c.client, a.topics.Sensor)

	a.tracker = status.NewTracker(start, status.Config{
		DebounceMs:       cfg.Debounce.Milliseconds(),
		TelemetryMs:      cfg.TelemetryInterval.Milliseconds(),
		DisplayTimeoutMs: cfg.DisplayLockTimeout.Milliseconds(),
		HeartbeatMs:      cfg.Heartbeat.Milliseconds(),
		Broker:           cfg.Broker,
		TopicPrefix:      cfg.TopicPrefix,
		HTTPPort:         cfg.HTTPAddr,
	})
	a.syncTracker()
	return a, nil
}

// start shows the boot screen, begins edge delivery and launches the
// concurrent loops. stop must be called to end them.
func (a *app) start(parent context.Context, t ticks) error {
	a.coord.Show(display.BootLines)

	if err := a.edges.Watch(func(tick time.Duration) {
		a.monitor.HandleEdge(tick)
	}); err != nil {
		return fmt.Errorf("watch button: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel

	a.goRun("network watcher", func() error { return a.watcher.Run(ctx, t.network) })
	a.goRun("connection supervisor", func() error { return a.super.Run(ctx) })
	a.goRun("command handler", func() error { return a.handler.Run(ctx, a.messagingReady, a.client) })
	a.goRun("telemetry", func() error { return a.telemetry.Run(ctx, t.telemetry) })
	a.goRun("button", func() error { return a.consumer.Run(ctx) })
	return nil
}

func (a *app) goRun(name string, fn func() error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Errorf("%s stopped: %v", name, err)
		}
	}()
}

// stop cancels the loops and waits for them to return.
func (a *app) stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// syncTracker copies live state into the status tracker.
func (a *app) syncTracker() {
	a.tracker.Update(a.state.Snapshot())
	a.tracker.SetPhase(a.super.Phase().String())
	a.tracker.SetMQTTConnected(a.client.IsConnected())

	presses, bounces := a.monitor.Counts()
	handled, ignored := a.handler.Counts()
	rendered, skipped, failed := a.coord.Stats()
	a.tracker.SetCounts(status.Counts{
		ButtonPresses:   presses,
		ButtonDiscarded: bounces,
		Commands:        handled,
		CommandsIgnored: ignored,
		Renders:         rendered,
		RendersSkipped:  skipped,
		RendersFailed:   failed,
	})

	if info := network.ReadInfo(); info != nil {
		a.tracker.SetNetwork(info)
	}
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
func (a *app) publishSystem(now time.Time, event, reason string, retained bool) error {
	a.syncTracker()
	snap := a.tracker.Snapshot()
	return mqtt.PublishSystem(a.client, a.topics.System, mqtt.SystemEvent{
		Timestamp:  now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
}
