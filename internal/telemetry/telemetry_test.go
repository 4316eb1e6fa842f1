package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/cafeteira/internal/device"
	"github.com/sweeney/cafeteira/internal/gpio"
	"github.com/sweeney/cafeteira/internal/logic"
	"github.com/sweeney/cafeteira/internal/mqtt"
	"github.com/sweeney/cafeteira/internal/sensor"
)

const sensorTopic = "cafeteira/sensor"

type countingRefresher struct {
	mu sync.Mutex
	n  int
}

func (c *countingRefresher) Refresh() bool {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return true
}

func (c *countingRefresher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func reading(t, h int) sensor.Sample {
	return sensor.Sample{Reading: logic.Reading{Temperature: t, Humidity: h}}
}

func newLoop(t *testing.T, samples []sensor.Sample) (*Loop, *device.State, *mqtt.FakeClient, *countingRefresher) {
	t.Helper()
	state, err := device.NewState(gpio.NewFakeRelay())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	client := mqtt.NewFakeClient()
	ref := &countingRefresher{}
	return NewLoop(sensor.NewFakeReader(samples), state, ref, client, sensorTopic), state, client, ref
}

func TestStepPublishesOnlyChanges(t *testing.T) {
	loop, _, client, ref := newLoop(t, []sensor.Sample{
		reading(22, 50), reading(22, 50), reading(22, 50), reading(23, 50),
	})

	// (22,50) is published first.
	if !loop.Step() {
		t.Fatal("first reading should publish")
	}
	// Then (22,50) -> (22,50) -> (23,50): exactly one more publish.
	loop.Step()
	loop.Step()
	loop.Step()

	msgs := client.PublishedTo(sensorTopic)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(msgs))
	}
	if got := string(msgs[1].Payload); got != `{"temp":23,"umi":50}` {
		t.Errorf("payload: got %s", got)
	}
	if msgs[1].Retained {
		t.Error("telemetry must not be retained")
	}
	if ref.count() != 4 {
		t.Errorf("refreshes: got %d, want 4", ref.count())
	}
}

func TestStepHumidityChangeAlonePublishes(t *testing.T) {
	loop, _, client, _ := newLoop(t, []sensor.Sample{reading(22, 50), reading(22, 51)})
	loop.Step()
	loop.Step()
	if n := len(client.PublishedTo(sensorTopic)); n != 2 {
		t.Errorf("expected 2 publishes, got %d", n)
	}
}

func TestStepSensorFailureRetainsValues(t *testing.T) {
	loop, state, client, ref := newLoop(t, []sensor.Sample{
		reading(22, 50),
		{Err: sensor.ErrNoReading},
		{Err: errors.New("checksum mismatch")},
		reading(22, 50),
	})

	loop.Step()
	loop.Step()
	loop.Step()

	snap := state.Snapshot()
	if snap.Reading != (logic.Reading{Temperature: 22, Humidity: 50}) {
		t.Errorf("stale reading not retained: %+v", snap.Reading)
	}
	if ref.count() != 3 {
		t.Errorf("each iteration must refresh once, got %d", ref.count())
	}

	loop.Step()
	if n := len(client.PublishedTo(sensorTopic)); n != 1 {
		t.Errorf("expected 1 publish across failures, got %d", n)
	}
}

func TestStepPublishFailureRetriesNextTick(t *testing.T) {
	loop, state, client, _ := newLoop(t, []sensor.Sample{reading(25, 40)})
	client.SetPublishError(errors.New("broker down"))

	if loop.Step() {
		t.Fatal("failed publish reported as published")
	}
	if state.Snapshot().HasPublished {
		t.Fatal("cache must not move when publish fails")
	}

	client.SetPublishError(nil)
	if !loop.Step() {
		t.Fatal("same reading should publish once the broker accepts it")
	}
	if got := state.Snapshot().Published; got != (logic.Reading{Temperature: 25, Humidity: 40}) {
		t.Errorf("cache: %+v", got)
	}
}

func TestRunStepsImmediatelyAndPerTick(t *testing.T) {
	loop, _, client, ref := newLoop(t, []sensor.Sample{reading(20, 40), reading(21, 40), reading(22, 40)})

	tick := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx, tick) }()

	tick <- time.Now()
	tick <- time.Now()
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run: got %v", err)
	}
	if n := len(client.PublishedTo(sensorTopic)); n != 3 {
		t.Errorf("expected 3 publishes, got %d", n)
	}
	if ref.count() != 3 {
		t.Errorf("refreshes: got %d, want 3", ref.count())
	}
}

func TestConcurrentStepsPublishOnce(t *testing.T) {
	loop, _, client, _ := newLoop(t, []sensor.Sample{reading(30, 60)})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Step()
		}()
	}
	wg.Wait()

	if n := len(client.PublishedTo(sensorTopic)); n != 1 {
		t.Errorf("identical readings published %d times", n)
	}
}
