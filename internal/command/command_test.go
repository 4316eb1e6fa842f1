package command

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
	"github.com/sweeney/cafeteira/internal/sem"
)

var topics = mqtt.NewTopics("cafeteira")

// snapshotRefresher records the device snapshot seen at each refresh.
type snapshotRefresher struct {
	mu     sync.Mutex
	state  *device.State
	relay  *gpio.FakeRelay
	seen   []device.Snapshot
	relays []bool
}

func (r *snapshotRefresher) Refresh() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, r.state.Snapshot())
	r.relays = append(r.relays, r.relay.Level())
	return true
}

func (r *snapshotRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

type memoryStore struct {
	saved []bool
	err   error
}

func (m *memoryStore) SaveScheduled(on bool) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, on)
	return nil
}

func newHandler(t *testing.T, store ScheduleStore) (*Handler, *device.State, *gpio.FakeRelay, *snapshotRefresher) {
	t.Helper()
	relay := gpio.NewFakeRelay()
	state, err := device.NewState(relay)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	ref := &snapshotRefresher{state: state, relay: relay}
	return NewHandler(state, ref, topics, store), state, relay, ref
}

func TestHeatingCommands(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
		status  string
	}{
		{"ligar", true, "Aq:ON"},
		{"desligar", false, "Aq:OFF"},
		{"xyz", false, "Aq:OFF"},
		{"", false, "Aq:OFF"},
		{"LIGAR", false, "Aq:OFF"},
		{" ligar", false, "Aq:OFF"},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			h, state, relay, ref := newHandler(t, nil)
			h.Receive(topics.Heating, []byte(tt.payload))

			snap := state.Snapshot()
			if snap.Heating != tt.want {
				t.Errorf("heating: got %v, want %v", snap.Heating, tt.want)
			}
			if relay.Level() != tt.want {
				t.Errorf("relay: got %v, want %v", relay.Level(), tt.want)
			}
			if snap.Status != tt.status {
				t.Errorf("status: got %q, want %q", snap.Status, tt.status)
			}
			if ref.count() != 1 {
				t.Errorf("refreshes: got %d, want 1", ref.count())
			}
		})
	}
}

func TestScheduleCommands(t *testing.T) {
	tests := []struct {
		payload string
		want    bool
		status  string
	}{
		{"ativo", true, "Age:ON"},
		{"inativo", false, "Age:OFF"},
		{"qualquer", false, "Age:OFF"},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			store := &memoryStore{}
			h, state, relay, ref := newHandler(t, store)
			h.Receive(topics.Schedule, []byte(tt.payload))

			snap := state.Snapshot()
			if snap.Scheduled != tt.want {
				t.Errorf("scheduled: got %v, want %v", snap.Scheduled, tt.want)
			}
			if snap.Heating || relay.Level() {
				t.Error("scheduling must not turn heating on")
			}
			if snap.Status != tt.status {
				t.Errorf("status: got %q, want %q", snap.Status, tt.status)
			}
			if len(store.saved) != 1 || store.saved[0] != tt.want {
				t.Errorf("persisted: %v", store.saved)
			}
			if ref.count() != 1 {
				t.Errorf("refreshes: got %d, want 1", ref.count())
			}
		})
	}
}

func TestLigarTwiceIsIdempotent(t *testing.T) {
	h, state, relay, _ := newHandler(t, nil)

	h.Receive(topics.Heating, []byte("ligar"))
	first := relay.Level()
	h.Receive(topics.Heating, []byte("ligar"))

	if !state.Heating() {
		t.Error("heating should stay on")
	}
	if relay.Level() != first || !relay.Level() {
		t.Error("relay output changed on repeated command")
	}
}

func TestLigarThenGarbage(t *testing.T) {
	h, _, _, ref := newHandler(t, nil)

	h.Receive(topics.Heating, []byte("ligar"))
	h.Receive(topics.Heating, []byte("xyz"))

	if ref.count() != 2 {
		t.Fatalf("refreshes: got %d, want 2", ref.count())
	}
	want := []bool{true, false}
	for i, w := range want {
		if ref.seen[i].Heating != w {
			t.Errorf("refresh %d heating: got %v, want %v", i, ref.seen[i].Heating, w)
		}
		if ref.relays[i] != w {
			t.Errorf("refresh %d relay: got %v, want %v", i, ref.relays[i], w)
		}
	}
	if ref.seen[0].Status != "Aq:ON" || ref.seen[1].Status != "Aq:OFF" {
		t.Errorf("status sequence: %q, %q", ref.seen[0].Status, ref.seen[1].Status)
	}
}

func TestScheduleKeepsRelayMatchingHeating(t *testing.T) {
	h, _, relay, _ := newHandler(t, nil)
	h.Receive(topics.Heating, []byte("ligar"))
	h.Receive(topics.Schedule, []byte("inativo"))

	if !relay.Level() {
		t.Error("schedule change must leave relay matching heating")
	}
}

func TestUnknownTopicIgnored(t *testing.T) {
	h, state, _, ref := newHandler(t, nil)
	h.Receive("cafeteira/outra", []byte("ligar"))

	if state.Heating() {
		t.Error("unknown topic changed heating")
	}
	if ref.count() != 0 {
		t.Error("unknown topic requested a refresh")
	}
	handled, ignored := h.Counts()
	if handled != 0 || ignored != 1 {
		t.Errorf("counts: handled=%d ignored=%d", handled, ignored)
	}
}

func TestRelayFailureStillRefreshes(t *testing.T) {
	h, state, relay, ref := newHandler(t, nil)
	relay.SetError(errors.New("gpio busy"))

	h.Receive(topics.Heating, []byte("ligar"))

	if state.Heating() {
		t.Error("heating must not change when the relay cannot be driven")
	}
	if got := state.Snapshot().Status; got != logic.InitialStatus {
		t.Errorf("status after failed command: got %q, want %q", got, logic.InitialStatus)
	}
	if ref.count() != 1 {
		t.Errorf("refreshes: got %d, want 1", ref.count())
	}
}

func TestStoreErrorIsNotFatal(t *testing.T) {
	store := &memoryStore{err: errors.New("read-only fs")}
	h, state, _, _ := newHandler(t, store)
	h.Receive(topics.Schedule, []byte("ativo"))
	if !state.Snapshot().Scheduled {
		t.Error("scheduled should still be applied")
	}
}

// gateWaiter reports each time Take is entered and returns only when the
// test releases it.
type gateWaiter struct {
	entered chan struct{}
	release chan struct{}
}

func newGateWaiter() *gateWaiter {
	return &gateWaiter{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (w *gateWaiter) Take(ctx context.Context) error {
	w.entered <- struct{}{}
	select {
	case <-w.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestRunSubscribesOnlyAfterReady(t *testing.T) {
	h, state, _, _ := newHandler(t, nil)
	client := mqtt.NewFakeClient()
	_ = client.Start(context.Background())
	ready := newGateWaiter()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, ready, client) }()

	// Run is parked waiting for messaging-ready.
	<-ready.entered
	if client.SubscribeCalls(topics.Heating) != 0 || client.SubscribeCalls(topics.Schedule) != 0 {
		t.Fatal("subscribed before messaging ready")
	}

	// One ready signal; Run subscribes and parks again.
	ready.release <- struct{}{}
	<-ready.entered
	if client.SubscribeCalls(topics.Heating) != 1 || client.SubscribeCalls(topics.Schedule) != 1 {
		t.Fatalf("subscribe calls: heating=%d schedule=%d, want 1 each",
			client.SubscribeCalls(topics.Heating), client.SubscribeCalls(topics.Schedule))
	}

	if !client.Deliver(topics.Heating, []byte("ligar")) {
		t.Fatal("delivery failed")
	}
	if !state.Heating() {
		t.Error("delivered command not applied")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run: got %v", err)
	}
}

func TestRunResubscribesEachCycle(t *testing.T) {
	h, _, _, _ := newHandler(t, nil)
	sub := &countingSubscriber{}
	ready := sem.NewBinary()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, ready, sub)

	for cycle := 1; cycle <= 2; cycle++ {
		ready.Give()
		deadline := time.Now().Add(time.Second)
		for sub.total() < cycle*2 {
			if time.Now().After(deadline) {
				t.Fatalf("cycle %d: got %d subscriptions", cycle, sub.total())
			}
			time.Sleep(time.Millisecond)
		}
	}
}

type countingSubscriber struct {
	mu sync.Mutex
	n  int
}

func (c *countingSubscriber) Subscribe(string, mqtt.Receiver) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countingSubscriber) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
