// Package button turns raw push-button edges into debounced heating toggles.
//
// The work is split in two. HandleEdge runs in the edge-event context: it
// compares the edge's monotonic tick with the last accepted one and, if the
// debounce window has passed, gives a binary semaphore. It takes no locks
// and never publishes or renders. Consumer.Run blocks on that semaphore in
// a normal goroutine and performs the toggle, render and publish.
package button

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/cafeteira/internal/sem"
)

// DefaultDebounce is the minimum spacing between accepted edges.
const DefaultDebounce = 50 * time.Millisecond

const noEdge = -1

// Monitor is the edge-context half of the button.
type Monitor struct {
	debounce time.Duration
	lastTick atomic.Int64
	pending  *sem.Binary

	accepted  atomic.Int64
	discarded atomic.Int64
}

// NewMonitor creates a Monitor with the given debounce window.
func NewMonitor(debounce time.Duration) *Monitor {
	m := &Monitor{
		debounce: debounce,
		pending:  sem.NewBinary(),
	}
	m.lastTick.Store(noEdge)
	return m
}

// HandleEdge is called with the monotonic timestamp of a press edge. It
// reports whether the edge was accepted. Safe to call from the event
// delivery goroutine; it never blocks.
func (m *Monitor) HandleEdge(tick time.Duration) bool {
	for {
		prev := m.lastTick.Load()
		if prev != noEdge && tick-time.Duration(prev) < m.debounce {
			m.discarded.Add(1)
			return false
		}
		if m.lastTick.CompareAndSwap(prev, int64(tick)) {
			break
		}
	}
	m.accepted.Add(1)
	m.pending.Give()
	return true
}

// Wait blocks until an activation is pending, then clears it.
func (m *Monitor) Wait(ctx context.Context) error {
	return m.pending.Take(ctx)
}

// Counts returns the number of accepted and discarded edges.
func (m *Monitor) Counts() (accepted, discarded int64) {
	return m.accepted.Load(), m.discarded.Load()
}

// Toggler flips the heating flag and drives the relay as one step.
type Toggler interface {
	ToggleHeating(status func(on bool) string) (bool, error)
}

// Refresher requests a display refresh.
type Refresher interface {
	Refresh() bool
}

// Publisher sends a message to the broker.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// Consumer is the normal-context half of the button.
type Consumer struct {
	monitor   *Monitor
	state     Toggler
	display   Refresher
	publisher Publisher
	topic     string
	status    func(on bool) string
	payload   func(on bool) []byte
}

// NewConsumer wires the consumer. topic is the heating-control topic on
// which the new level is echoed; status and payload build the status text
// and echo payload for a level.
func NewConsumer(m *Monitor, state Toggler, display Refresher, pub Publisher, topic string, status func(on bool) string, payload func(on bool) []byte) *Consumer {
	return &Consumer{
		monitor:   m,
		state:     state,
		display:   display,
		publisher: pub,
		topic:     topic,
		status:    status,
		payload:   payload,
	}
}

// Run performs one toggle cycle per pending activation until ctx ends.
// Activations that arrive during a cycle are folded into the next wake.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.monitor.Wait(ctx); err != nil {
			return err
		}
		c.Handle()
	}
}

// Handle performs one toggle-drive-render-publish cycle.
func (c *Consumer) Handle() {
	on, err := c.state.ToggleHeating(c.status)
	if err != nil {
		logrus.Errorf("button toggle failed: %v", err)
		return
	}
	logrus.Infof("button: heating %s", c.status(on))

	c.display.Refresh()

	if err := c.publisher.Publish(c.topic, c.payload(on), false); err != nil {
		logrus.Warnf("publish heating echo: %v", err)
	}
}
