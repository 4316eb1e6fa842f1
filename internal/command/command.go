// Package command applies remote commands to the device state.
package command

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/cafeteira/internal/logic"
	"github.com/sweeney/cafeteira/internal/mqtt"
)

// State is the part of the device state that commands mutate.
type State interface {
	SetHeating(on bool, status string) error
	SetScheduled(on bool, status string) error
}

// Refresher requests a display refresh.
type Refresher interface {
	Refresh() bool
}

// Subscriber registers a receiver for a topic.
type Subscriber interface {
	Subscribe(topic string, r mqtt.Receiver) error
}

// Waiter blocks until messaging is ready.
type Waiter interface {
	Take(ctx context.Context) error
}

// ScheduleStore persists the scheduled flag.
type ScheduleStore interface {
	SaveScheduled(on bool) error
}

// Handler maps inbound messages to state transitions. Applying the same
// command twice leaves the device where the first one put it.
type Handler struct {
	state   State
	display Refresher
	topics  mqtt.Topics
	store   ScheduleStore

	handled atomic.Int64
	ignored atomic.Int64
}

// NewHandler creates a Handler. store may be nil.
func NewHandler(state State, display Refresher, topics mqtt.Topics, store ScheduleStore) *Handler {
	return &Handler{state: state, display: display, topics: topics, store: store}
}

// Receive implements mqtt.Receiver.
func (h *Handler) Receive(topic string, payload []byte) {
	switch topic {
	case h.topics.Heating:
		on := logic.ClassifyHeating(payload)
		if err := h.state.SetHeating(on, logic.HeatingStatus(on)); err != nil {
			logrus.Errorf("apply heating command %q: %v", payload, err)
		} else {
			logrus.Infof("command: heating %s", logic.StateOf(on))
		}

	case h.topics.Schedule:
		on := logic.ClassifySchedule(payload)
		if err := h.state.SetScheduled(on, logic.ScheduleStatus(on)); err != nil {
			logrus.Errorf("apply schedule command %q: %v", payload, err)
		} else {
			logrus.Infof("command: scheduled %s", logic.StateOf(on))
		}
		if h.store != nil {
			if err := h.store.SaveScheduled(on); err != nil {
				logrus.Warnf("persist scheduled flag: %v", err)
			}
		}

	default:
		h.ignored.Add(1)
		logrus.Debugf("ignoring message on %s", topic)
		return
	}

	h.handled.Add(1)
	h.display.Refresh()
}

// Run subscribes to the command topics each time ready is signalled,
// until ctx ends. Subscriptions are never made before the first signal.
func (h *Handler) Run(ctx context.Context, ready Waiter, sub Subscriber) error {
	for {
		if err := ready.Take(ctx); err != nil {
			return err
		}
		for _, topic := range []string{h.topics.Heating, h.topics.Schedule} {
			if err := sub.Subscribe(topic, h); err != nil {
				logrus.Warnf("subscribe %s: %v", topic, err)
				continue
			}
			logrus.Infof("subscribed to %s", topic)
		}
	}
}

// Counts returns how many messages were applied and ignored.
func (h *Handler) Counts() (handled, ignored int64) {
	return h.handled.Load(), h.ignored.Load()
}
