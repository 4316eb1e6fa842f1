package mqtt

import "github.com/sirupsen/logrus"

// queuedMsg is a publish held until the broker is reachable.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds publishes made while disconnected, oldest first.
//
// QoS 0 messages are state, not events: a newer one on the same topic
// replaces the queued one, so a reconnect replays the latest reading or
// heating echo rather than the history. QoS 1 messages (system events)
// are all kept. When full the oldest message is dropped.
//
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	msgs     []queuedMsg
	capacity int
	dropped  int
	warned   bool
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{capacity: capacity}
}

func (o *outbox) push(m queuedMsg) {
	if m.qos == 0 {
		for i := range o.msgs {
			if o.msgs[i].qos == 0 && o.msgs[i].topic == m.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}
	if len(o.msgs) == o.capacity {
		if !o.warned {
			logrus.Warnf("mqtt: outbox full (%d messages), dropping oldest", o.capacity)
			o.warned = true
		}
		o.msgs = o.msgs[1:]
		o.dropped++
	}
	o.msgs = append(o.msgs, m)
}

// drain returns every queued message in publish order and empties the
// outbox.
func (o *outbox) drain() []queuedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = nil
	o.warned = false
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
