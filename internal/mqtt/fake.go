package mqtt

import (
	"context"
	"sync"
)

// Message is a publish recorded by FakeClient.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakeClient records publishes and subscriptions for test assertions.
// Safe for concurrent use.
type FakeClient struct {
	mu sync.Mutex

	published []Message
	subs      map[string]Receiver
	subCalls  map[string]int
	connected bool
	closed    bool

	startCalls int
	startErr   error
	publishErr error

	// Gate, if non-nil, makes Start block until it is closed or ctx ends.
	Gate chan struct{}
}

// NewFakeClient creates a disconnected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{subs: make(map[string]Receiver), subCalls: make(map[string]int)}
}

// Start marks the client connected unless a start error is configured.
func (f *FakeClient) Start(ctx context.Context) error {
	f.mu.Lock()
	f.startCalls++
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.connected = true
	return nil
}

// Subscribe records r as the receiver for topic.
func (f *FakeClient) Subscribe(topic string, r Receiver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = r
	f.subCalls[topic]++
	if !f.connected {
		return ErrNotConnected
	}
	return nil
}

// Publish records the message, or returns the configured publish error.
func (f *FakeClient) Publish(topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	f.published = append(f.published, Message{Topic: topic, Payload: p, Retained: retained})
	return nil
}

// Deliver hands payload to the receiver subscribed to topic, as the broker
// would. Returns false if nothing is subscribed.
func (f *FakeClient) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	r, ok := f.subs[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	r.Receive(topic, payload)
	return true
}

// IsConnected reports the simulated connection state.
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// SetConnected changes the simulated connection state.
func (f *FakeClient) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

// SetStartError makes subsequent Start calls fail with err.
func (f *FakeClient) SetStartError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

// SetPublishError makes subsequent Publish calls fail with err.
func (f *FakeClient) SetPublishError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishErr = err
}

// StartCalls returns how many times Start was called.
func (f *FakeClient) StartCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

// Published returns a copy of every recorded publish.
func (f *FakeClient) Published() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.published))
	copy(out, f.published)
	return out
}

// PublishedTo returns the recorded publishes for one topic.
func (f *FakeClient) PublishedTo(topic string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.published {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Subscribed reports whether a receiver is registered for topic.
func (f *FakeClient) Subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[topic]
	return ok
}

// SubscribeCalls returns how many times topic was subscribed.
func (f *FakeClient) SubscribeCalls(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subCalls[topic]
}

// Close marks the client closed and disconnected.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.connected = false
	return nil
}

// Closed reports whether Close was called.
func (f *FakeClient) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
