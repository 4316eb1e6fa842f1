package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeRelay is a test double that records every level written.
// Safe for concurrent use.
type FakeRelay struct {
	mu     sync.Mutex
	level  bool
	writes []bool
	err    error
	closed bool
}

// NewFakeRelay creates a FakeRelay starting at off.
func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

// SetLevel records the level, or returns the configured error.
func (f *FakeRelay) SetLevel(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.level = on
	f.writes = append(f.writes, on)
	return nil
}

// Level returns the last level written.
func (f *FakeRelay) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Writes returns a copy of every level written, in order.
func (f *FakeRelay) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.writes...)
}

// SetError makes subsequent SetLevel calls fail with err (nil clears it).
func (f *FakeRelay) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Close marks the relay as closed and de-energizes it.
func (f *FakeRelay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = false
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeRelay) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeEdgeSource is a test double whose edges are fired by the test.
type FakeEdgeSource struct {
	mu      sync.Mutex
	handler func(tick time.Duration)
	closed  bool

	// WatchError, if set, will be returned by Watch.
	WatchError error
}

// NewFakeEdgeSource creates a FakeEdgeSource.
func NewFakeEdgeSource() *FakeEdgeSource {
	return &FakeEdgeSource{}
}

// Watch stores the handler.
func (f *FakeEdgeSource) Watch(handler func(tick time.Duration)) error {
	if f.WatchError != nil {
		return f.WatchError
	}
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	return nil
}

// Fire delivers one edge with the given tick, synchronously.
func (f *FakeEdgeSource) Fire(tick time.Duration) error {
	f.mu.Lock()
	h := f.handler
	closed := f.closed
	f.mu.Unlock()

	if closed {
		return errors.New("edge source closed")
	}
	if h == nil {
		return errors.New("not watching")
	}
	h(tick)
	return nil
}

// Close stops delivering edges.
func (f *FakeEdgeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
