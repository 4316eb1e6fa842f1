package display

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LogPanel writes frames to the log instead of a physical panel. A frame
// is logged at Info when it differs from the previous one, at Debug
// otherwise.
type LogPanel struct {
	last Lines
}

// NewLogPanel creates a LogPanel.
func NewLogPanel() *LogPanel {
	return &LogPanel{}
}

// RenderLines logs the frame.
func (p *LogPanel) RenderLines(title, line2, line3, line4 string) error {
	l := Lines{title, line2, line3, line4}
	if l == p.last {
		logrus.Debugf("display: %q | %q | %q | %q", l[0], l[1], l[2], l[3])
		return nil
	}
	p.last = l
	logrus.Infof("display: %q | %q | %q | %q", l[0], l[1], l[2], l[3])
	return nil
}

// Close does nothing.
func (p *LogPanel) Close() error {
	return nil
}

// FakePanel records rendered frames for test assertions.
// Safe for concurrent use; it counts overlapping RenderLines calls.
type FakePanel struct {
	mu     sync.Mutex
	frames []Lines
	err    error
	closed bool

	inFlight atomic.Int32
	overlaps atomic.Int32

	// Hold, if set, blocks every RenderLines until it is closed or
	// receives a value.
	Hold chan struct{}
}

// NewFakePanel creates a FakePanel.
func NewFakePanel() *FakePanel {
	return &FakePanel{}
}

// RenderLines records the frame.
func (f *FakePanel) RenderLines(title, line2, line3, line4 string) error {
	if f.inFlight.Add(1) > 1 {
		f.overlaps.Add(1)
	}
	defer f.inFlight.Add(-1)

	if f.Hold != nil {
		<-f.Hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.closed {
		return errors.New("panel closed")
	}
	f.frames = append(f.frames, Lines{title, line2, line3, line4})
	return nil
}

// SetError makes subsequent renders fail with err (nil clears it).
func (f *FakePanel) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Frames returns a copy of every frame rendered, in order.
func (f *FakePanel) Frames() []Lines {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Lines(nil), f.frames...)
}

// Last returns the most recent frame.
func (f *FakePanel) Last() (Lines, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return Lines{}, false
	}
	return f.frames[len(f.frames)-1], true
}

// Overlaps reports how many renders started while another was running.
func (f *FakePanel) Overlaps() int {
	return int(f.overlaps.Load())
}

// Close marks the panel closed.
func (f *FakePanel) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
