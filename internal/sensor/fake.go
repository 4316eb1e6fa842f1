package sensor

import (
	"sync"

	"github.com/sweeney/cafeteira/internal/logic"
)

// Sample is one scripted result: a reading, or an error if Err is set.
type Sample struct {
	Reading logic.Reading
	Err     error
}

// FakeReader is a test double that returns scripted samples.
// Safe for concurrent use.
type FakeReader struct {
	mu      sync.Mutex
	samples []Sample
	index   int
	reads   int
	closed  bool
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (logic.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if len(f.samples) == 0 {
		return logic.Reading{}, ErrNoReading
	}

	s := f.samples[f.index]
	if f.index < len(f.samples)-1 {
		f.index++
	}
	if s.Err != nil {
		return logic.Reading{}, s.Err
	}
	return s.Reading, nil
}

// Reads returns how many times Read was called.
func (f *FakeReader) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeReader) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
