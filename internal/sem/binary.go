// Package sem provides a binary semaphore used to hand events between
// execution contexts without carrying a payload.
package sem

import "context"

// Binary is a binary semaphore. Give never blocks and may be called from
// an edge-event callback; any number of Gives before a Take collapse into a
// single pending signal. The zero value is not usable; call NewBinary.
type Binary struct {
	ch chan struct{}
}

// NewBinary creates an empty (not pending) semaphore.
func NewBinary() *Binary {
	return &Binary{ch: make(chan struct{}, 1)}
}

// Give marks the semaphore pending. It reports false if a signal was
// already pending and this one was coalesced into it.
func (b *Binary) Give() bool {
	select {
	case b.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Take blocks until the semaphore is pending, then clears it.
// It returns ctx.Err() if the context ends first.
func (b *Binary) Take(ctx context.Context) error {
	select {
	case <-b.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryTake clears a pending signal without blocking.
func (b *Binary) TryTake() bool {
	select {
	case <-b.ch:
		return true
	default:
		return false
	}
}

// Pending reports whether a signal is waiting to be taken.
func (b *Binary) Pending() bool {
	return len(b.ch) == 1
}
