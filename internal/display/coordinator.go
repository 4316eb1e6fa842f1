package display

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/sweeney/cafeteira/internal/device"
)

// DefaultLockTimeout bounds how long a render waits for the panel.
const DefaultLockTimeout = time.Second

// ErrLockTimeout is returned by WithLock when the panel lock could not be
// acquired in time.
var ErrLockTimeout = errors.New("display: lock timeout")

// Source provides consistent state snapshots.
type Source interface {
	Snapshot() device.Snapshot
}

// Coordinator serializes every access to the panel. It owns the only lock
// in the system that may block for UI consistency, and that wait is bounded.
type Coordinator struct {
	lock    *semaphore.Weighted
	timeout time.Duration
	panel   Panel
	source  Source

	rendered atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
}

// NewCoordinator creates a Coordinator. A non-positive timeout uses
// DefaultLockTimeout.
func NewCoordinator(panel Panel, source Source, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Coordinator{
		lock:    semaphore.NewWeighted(1),
		timeout: timeout,
		panel:   panel,
		source:  source,
	}
}

// WithLock runs fn while holding the panel lock. If the lock is not
// acquired within the timeout, fn is not run and ErrLockTimeout is returned.
// The lock is released on every exit path, including a panic in fn.
func (c *Coordinator) WithLock(fn func(Panel) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.lock.Acquire(ctx, 1); err != nil {
		return ErrLockTimeout
	}
	defer c.lock.Release(1)

	return fn(c.panel)
}

// Refresh renders the current state. A lock timeout or render failure
// skips this frame; the next refresh draws fresh state. It reports whether
// a frame was drawn.
func (c *Coordinator) Refresh() bool {
	err := c.WithLock(func(p Panel) error {
		l := FormatLines(c.source.Snapshot())
		return p.RenderLines(l[0], l[1], l[2], l[3])
	})
	return c.account(err)
}

// Show renders fixed lines, such as the boot screen.
func (c *Coordinator) Show(l Lines) bool {
	err := c.WithLock(func(p Panel) error {
		return p.RenderLines(l[0], l[1], l[2], l[3])
	})
	return c.account(err)
}

func (c *Coordinator) account(err error) bool {
	switch {
	case err == nil:
		c.rendered.Add(1)
		return true
	case errors.Is(err, ErrLockTimeout):
		c.skipped.Add(1)
		logrus.Warnf("display busy for %v, skipping refresh", c.timeout)
	default:
		c.failed.Add(1)
		logrus.Warnf("display render failed: %v", err)
	}
	return false
}

// Stats returns the number of drawn, skipped (lock timeout) and failed frames.
func (c *Coordinator) Stats() (rendered, skipped, failed int64) {
	return c.rendered.Load(), c.skipped.Load(), c.failed.Load()
}
