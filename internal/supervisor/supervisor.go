// Package supervisor sequences connectivity: wait for the network, start
// the messaging client, then announce that messaging is ready.
package supervisor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRetry is the pause between failed messaging starts.
const DefaultRetry = 5 * time.Second

// Phase is a connection cycle state.
type Phase int32

const (
	WaitingNetwork Phase = iota
	StartingMessaging
	Ready
)

func (p Phase) String() string {
	switch p {
	case WaitingNetwork:
		return "WAITING_NETWORK"
	case StartingMessaging:
		return "STARTING_MESSAGING"
	case Ready:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Starter starts the messaging client and blocks until it is up.
type Starter interface {
	Start(ctx context.Context) error
}

// Waiter blocks until a signal is pending, then clears it.
type Waiter interface {
	Take(ctx context.Context) error
}

// Giver raises a signal without blocking.
type Giver interface {
	Give() bool
}

// Supervisor runs the connection cycle.
type Supervisor struct {
	network   Waiter
	messaging Giver
	client    Starter
	retry     time.Duration

	phase  atomic.Int32
	cycles atomic.Int64
}

// New creates a Supervisor that waits on network, starts client and gives
// messaging once per completed cycle.
func New(network Waiter, client Starter, messaging Giver, retry time.Duration) *Supervisor {
	if retry <= 0 {
		retry = DefaultRetry
	}
	return &Supervisor{
		network:   network,
		messaging: messaging,
		client:    client,
		retry:     retry,
	}
}

// Run loops forever: each network-ready signal starts one cycle.
// Returns ctx.Err() when ctx ends.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if err := s.network.Take(ctx); err != nil {
			return err
		}

		s.setPhase(StartingMessaging)
		if err := s.start(ctx); err != nil {
			return err
		}

		s.setPhase(Ready)
		n := s.cycles.Add(1)
		logrus.Infof("messaging ready (cycle %d)", n)
		s.messaging.Give()
	}
}

func (s *Supervisor) start(ctx context.Context) error {
	for {
		err := s.client.Start(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logrus.Warnf("start messaging: %v (retrying in %v)", err, s.retry)

		t := time.NewTimer(s.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// NetworkLost moves a ready cycle back to waiting for the network.
// Safe to call from any goroutine.
func (s *Supervisor) NetworkLost() {
	if s.phase.CompareAndSwap(int32(Ready), int32(WaitingNetwork)) {
		logrus.Infof("connection phase %s -> %s", Ready, WaitingNetwork)
	}
}

// Phase returns the current phase.
func (s *Supervisor) Phase() Phase {
	return Phase(s.phase.Load())
}

// Cycles returns how many cycles reached Ready.
func (s *Supervisor) Cycles() int64 {
	return s.cycles.Load()
}

func (s *Supervisor) setPhase(p Phase) {
	old := Phase(s.phase.Swap(int32(p)))
	if old != p {
		logrus.Debugf("connection phase %s -> %s", old, p)
	}
}
