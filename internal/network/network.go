// Package network reports when the host has a usable network connection
// and finds the MQTT broker on the local link.
package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is how often interfaces are checked.
const DefaultPollInterval = 2 * time.Second

// Probe reports whether the host currently has a usable network.
type Probe func() (bool, error)

// Signal is given on every down-to-up transition.
type Signal interface {
	Give() bool
}

// Watcher polls a Probe and turns its results into readiness transitions.
type Watcher struct {
	probe  Probe
	ready  Signal
	onDown func()

	mu sync.Mutex
	up bool
}

// NewWatcher creates a Watcher. onDown, if non-nil, is called on every
// up-to-down transition.
func NewWatcher(probe Probe, ready Signal, onDown func()) *Watcher {
	return &Watcher{probe: probe, ready: ready, onDown: onDown}
}

// Run checks immediately, then once per tick, until ctx ends.
func (w *Watcher) Run(ctx context.Context, tick <-chan time.Time) error {
	w.Check()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			w.Check()
		}
	}
}

// Check polls the probe once and reports the current state.
// A probe error counts as down.
func (w *Watcher) Check() bool {
	up, err := w.probe()
	if err != nil {
		logrus.Debugf("network probe: %v", err)
		up = false
	}

	w.mu.Lock()
	was := w.up
	w.up = up
	w.mu.Unlock()

	switch {
	case up && !was:
		logrus.Infof("network ready")
		w.ready.Give()
	case !up && was:
		logrus.Warnf("network lost")
		if w.onDown != nil {
			w.onDown()
		}
	}
	return up
}

// Up reports the last observed state.
func (w *Watcher) Up() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.up
}

// InterfaceProbe returns a Probe that is up when an interface that is up,
// not loopback, and holds a global unicast address exists. If name is
// non-empty only that interface is considered.
func InterfaceProbe(name string) Probe {
	return func() (bool, error) {
		ifaces, err := net.Interfaces()
		if err != nil {
			return false, fmt.Errorf("list interfaces: %w", err)
		}
		for _, iface := range ifaces {
			if name != "" && iface.Name != name {
				continue
			}
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}
			for _, a := range addrs {
				if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.IsGlobalUnicast() {
					return true, nil
				}
			}
		}
		return false, nil
	}
}
