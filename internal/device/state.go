// Package device holds the single shared state of the coffee maker.
//
// Lock discipline: every field is guarded by State.mu. The heating flag is
// only written together with the actuator inside that critical section, so
// no reader can observe heating and the relay output disagreeing. Telemetry
// publication is serialized by State.pubMu, which is held across the publish
// call so that the dedupe cache moves in lockstep with what was sent.
// The interrupt-context button handler never touches State.
package device

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/cafeteira/internal/logic"
)

// Actuator drives the heater relay.
type Actuator interface {
	SetLevel(on bool) error
}

// Snapshot is a consistent point-in-time copy of the device state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Heating   bool
	Scheduled bool
	Reading   logic.Reading
	// HasReading is false until the first successful sensor read.
	HasReading bool
	Published  logic.Reading
	// HasPublished is false until the first telemetry publish succeeds.
	HasPublished bool
	Status       string
}

// State is the shared device state.
type State struct {
	mu       sync.Mutex
	actuator Actuator
	snap     Snapshot

	pubMu sync.Mutex
}

// NewState creates the state and drives the actuator off, so that the
// heating flag and relay agree from the first observable moment.
func NewState(actuator Actuator) (*State, error) {
	if err := actuator.SetLevel(false); err != nil {
		return nil, fmt.Errorf("drive relay off: %w", err)
	}
	return &State{
		actuator: actuator,
		snap:     Snapshot{Status: logic.InitialStatus},
	}, nil
}

// SetHeating sets the heating flag, drives the actuator to match and records
// status. If the actuator cannot be driven the flag and status are left
// unchanged and the error is returned.
func (s *State) SetHeating(on bool, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.driveLocked(on); err != nil {
		return err
	}
	s.snap.Status = boundStatus(status)
	return nil
}

// ToggleHeating inverts the heating flag, drives the actuator and records a
// status built from the new level. It returns the new level. On actuator
// failure the previous level is kept and returned with the error.
func (s *State) ToggleHeating(status func(on bool) string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := !s.snap.Heating
	if err := s.driveLocked(next); err != nil {
		return s.snap.Heating, err
	}
	s.snap.Status = boundStatus(status(next))
	return next, nil
}

// SetScheduled sets the scheduled flag and records status. The actuator is
// re-driven to the current heating level so every command leaves the relay
// matching the heating flag.
func (s *State) SetScheduled(on bool, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Scheduled = on
	s.snap.Status = boundStatus(status)
	return s.driveLocked(s.snap.Heating)
}

// RestoreScheduled sets the scheduled flag without touching status text.
// Used once at startup from persisted state.
func (s *State) RestoreScheduled(on bool) {
	s.mu.Lock()
	s.snap.Scheduled = on
	s.mu.Unlock()
}

func (s *State) driveLocked(on bool) error {
	if err := s.actuator.SetLevel(on); err != nil {
		return fmt.Errorf("set relay %s: %w", logic.StateOf(on), err)
	}
	s.snap.Heating = on
	return nil
}

// Heating returns the current heating flag.
func (s *State) Heating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Heating
}

// RecordReading stores a successful sensor reading.
func (s *State) RecordReading(r logic.Reading) {
	s.mu.Lock()
	s.snap.Reading = r
	s.snap.HasReading = true
	s.mu.Unlock()
}

// PublishReading records r as the current reading and, if it differs from
// the last published pair, calls publish. The dedupe cache is updated only
// when publish succeeds, and no other PublishReading can interleave between
// the comparison, the publish and the cache update. It reports whether a
// publish happened.
func (s *State) PublishReading(r logic.Reading, publish func(logic.Reading) error) (bool, error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.snap.Reading = r
	s.snap.HasReading = true
	changed := !s.snap.HasPublished || s.snap.Published != r
	s.mu.Unlock()

	if !changed {
		return false, nil
	}
	if err := publish(r); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.snap.Published = r
	s.snap.HasPublished = true
	s.mu.Unlock()
	return true, nil
}

// SetStatus overwrites the status text.
func (s *State) SetStatus(status string) {
	s.mu.Lock()
	s.snap.Status = boundStatus(status)
	s.mu.Unlock()
}

// Snapshot returns a consistent copy of all fields.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func boundStatus(status string) string {
	bounded, truncated := logic.TruncateRunes(status, logic.MaxStatusLen)
	if truncated {
		logrus.Warnf("status text %q truncated to %q", status, bounded)
	}
	return bounded
}
