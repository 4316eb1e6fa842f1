package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const stateFilename = "state.yaml"

// PersistedState is what survives a restart.
type PersistedState struct {
	Scheduled bool `yaml:"scheduled"`
}

// StateStore keeps PersistedState in <dir>/state.yaml.
type StateStore struct {
	mu    sync.Mutex
	path  string
	state PersistedState
}

// OpenStateStore creates dir if needed and loads any existing state.
func OpenStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	s := &StateStore{path: filepath.Join(dir, stateFilename)}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logrus.Infof("no state file at %s, starting fresh", s.path)
	case err != nil:
		return nil, fmt.Errorf("read state: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &s.state); err != nil {
			return nil, fmt.Errorf("parse state %s: %w", s.path, err)
		}
	}
	return s, nil
}

// Scheduled returns the persisted scheduled flag.
func (s *StateStore) Scheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Scheduled
}

// SaveScheduled records the flag and writes the file.
func (s *StateStore) SaveScheduled(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Scheduled == on {
		return nil
	}
	s.state.Scheduled = on
	return s.save()
}

func (s *StateStore) save() error {
	raw, err := yaml.Marshal(&s.state)
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0660); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	logrus.Debugf("saved state file %s", s.path)
	return nil
}
