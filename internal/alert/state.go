// Package alert evaluates drift and transmission-silence conditions per buoy
// and keeps the per-condition alert state that suppresses repeat
// notifications across runs.
package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Condition tags one kind of alert. Drift and silence are tracked
// independently per buoy: recovering from one does not clear the other.
type Condition string

const (
	CondDrift   Condition = "drift"
	CondSilence Condition = "silence"
)

// State maps buoy ID to its currently unresolved conditions, each with the
// time the first notification for the ongoing excursion went out. Presence
// of an entry means a notification was already sent and the condition has
// not cleared since.
type State map[string]map[Condition]time.Time

func (s State) active(buoyID string, cond Condition) bool {
	_, ok := s[buoyID][cond]
	return ok
}

func (s State) arm(buoyID string, cond Condition, at time.Time) {
	if s[buoyID] == nil {
		s[buoyID] = make(map[Condition]time.Time, 2)
	}
	s[buoyID][cond] = at
}

func (s State) clear(buoyID string, cond Condition) {
	delete(s[buoyID], cond)
	if len(s[buoyID]) == 0 {
		delete(s, buoyID)
	}
}

// StateStore persists State as a small JSON document, written atomically so
// a crash mid-save cannot leave a truncated file behind.
type StateStore struct {
	path string
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

func (ss *StateStore) Path() string { return ss.path }

// Load reads the persisted state. An absent file means no buoy is alerting.
func (ss *StateStore) Load() (State, error) {
	data, err := os.ReadFile(ss.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(State), nil
		}
		return nil, fmt.Errorf("reading alert state %s: %w", ss.path, err)
	}

	state := make(State)
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing alert state %s: %w", ss.path, err)
	}
	return state, nil
}

func (ss *StateStore) Save(state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding alert state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(ss.path), ".alertstate-*")
	if err != nil {
		return fmt.Errorf("writing alert state %s: %w", ss.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing alert state %s: %w", ss.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing alert state %s: %w", ss.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing alert state %s: %w", ss.path, err)
	}
	if err := os.Rename(tmp.Name(), ss.path); err != nil {
		return fmt.Errorf("writing alert state %s: %w", ss.path, err)
	}
	return nil
}
