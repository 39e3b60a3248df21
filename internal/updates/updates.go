// Package updates tracks installations the agent has performed so a
// later upgrade knows what the previous version left behind and where.
package updates

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Installation is one prior installation of a managed package. The
// path is optional, not every installer reports where it put things.
type Installation struct {
	Version     string    `json:"version"`
	InstallPath string    `json:"installPath,omitempty"`
	InstalledAt time.Time `json:"installedAt"`
}

// Tracker persists per-package installation history as a JSON
// statefile.
type Tracker struct {
	mu   sync.Mutex
	path string
}

func NewTracker(path string) *Tracker {
	return &Tracker{path: path}
}

// UpdatesFor returns the known prior installations for a package id,
// oldest first. An unknown package yields an empty list.
func (t *Tracker) UpdatesFor(packageID string) ([]Installation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load()
	if err != nil {
		return nil, err
	}
	return state[packageID], nil
}

// Note records a completed installation. A repeated install of the
// same version replaces the earlier entry instead of stacking up.
func (t *Tracker) Note(packageID, version, installPath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load()
	if err != nil {
		return err
	}

	entries := state[packageID]
	kept := entries[:0]
	for _, e := range entries {
		if e.Version != version {
			kept = append(kept, e)
		}
	}
	kept = append(kept, Installation{
		Version:     version,
		InstallPath: installPath,
		InstalledAt: time.Now().UTC(),
	})
	state[packageID] = kept
	return t.save(state)
}

// Forget drops all history for a package after an uninstall. Unknown
// packages are not an error.
func (t *Tracker) Forget(packageID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load()
	if err != nil {
		return err
	}
	if _, ok := state[packageID]; !ok {
		return nil
	}
	delete(state, packageID)
	return t.save(state)
}

func (t *Tracker) load() (map[string][]Installation, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return make(map[string][]Installation), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read update state: %w", err)
	}
	state := make(map[string][]Installation)
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse update state %s: %w", t.path, err)
	}
	return state, nil
}

func (t *Tracker) save(state map[string][]Installation) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, t.path)
}
