package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// storedRecord is the statefile form of a record, with the uninstall
// key alongside since the agent is its own authority for installs it
// performed.
type storedRecord struct {
	Record
	Key string `json:"key,omitempty"`
}

// StateSource is the agent's own ledger of installs it performed,
// persisted as a JSON statefile. It is the only source on platforms
// without a system package registry, and supplements the system
// sources on Windows.
type StateSource struct {
	mu   sync.Mutex
	path string
}

func NewStateSource(path string) *StateSource {
	return &StateSource{path: path}
}

func (s *StateSource) Records() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load()
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(stored))
	for _, sr := range stored {
		recs = append(recs, sr.Record)
	}
	return recs, nil
}

func (s *StateSource) Key(recordID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load()
	if err != nil {
		return "", err
	}
	for _, sr := range stored {
		if sr.ID == recordID {
			return sr.Key, nil
		}
	}
	return "", fmt.Errorf("record %q not in statefile", recordID)
}

// Note records a completed install, replacing any prior entry with the
// same ID.
func (s *StateSource) Note(rec Record, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load()
	if err != nil {
		return err
	}
	kept := stored[:0]
	for _, sr := range stored {
		if sr.ID != rec.ID {
			kept = append(kept, sr)
		}
	}
	kept = append(kept, storedRecord{Record: rec, Key: key})
	return s.save(kept)
}

// Forget drops a record after a completed uninstall. Unknown IDs are
// not an error.
func (s *StateSource) Forget(recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load()
	if err != nil {
		return err
	}
	kept := stored[:0]
	for _, sr := range stored {
		if sr.ID != recordID {
			kept = append(kept, sr)
		}
	}
	return s.save(kept)
}

func (s *StateSource) load() ([]storedRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read statefile: %w", err)
	}
	var stored []storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse statefile %s: %w", s.path, err)
	}
	return stored, nil
}

func (s *StateSource) save(stored []storedRecord) error {
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
