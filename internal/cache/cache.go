// Package cache manages the local store of downloaded installer
// artifacts. Fetches land here before execution; nothing removes them
// on its own, so the store needs pruning.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gale-deploy/agent/internal/logging"
)

var log = logging.L("cache")

// partialSuffix marks in-flight downloads. A .partial file with no
// active download is leftover from a crash.
const partialSuffix = ".partial"

// Entry describes one cached artifact.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// PruneResult summarizes what a prune or clear removed.
type PruneResult struct {
	Removed int
	Freed   int64
}

// Store is the artifact cache rooted at one directory.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: filepath.Clean(dir)}
}

// List returns the cached artifacts sorted by name. Partial downloads
// and subdirectories are not listed. A missing cache directory is an
// empty cache.
func (s *Store) List() ([]Entry, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var entries []Entry
	for _, d := range dirents {
		if d.IsDir() || strings.HasSuffix(d.Name(), partialSuffix) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    d.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// TotalSize sums the sizes of the listed artifacts.
func TotalSize(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}

// Prune removes leftover partial downloads, artifacts older than maxAge,
// and then evicts oldest-first until the store fits in maxTotal bytes.
// A zero maxAge or maxTotal disables that bound.
func (s *Store) Prune(maxAge time.Duration, maxTotal int64) (PruneResult, error) {
	var result PruneResult

	if err := s.removePartials(&result); err != nil {
		return result, err
	}

	entries, err := s.List()
	if err != nil {
		return result, err
	}

	if maxAge > 0 {
		cutoff := time.Now().Add(-maxAge)
		remaining := entries[:0]
		for _, e := range entries {
			if e.ModTime.Before(cutoff) {
				if err := s.remove(e, &result); err != nil {
					return result, err
				}
				continue
			}
			remaining = append(remaining, e)
		}
		entries = remaining
	}

	if maxTotal > 0 {
		total := TotalSize(entries)
		// Oldest artifacts go first: a recent fetch is the most likely
		// to be executed again.
		sort.Slice(entries, func(i, j int) bool { return entries[i].ModTime.Before(entries[j].ModTime) })
		for _, e := range entries {
			if total <= maxTotal {
				break
			}
			if err := s.remove(e, &result); err != nil {
				return result, err
			}
			total -= e.Size
		}
	}

	if result.Removed > 0 {
		log.Info("cache pruned", "removed", result.Removed, "freedBytes", result.Freed)
	}
	return result, nil
}

// Clear removes every cached artifact, including partial downloads.
func (s *Store) Clear() (PruneResult, error) {
	var result PruneResult

	if err := s.removePartials(&result); err != nil {
		return result, err
	}

	entries, err := s.List()
	if err != nil {
		return result, err
	}
	for _, e := range entries {
		if err := s.remove(e, &result); err != nil {
			return result, err
		}
	}

	log.Info("cache cleared", "removed", result.Removed, "freedBytes", result.Freed)
	return result, nil
}

// Remove deletes a single artifact by name. Removing an artifact that
// is not cached is not an error.
func (s *Store) Remove(name string) error {
	path, err := containedPath(s.dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cached artifact: %w", err)
	}
	return nil
}

func (s *Store) remove(e Entry, result *PruneResult) error {
	path, err := containedPath(s.dir, e.Name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove cached artifact: %w", err)
	}
	result.Removed++
	result.Freed += e.Size
	return nil
}

func (s *Store) removePartials(result *PruneResult) error {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache dir: %w", err)
	}

	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), partialSuffix) {
			continue
		}
		info, infoErr := d.Info()
		if err := os.Remove(filepath.Join(s.dir, d.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove partial download: %w", err)
		}
		result.Removed++
		if infoErr == nil {
			result.Freed += info.Size()
		}
	}
	return nil
}

// containedPath resolves name against base and rejects anything that
// escapes it.
func containedPath(base, name string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	joined, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("resolve artifact path: %w", err)
	}
	if !strings.HasPrefix(joined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact name %q escapes the cache directory", name)
	}
	return joined, nil
}
