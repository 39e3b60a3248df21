// Package journal keeps a tamper-evident record of every deployment
// operation. Entries are appended as JSONL with a SHA-256 hash chain so
// after-the-fact edits to the history are detectable.
package journal

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gale-deploy/agent/internal/logging"
)

var log = logging.L("journal")

// KindRotated marks the first entry of a freshly rotated file, linking
// back to the last entry of the previous one.
const KindRotated = "rotated"

// terminalKinds are entry kinds that are fsynced after writing. Outcome
// records must survive a crash; progress records may not.
var terminalKinds = map[string]bool{
	"succeeded": true,
	"failed":    true,
}

// Entry is a single journal record.
type Entry struct {
	Timestamp   string         `json:"timestamp"`
	Kind        string         `json:"kind"`
	OperationID string         `json:"operationId,omitempty"`
	Package     string         `json:"package,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	PrevHash    string         `json:"prevHash"`
	EntryHash   string         `json:"entryHash"`
}

// Writer appends hash-chained entries to a JSONL file, rotating it when
// it grows past maxSize. The chain is resumed from the tail of an
// existing file so the link survives process restarts.
type Writer struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	written    int64
	prevHash   string
	dropped    atomic.Int64
}

// NewWriter opens (or creates) the journal at path. maxSizeMB and
// maxBackups fall back to 50 and 3 when not positive.
func NewWriter(path string, maxSizeMB, maxBackups int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}

	w := &Writer{
		filePath:   path,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		prevHash:   "genesis",
	}

	if err := w.openFile(); err != nil {
		return nil, err
	}
	if hash := lastEntryHash(path); hash != "" {
		w.prevHash = hash
	}

	return w, nil
}

// Record writes one entry with hash chain linking. The chain is only
// advanced after a successful write: if the write fails, the next entry
// re-links to the same prevHash. Safe to call on a nil receiver.
func (w *Writer) Record(kind, operationID, pkg string, details map[string]any) {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	entry := Entry{
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Kind:        kind,
		OperationID: operationID,
		Package:     pkg,
		Details:     details,
		PrevHash:    w.prevHash,
	}

	entryHash, err := computeHash(entry)
	if err != nil {
		log.Error("failed to compute journal entry hash", "error", err, "kind", kind)
		w.dropped.Add(1)
		return
	}
	entry.EntryHash = entryHash

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error("failed to marshal journal entry", "error", err, "kind", kind)
		w.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	if w.written+int64(len(data)) > w.maxSize {
		if err := w.rotate(); err != nil {
			log.Error("journal rotation failed", "error", err)
			w.dropped.Add(1)
			return
		}
	}

	n, err := w.file.Write(data)
	if err != nil {
		log.Error("failed to write journal entry", "error", err, "kind", kind)
		w.dropped.Add(1)
		return
	}
	w.written += int64(n)
	w.prevHash = entry.EntryHash

	if terminalKinds[kind] {
		if err := w.file.Sync(); err != nil {
			log.Error("failed to fsync journal outcome entry", "error", err, "kind", kind)
		}
	}
}

// Close flushes and closes the journal file. Safe on a nil receiver.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Dropped returns the number of entries that failed to write. Returns -1
// on a nil receiver so "no journal" and "journal with zero drops" stay
// distinguishable.
func (w *Writer) Dropped() int64 {
	if w == nil {
		return -1
	}
	return w.dropped.Load()
}

// computeHash produces the SHA-256 hash for an entry. Fields are
// length-prefixed so a value containing a delimiter cannot collide with
// another field combination.
func computeHash(entry Entry) (string, error) {
	h := sha256.New()
	for _, field := range []string{entry.Timestamp, entry.Kind, entry.OperationID, entry.Package, entry.PrevHash} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	if entry.Details != nil {
		detailBytes, err := json.Marshal(entry.Details)
		if err != nil {
			return "", fmt.Errorf("marshal details for hash: %w", err)
		}
		fmt.Fprintf(h, "%d:", len(detailBytes))
		h.Write(detailBytes)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (w *Writer) openFile() error {
	f, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat journal: %w", err)
	}

	w.file = f
	w.written = info.Size()
	return nil
}

// lastEntryHash reads the final entry of an existing journal so a new
// process resumes the chain instead of restarting it at genesis. An
// unreadable tail is reported and the chain starts over.
func lastEntryHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return ""
	}

	const tailWindow = 64 * 1024
	offset := info.Size() - tailWindow
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return ""
	}
	tail, err := io.ReadAll(f)
	if err != nil {
		return ""
	}

	tail = bytes.TrimRight(tail, "\n")
	if len(tail) == 0 {
		return ""
	}
	if i := bytes.LastIndexByte(tail, '\n'); i >= 0 {
		tail = tail[i+1:]
	}

	var entry Entry
	if err := json.Unmarshal(tail, &entry); err != nil || entry.EntryHash == "" {
		log.Warn("journal tail is unreadable, starting a new chain", "path", path)
		return ""
	}
	return entry.EntryHash
}

func (w *Writer) rotate() error {
	prevHashBeforeRotation := w.prevHash

	if w.file != nil {
		w.file.Close()
	}

	// Shift existing backups: .3 is dropped, .2 becomes .3, .1 becomes .2.
	for i := w.maxBackups; i >= 2; i-- {
		src := w.backupName(i - 1)
		dst := w.backupName(i)
		if i == w.maxBackups {
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				log.Warn("journal rotation: failed to remove oldest backup", "path", dst, "error", err)
			}
		}
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			log.Warn("journal rotation: failed to rename backup", "src", src, "dst", dst, "error", err)
		}
	}

	if err := os.Rename(w.filePath, w.backupName(1)); err != nil && !os.IsNotExist(err) {
		log.Warn("journal rotation: failed to rename current file", "error", err)
	}

	if err := w.openFile(); err != nil {
		return err
	}

	// First entry of the new file links back to the old one.
	sentinel := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Kind:      KindRotated,
		PrevHash:  prevHashBeforeRotation,
		Details: map[string]any{
			"previousFile": w.backupName(1),
		},
	}
	sentinelHash, err := computeHash(sentinel)
	if err != nil {
		log.Error("rotation sentinel hash failed, chain is broken", "error", err)
		w.dropped.Add(1)
		w.prevHash = "chain-broken"
		return nil
	}
	sentinel.EntryHash = sentinelHash

	data, err := json.Marshal(sentinel)
	if err != nil {
		log.Error("rotation sentinel marshal failed, chain is broken", "error", err)
		w.dropped.Add(1)
		w.prevHash = "chain-broken"
		return nil
	}
	data = append(data, '\n')

	n, writeErr := w.file.Write(data)
	if writeErr != nil {
		log.Error("rotation sentinel write failed, chain is broken", "error", writeErr)
		w.dropped.Add(1)
		w.prevHash = "chain-broken"
		return nil
	}
	w.written += int64(n)
	w.prevHash = sentinel.EntryHash

	return nil
}

func (w *Writer) backupName(index int) string {
	if index == 0 {
		return w.filePath
	}
	return fmt.Sprintf("%s.%d", w.filePath, index)
}
