package scratch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rhuss/dialog/pkg/observability"
)

// Manager owns one scratch root directory. Reclamation runs
// synchronously between turns; it is never concurrent with anything.
type Manager struct {
	root     string
	ttl      time.Duration
	maxBytes int64

	// now is swapped by tests to control entry ages.
	now func() time.Time
}

// New creates a Manager for the given root, creating the directory if
// needed. Entries older than ttl, or the oldest entries once total
// usage exceeds maxBytes, are removed by Reclaim.
func New(root string, ttl time.Duration, maxBytes int64) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scratch root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch root: %w", err)
	}
	return &Manager{
		root:     abs,
		ttl:      ttl,
		maxBytes: maxBytes,
		now:      time.Now,
	}, nil
}

// Root returns the absolute scratch root path.
func (m *Manager) Root() string {
	return m.root
}

// Allocate returns a fresh path under the scratch root, named by a
// millisecond timestamp plus the given suffix. The file is not created;
// the caller creates it.
func (m *Manager) Allocate(suffix string) string {
	return filepath.Join(m.root, fmt.Sprintf("%d%s", m.now().UnixMilli(), suffix))
}

// entry is one filesystem object under the scratch root.
type entry struct {
	path    string
	size    int64
	modTime time.Time
	isDir   bool
}

// Reclaim sweeps the scratch root in two passes: first every entry
// older than the TTL is deleted, then, if total usage still exceeds the
// byte ceiling, the remaining entries are deleted oldest-first until
// usage is under the ceiling. Individual delete failures are logged
// and do not abort the sweep.
func (m *Manager) Reclaim() error {
	entries, err := m.list()
	if err != nil {
		return err
	}

	now := m.now()
	var reclaimed int64

	// Pass 1: TTL.
	var kept []entry
	for _, e := range entries {
		if now.Sub(e.modTime) > m.ttl {
			if m.remove(e) {
				reclaimed += e.size
			}
			continue
		}
		kept = append(kept, e)
	}

	// Pass 2: byte ceiling, oldest first.
	var total int64
	for _, e := range kept {
		total += e.size
	}
	if total > m.maxBytes {
		sort.Slice(kept, func(i, j int) bool {
			return kept[i].modTime.Before(kept[j].modTime)
		})
		for _, e := range kept {
			if total <= m.maxBytes {
				break
			}
			if m.remove(e) {
				total -= e.size
				reclaimed += e.size
			}
		}
	}

	observability.ScratchReclaimedBytes.Add(float64(reclaimed))
	observability.ScratchUsageBytes.Set(float64(total))
	return nil
}

// ClearAll unconditionally removes the entire scratch root and
// recreates it empty. Used at process start and shutdown so no stale
// state crosses runs.
func (m *Manager) ClearAll() error {
	if err := os.RemoveAll(m.root); err != nil {
		return fmt.Errorf("clearing scratch root: %w", err)
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("recreating scratch root: %w", err)
	}
	observability.ScratchUsageBytes.Set(0)
	return nil
}

// Usage returns the total size in bytes of all files under the root.
func (m *Manager) Usage() (int64, error) {
	entries, err := m.list()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	return total, nil
}

// list collects the top-level entries under the root. Directory sizes
// are the sum of their contained files.
func (m *Manager) list() ([]entry, error) {
	dirents, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("reading scratch root: %w", err)
	}

	var entries []entry
	for _, d := range dirents {
		full := filepath.Join(m.root, d.Name())
		info, err := d.Info()
		if err != nil {
			continue
		}
		e := entry{path: full, modTime: info.ModTime(), isDir: d.IsDir()}
		if d.IsDir() {
			e.size = dirSize(full)
		} else {
			e.size = info.Size()
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// remove deletes one entry, tolerating failures. Reports success.
func (m *Manager) remove(e entry) bool {
	var err error
	if e.isDir {
		err = os.RemoveAll(e.path)
	} else {
		err = os.Remove(e.path)
	}
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("scratch reclaim could not delete entry", "path", e.path, "error", err)
		return false
	}
	return true
}

// dirSize sums the file sizes under dir. Errors count as zero.
func dirSize(dir string) int64 {
	var total int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
