// Package frontier implements the crash-safe URL queue that feeds the
// investigation loop. Entries are deduplicated on their normalized form
// across both the pending and visited partitions, so re-enqueueing a URL
// that differs only in case, query string, or trailing slash is a no-op.
package frontier

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"sleuth/internal/normalize"
)

// Entry is one queued URL with its crawl depth.
type Entry struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// state is the on-disk representation of the frontier.
type state struct {
	Pending map[string]Entry `json:"pending"`
	Visited []string         `json:"visited"`
}

// Frontier is a FIFO queue of (url, depth) pairs with a pending/visited
// partition persisted to disk. It is not safe for concurrent use; the
// orchestrator is single-threaded.
type Frontier struct {
	statePath  string
	backupPath string

	pending map[string]Entry
	order   []string // pending ids in FIFO order
	visited map[string]struct{}

	logger *zap.Logger
}

// New creates a frontier persisting to statePath, with the backup snapshot
// at a sibling path.
func New(statePath string, logger *zap.Logger) *Frontier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Frontier{
		statePath:  statePath,
		backupPath: statePath + ".bak",
		pending:    make(map[string]Entry),
		visited:    make(map[string]struct{}),
		logger:     logger,
	}
}

// id derives the frontier key for a URL from its normalized form.
func id(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])[:16]
}

// Enqueue adds a URL at the given depth. It is a no-op if the normalized
// form is already pending or visited. Nothing is written to disk until
// Flush is called.
func (f *Frontier) Enqueue(url string, depth int) bool {
	norm := normalize.URL(url)
	if norm == "" {
		return false
	}
	key := id(norm)
	if _, ok := f.pending[key]; ok {
		return false
	}
	if _, ok := f.visited[key]; ok {
		return false
	}
	f.pending[key] = Entry{URL: url, Depth: depth}
	f.order = append(f.order, key)
	return true
}

// Dequeue removes and returns the oldest pending entry, marking it visited.
// ok is false when the queue is empty.
func (f *Frontier) Dequeue() (entry Entry, ok bool) {
	for len(f.order) > 0 {
		key := f.order[0]
		f.order = f.order[1:]
		e, present := f.pending[key]
		if !present {
			continue
		}
		delete(f.pending, key)
		f.visited[key] = struct{}{}
		return e, true
	}
	return Entry{}, false
}

// PendingCount returns the number of queued URLs.
func (f *Frontier) PendingCount() int { return len(f.pending) }

// VisitedCount returns the number of processed URLs.
func (f *Frontier) VisitedCount() int { return len(f.visited) }

// Flush persists the full pending/visited partition. The previous good
// state file is copied to the backup location before the primary is
// replaced, so a crash between any two file operations leaves at least one
// readable snapshot.
func (f *Frontier) Flush() error {
	snapshot := state{
		Pending: f.pending,
		Visited: make([]string, 0, len(f.visited)),
	}
	for key := range f.visited {
		snapshot.Visited = append(snapshot.Visited, key)
	}
	sort.Strings(snapshot.Visited)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal frontier state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.statePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpPath := f.statePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state: %w", err)
	}

	// Preserve the previous good snapshot before replacing the primary.
	if prev, err := os.ReadFile(f.statePath); err == nil {
		if err := os.WriteFile(f.backupPath, prev, 0644); err != nil {
			return fmt.Errorf("failed to write backup state: %w", err)
		}
	}

	if err := os.Rename(tmpPath, f.statePath); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	f.logger.Debug("Frontier state flushed",
		zap.Int("pending", len(f.pending)),
		zap.Int("visited", len(f.visited)))
	return nil
}

// Load restores the frontier from disk. A corrupt primary is recovered from
// the backup and the primary is immediately rewritten (self-healing). If
// neither file is readable the frontier starts empty; Load never fails the
// startup path.
func (f *Frontier) Load() {
	if data, err := os.ReadFile(f.statePath); err == nil {
		if f.restore(data) {
			f.logger.Info("Frontier state loaded",
				zap.Int("pending", len(f.pending)),
				zap.Int("visited", len(f.visited)))
			return
		}
		f.logger.Warn("Frontier primary state corrupt, trying backup",
			zap.String("path", f.statePath))
	}

	if data, err := os.ReadFile(f.backupPath); err == nil {
		if f.restore(data) {
			// Self-heal: put the good snapshot back as the primary.
			if err := os.WriteFile(f.statePath, data, 0644); err != nil {
				f.logger.Warn("Failed to restore primary from backup", zap.Error(err))
			}
			f.logger.Info("Frontier state recovered from backup",
				zap.Int("pending", len(f.pending)),
				zap.Int("visited", len(f.visited)))
			return
		}
		f.logger.Warn("Frontier backup state corrupt", zap.String("path", f.backupPath))
	}

	f.pending = make(map[string]Entry)
	f.order = nil
	f.visited = make(map[string]struct{})
	f.logger.Info("Frontier starting empty")
}

// restore replaces in-memory state from a serialized snapshot. The on-disk
// format is a map, so FIFO order across restarts is approximated by sorting
// pending entries by depth then URL.
func (f *Frontier) restore(data []byte) bool {
	var snapshot state
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return false
	}

	f.pending = snapshot.Pending
	if f.pending == nil {
		f.pending = make(map[string]Entry)
	}
	f.visited = make(map[string]struct{}, len(snapshot.Visited))
	for _, key := range snapshot.Visited {
		f.visited[key] = struct{}{}
	}

	f.order = make([]string, 0, len(f.pending))
	for key := range f.pending {
		f.order = append(f.order, key)
	}
	sort.Slice(f.order, func(i, j int) bool {
		a, b := f.pending[f.order[i]], f.pending[f.order[j]]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		return a.URL < b.URL
	})
	return true
}
