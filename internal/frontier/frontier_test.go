package frontier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFrontier(t *testing.T) *Frontier {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "queue_state.json"), zap.NewNop())
}

func TestEnqueueDedup(t *testing.T) {
	f := newTestFrontier(t)

	assert.True(t, f.Enqueue("https://x.com/a", 0))
	assert.False(t, f.Enqueue("https://x.com/a/", 0))
	assert.False(t, f.Enqueue("https://x.com/a?ref=1", 1))
	assert.Equal(t, 1, f.PendingCount())
}

func TestDequeueFIFO(t *testing.T) {
	f := newTestFrontier(t)
	f.Enqueue("https://x.com/first", 0)
	f.Enqueue("https://x.com/second", 1)

	e, ok := f.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "https://x.com/first", e.URL)
	assert.Equal(t, 0, e.Depth)

	e, ok = f.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "https://x.com/second", e.URL)

	_, ok = f.Dequeue()
	assert.False(t, ok)
	assert.Equal(t, 2, f.VisitedCount())
}

func TestVisitedBlocksReEnqueue(t *testing.T) {
	f := newTestFrontier(t)
	f.Enqueue("https://x.com/a", 0)
	_, ok := f.Dequeue()
	require.True(t, ok)

	assert.False(t, f.Enqueue("https://x.com/a/", 2))
	assert.Equal(t, 0, f.PendingCount())
}

func TestFlushAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue_state.json")

	f := New(path, zap.NewNop())
	f.Enqueue("https://x.com/a", 0)
	f.Enqueue("https://x.com/b", 1)
	_, ok := f.Dequeue()
	require.True(t, ok)
	require.NoError(t, f.Flush())

	g := New(path, zap.NewNop())
	g.Load()
	assert.Equal(t, 1, g.PendingCount())
	assert.Equal(t, 1, g.VisitedCount())

	// The visited URL must still be blocked after reload.
	assert.False(t, g.Enqueue("https://x.com/a", 0))
}

func TestCrashRecoveryFromBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue_state.json")

	f := New(path, zap.NewNop())
	f.Enqueue("https://x.com/a", 0)
	require.NoError(t, f.Flush())

	// Second flush creates the backup from the first good snapshot.
	f.Enqueue("https://x.com/b", 0)
	require.NoError(t, f.Flush())

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)

	// Simulate a crash mid-write that mangles the primary.
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	g := New(path, zap.NewNop())
	g.Load()
	assert.Equal(t, 1, g.PendingCount(), "state should match the backup snapshot")

	// The primary must be self-healed back to valid JSON.
	healed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, string(backup), string(healed))

	var snapshot map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(healed, &snapshot))
}

func TestBothFilesCorruptStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue_state.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(path+".bak", []byte("also garbage"), 0644))

	f := New(path, zap.NewNop())
	f.Load()
	assert.Equal(t, 0, f.PendingCount())
	assert.Equal(t, 0, f.VisitedCount())
}

func TestMissingFilesStartEmpty(t *testing.T) {
	f := newTestFrontier(t)
	f.Load()
	assert.Equal(t, 0, f.PendingCount())
}
