package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "discoveries.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDiscovery(value string, score float64) Discovery {
	return Discovery{
		ID:                DiscoveryID("username", value),
		Type:              "username",
		NormalizedContent: value,
		RawContent:        value,
		Score:             score,
		SourceURL:         "https://example.com/profile",
		EntityLinks:       []string{"acme"},
		Timestamp:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		NarrativeWorthy:   score > 0.8,
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := newTestStore(t)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestRecordAndGet(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Record("find aliases", sampleDiscovery("zephyr42", 0.9))
	require.NoError(t, err)
	assert.True(t, created)

	got, err := s.Get(DiscoveryID("username", "zephyr42"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "username", got.Type)
	assert.Equal(t, 0.9, got.Score)
	assert.True(t, got.NarrativeWorthy)
	assert.Equal(t, []string{"acme"}, got.EntityLinks)
}

func TestRecordMergesEntityLinks(t *testing.T) {
	s := newTestStore(t)

	d := sampleDiscovery("zephyr42", 0.9)
	_, err := s.Record("obj", d)
	require.NoError(t, err)

	// Same id recurs with a new associated entity; no new row, links union.
	d.EntityLinks = []string{"acme", "zed"}
	created, err := s.Record("obj", d)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.Get(d.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme", "zed"}, got.EntityLinks)

	// Re-recording with no new links is a no-op.
	created, err = s.Record("obj", d)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTopAndStats(t *testing.T) {
	s := newTestStore(t)

	for _, tc := range []struct {
		value string
		score float64
	}{
		{"low", 0.2},
		{"high", 0.95},
		{"mid", 0.6},
	} {
		_, err := s.Record("obj", sampleDiscovery(tc.value, tc.score))
		require.NoError(t, err)
	}

	top, err := s.Top("obj", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "high", top[0].RawContent)
	assert.Equal(t, "mid", top[1].RawContent)

	st, err := s.ObjectiveStats("obj")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.NarrativeWorthy)
	assert.Equal(t, 2, st.HighScoring)
}

func TestArchiveObjective(t *testing.T) {
	s := newTestStore(t)

	d := sampleDiscovery("zephyr42", 0.9)
	_, err := s.Record("obj", d)
	require.NoError(t, err)

	require.NoError(t, s.ArchiveObjective("obj"))

	st, err := s.ObjectiveStats("obj")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Total)

	// Archived rows remain addressable by id.
	got, err := s.Get(d.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestNarrativeWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "narratives")
	w, err := NewNarrativeWriter(dir)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	d := sampleDiscovery("zephyr42", 0.9)
	require.NoError(t, w.Write(d.ID, "find aliases", "acme", d))

	data, err := os.ReadFile(filepath.Join(dir, "narrative_"+d.ID+".json"))
	require.NoError(t, err)

	var record NarrativeRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "find aliases", record.Objective)
	assert.Equal(t, "username", record.ArtifactType)
	assert.Equal(t, "acme", record.Entity)
	assert.Equal(t, "zephyr42", record.Content)
	assert.Equal(t, "2026-03-01T12:00:00Z", record.Timestamp)
}
