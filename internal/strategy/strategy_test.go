package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFrontier(t *testing.T) *Frontier {
	t.Helper()
	f := NewFrontier(zap.NewNop())
	// Deterministic clock so discovery-order tie-breaks are stable.
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return f
}

func TestAddTargetDeterministicID(t *testing.T) {
	f := newTestFrontier(t)

	id1 := f.AddTarget(KindWebsite, "https://Example.com/about/", "seed", 5)
	id2 := f.AddTarget(KindWebsite, "example.com/about", "seed again", 3)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, f.Len())
}

func TestPriorityIsMonotonic(t *testing.T) {
	f := newTestFrontier(t)

	id := f.AddTarget(KindGithubRepo, "https://github.com/acme/site", "", 7)
	f.AddTarget(KindGithubRepo, "https://github.com/acme/site", "", 3)
	assert.Equal(t, 7, f.targets[id].Priority, "re-adding must not lower priority")

	f.AddTarget(KindGithubRepo, "https://github.com/acme/site", "", 9)
	assert.Equal(t, 9, f.targets[id].Priority, "higher suggestion raises priority")
}

func TestAddTargetRejectsInvalid(t *testing.T) {
	f := newTestFrontier(t)

	assert.Empty(t, f.AddTarget(KindWebsite, "", "no locator", 5))
	assert.Empty(t, f.AddTarget("crystal_ball", "https://example.com", "bad kind", 5))
	assert.Equal(t, 0, f.Len())
}

func TestNextTargetOrdering(t *testing.T) {
	f := newTestFrontier(t)

	f.AddTarget(KindWebsite, "https://low.example.com", "", 2)
	first := f.AddTarget(KindWebsite, "https://a.example.com", "", 8)
	second := f.AddTarget(KindWebsite, "https://b.example.com", "", 8)

	got := f.NextTarget()
	require.NotNil(t, got)
	assert.Equal(t, first, got.ID, "ties break toward earliest discovery")
	assert.Equal(t, StatusActive, got.Status)

	// Only one target may be active at a time.
	assert.Nil(t, f.NextTarget())

	f.CompleteTarget(got.ID)
	next := f.NextTarget()
	require.NotNil(t, next)
	assert.Equal(t, second, next.ID)
}

func TestCompleteTargetNoOpWhenNotActive(t *testing.T) {
	f := newTestFrontier(t)
	id := f.AddTarget(KindWebsite, "https://example.com", "", 5)

	f.CompleteTarget(id)
	assert.Equal(t, StatusPending, f.targets[id].Status)
	f.CompleteTarget("unknown")

	got := f.NextTarget()
	require.NotNil(t, got)
	f.CompleteTarget(got.ID)
	assert.Equal(t, StatusComplete, f.targets[id].Status)
	assert.NotNil(t, f.targets[id].CompletedAt)
	assert.Equal(t, 1, f.Completed())
}

func TestLeadsStayOutOfFrontierUntilReconcile(t *testing.T) {
	f := newTestFrontier(t)

	f.AddLead("https://pastebin.example.com/abc", KindWebsite, "mentioned in footer")
	f.AddLead("acme dev blog 2009", KindSearchQuery, "old handle")
	f.AddLead("", KindWebsite, "dropped")

	assert.Equal(t, 0, f.Len())
	assert.Equal(t, 2, f.PendingLeads())

	f.ReconcileLeads(nil)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, 0, f.PendingLeads())
}

func TestReconcileRescoreCanLowerPriority(t *testing.T) {
	f := newTestFrontier(t)
	id := f.AddTarget(KindWebsite, "https://stale.example.com", "", 9)

	f.ReconcileLeads(func(pending []*Target) map[string]int {
		require.Len(t, pending, 1)
		return map[string]int{id: 2, "unknown": 5}
	})

	assert.Equal(t, 2, f.targets[id].Priority)
}

func TestPendingSorted(t *testing.T) {
	f := newTestFrontier(t)
	f.AddTarget(KindWebsite, "https://one.example.com", "", 3)
	f.AddTarget(KindWebsite, "https://two.example.com", "", 8)
	f.AddTarget(KindWebsite, "https://three.example.com", "", 5)

	pending := f.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, 8, pending[0].Priority)
	assert.Equal(t, 5, pending[1].Priority)
	assert.Equal(t, 3, pending[2].Priority)
}
