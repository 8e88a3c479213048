// Package strategy maintains the prioritized frontier of investigation
// targets. Targets move pending -> active -> complete, with at most one
// active target at a time so an investigation stays depth-first.
package strategy

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"go.uber.org/zap"

	"sleuth/internal/normalize"
)

// Target kinds.
const (
	KindWebsite       = "website"
	KindGithubRepo    = "github_repo"
	KindSearchQuery   = "search_query"
	KindArchiveWindow = "archive_window"
	KindForum         = "forum"
	KindBlog          = "blog"
)

// Target statuses.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusComplete = "complete"
)

var validKinds = map[string]bool{
	KindWebsite:       true,
	KindGithubRepo:    true,
	KindSearchQuery:   true,
	KindArchiveWindow: true,
	KindForum:         true,
	KindBlog:          true,
}

// Target is one unit of investigation: a site, repo, query, or archive
// window worth exhausting before moving on.
type Target struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Locator      string     `json:"locator"`
	Priority     int        `json:"priority"` // 1 (low) to 10 (high)
	Rationale    string     `json:"rationale"`
	Status       string     `json:"status"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Lead is an undecided pointer found mid-investigation. Leads sit in a
// side list until the next reconciliation so priorities do not churn
// while a target is in flight.
type Lead struct {
	Locator   string `json:"locator"`
	Kind      string `json:"kind"`
	Rationale string `json:"rationale"`
}

// TargetID derives the deterministic id for a (kind, locator) pair.
// Locators are normalized first so trivially different spellings of
// the same target collapse to one entry.
func TargetID(kind, locator string) string {
	canonical := locator
	if kind == KindSearchQuery {
		canonical = normalize.Text(locator)
	} else {
		canonical = normalize.URL(locator)
	}
	sum := sha256.Sum256([]byte(kind + "|" + canonical))
	return hex.EncodeToString(sum[:])[:16]
}

// Frontier holds all targets for one objective.
type Frontier struct {
	targets map[string]*Target
	leads   []Lead
	active  string // id of the active target, "" if none
	logger  *zap.Logger

	now func() time.Time
}

// NewFrontier creates an empty target frontier.
func NewFrontier(logger *zap.Logger) *Frontier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Frontier{
		targets: make(map[string]*Target),
		logger:  logger,
		now:     time.Now,
	}
}

// AddTarget inserts a target keyed by its derived id. Re-adding an
// existing target never lowers its priority; a higher suggested
// priority raises it. Returns the canonical id, or "" if the target
// was invalid and dropped.
func (f *Frontier) AddTarget(kind, locator, rationale string, priority int) string {
	if locator == "" || !validKinds[kind] {
		f.logger.Debug("Dropping invalid target",
			zap.String("kind", kind),
			zap.String("locator", locator))
		return ""
	}
	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}

	id := TargetID(kind, locator)
	if existing, ok := f.targets[id]; ok {
		if priority > existing.Priority {
			f.logger.Debug("Raising target priority",
				zap.String("id", id),
				zap.Int("from", existing.Priority),
				zap.Int("to", priority))
			existing.Priority = priority
		}
		return id
	}

	f.targets[id] = &Target{
		ID:           id,
		Kind:         kind,
		Locator:      locator,
		Priority:     priority,
		Rationale:    rationale,
		Status:       StatusPending,
		DiscoveredAt: f.now(),
	}
	return id
}

// NextTarget returns the highest-priority pending target and marks it
// active. Ties break toward the earliest discovered. Returns nil when
// nothing is pending or a target is already active.
func (f *Frontier) NextTarget() *Target {
	if f.active != "" {
		return nil
	}

	var best *Target
	for _, t := range f.targets {
		if t.Status != StatusPending {
			continue
		}
		if best == nil ||
			t.Priority > best.Priority ||
			(t.Priority == best.Priority && t.DiscoveredAt.Before(best.DiscoveredAt)) {
			best = t
		}
	}
	if best == nil {
		return nil
	}

	best.Status = StatusActive
	f.active = best.ID
	f.logger.Info("Activating target",
		zap.String("kind", best.Kind),
		zap.String("locator", best.Locator),
		zap.Int("priority", best.Priority))
	return best
}

// CompleteTarget transitions the active target to complete. No-op if
// the id is unknown or the target is not active.
func (f *Frontier) CompleteTarget(id string) {
	t, ok := f.targets[id]
	if !ok || t.Status != StatusActive {
		return
	}
	done := f.now()
	t.Status = StatusComplete
	t.CompletedAt = &done
	f.active = ""
}

// Active returns the currently active target, or nil.
func (f *Frontier) Active() *Target {
	if f.active == "" {
		return nil
	}
	return f.targets[f.active]
}

// AddLead records an undecided lead for the next reconciliation.
func (f *Frontier) AddLead(locator, kind, rationale string) {
	if locator == "" {
		return
	}
	f.leads = append(f.leads, Lead{Locator: locator, Kind: kind, Rationale: rationale})
}

// PendingLeads returns the number of unreconciled leads.
func (f *Frontier) PendingLeads() int { return len(f.leads) }

// ReconcileLeads converts accumulated leads into targets and, when a
// rescorer is supplied, lets it revise priorities across the whole
// pending set. This is the only path that may lower a priority.
func (f *Frontier) ReconcileLeads(rescore func(pending []*Target) map[string]int) {
	for _, lead := range f.leads {
		kind := lead.Kind
		if !validKinds[kind] {
			kind = KindWebsite
		}
		f.AddTarget(kind, lead.Locator, lead.Rationale, 5)
	}
	converted := len(f.leads)
	f.leads = nil

	if rescore == nil {
		if converted > 0 {
			f.logger.Info("Reconciled leads into targets", zap.Int("count", converted))
		}
		return
	}

	pending := f.Pending()
	revised := rescore(pending)
	for id, p := range revised {
		t, ok := f.targets[id]
		if !ok || t.Status != StatusPending {
			continue
		}
		if p < 1 {
			p = 1
		}
		if p > 10 {
			p = 10
		}
		t.Priority = p
	}
	f.logger.Info("Reconciled leads into targets",
		zap.Int("converted", converted),
		zap.Int("rescored", len(revised)))
}

// Pending returns pending targets in priority order (highest first,
// ties by earliest discovery).
func (f *Frontier) Pending() []*Target {
	var out []*Target
	for _, t := range f.targets {
		if t.Status == StatusPending {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].DiscoveredAt.Before(out[j].DiscoveredAt)
	})
	return out
}

// Completed returns how many targets have been completed.
func (f *Frontier) Completed() int {
	n := 0
	for _, t := range f.targets {
		if t.Status == StatusComplete {
			n++
		}
	}
	return n
}

// Len returns the total number of targets in any status.
func (f *Frontier) Len() int { return len(f.targets) }
