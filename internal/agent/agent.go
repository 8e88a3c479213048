// Package agent drives the investigation loop: pop the next target,
// expand it into URLs, fetch, extract, score, and periodically re-plan.
// Execution is single-threaded; one target, one fetch, and one LLM call
// are in flight at any time.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sleuth/internal/config"
	"sleuth/internal/fetch"
	"sleuth/internal/frontier"
	"sleuth/internal/llm"
	"sleuth/internal/normalize"
	"sleuth/internal/pipeline"
	"sleuth/internal/store"
	"sleuth/internal/strategy"
)

// searchResultLimit caps how many hits one search query feeds the queue.
const searchResultLimit = 5

// pageLeadLimit caps how many off-domain links one page contributes as
// leads, so link-heavy pages do not flood the next reconciliation.
const pageLeadLimit = 5

// Agent wires the components of one investigation run.
type Agent struct {
	cfg    *config.Config
	logger *zap.Logger

	gateway  *llm.Gateway
	planner  *strategy.Planner
	fetcher  *fetch.Fetcher
	searcher fetch.Searcher
	wayback  *fetch.WaybackClient
	registry *pipeline.Registry
	store    *store.Store
	pipe     *pipeline.Pipeline
	delay    *fetch.DelayPolicy
}

// Options overrides external collaborators, mainly for tests. Nil
// fields fall back to the defaults built from the config.
type Options struct {
	Fetcher  *fetch.Fetcher
	Searcher fetch.Searcher
	Wayback  *fetch.WaybackClient
	Delay    *fetch.DelayPolicy
}

// New assembles an agent from configuration.
func New(cfg *config.Config, gateway *llm.Gateway, st *store.Store, narratives *store.NarrativeWriter, logger *zap.Logger, opts Options) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Agent{
		cfg:      cfg,
		logger:   logger,
		gateway:  gateway,
		planner:  strategy.NewPlanner(gateway, logger),
		store:    st,
		registry: pipeline.DefaultRegistry(logger),
		pipe:     pipeline.New(cfg.Scoring, st, narratives, logger),
		fetcher:  opts.Fetcher,
		searcher: opts.Searcher,
		wayback:  opts.Wayback,
		delay:    opts.Delay,
	}
	if a.fetcher == nil {
		a.fetcher = fetch.New(fetch.Config{
			UserAgent:    cfg.Crawl.UserAgent,
			MaxBodyBytes: cfg.Crawl.MaxBodyBytes,
		}, logger)
	}
	if a.searcher == nil {
		a.searcher = fetch.NewDuckDuckGoSearcher(cfg.Crawl.UserAgent, logger)
	}
	if a.wayback == nil {
		a.wayback = fetch.NewWaybackClient(logger)
	}
	if a.delay == nil {
		a.delay = fetch.NewDelayPolicy(cfg.GetCrawlDelay())
	}
	return a
}

// SessionResult summarizes one objective's run for reporting.
type SessionResult struct {
	SessionID       string
	Objective       string
	Entity          string
	Started         time.Time
	Finished        time.Time
	URLsProcessed   int
	ArtifactsFound  int
	Discoveries     int
	HighScoring     int
	NarrativeWorthy int
	Domains         map[string]int
	Top             []store.Discovery
	AllLLMFailed    bool
}

// Run investigates one objective until the target frontier is exhausted,
// the wall-clock budget runs out, or the context is cancelled. It always
// returns a result; LLM and fetch failures degrade the run, they never
// abort it.
func (a *Agent) Run(ctx context.Context, objective, entity string, budget time.Duration) (*SessionResult, error) {
	result := &SessionResult{
		SessionID: uuid.New().String(),
		Objective: objective,
		Entity:    entity,
		Started:   time.Now(),
		Domains:   make(map[string]int),
	}
	deadline := result.Started.Add(budget)

	a.logger.Info("Starting investigation",
		zap.String("session", result.SessionID),
		zap.String("objective", objective),
		zap.String("entity", entity),
		zap.Duration("budget", budget))

	sess := pipeline.NewSession(objective, inferObjectiveType(objective), entity)
	targets := strategy.NewFrontier(a.logger)

	// Queue state is keyed by objective so a crashed run picks up where
	// it left off.
	urls := frontier.New(a.queueStatePath(objective), a.logger)
	urls.Load()

	planCtx, cancel := context.WithTimeout(ctx, a.cfg.GetLLMTimeout())
	planned, llmFailed := a.planner.BuildPlan(planCtx, targets, objective, entity)
	cancel()
	result.AllLLMFailed = llmFailed
	if planned == 0 {
		a.seedFallbackTargets(targets, entity)
	}

	dequeues := 0
	for {
		if ctx.Err() != nil || time.Now().After(deadline) {
			a.logger.Info("Budget exhausted, stopping new work")
			break
		}

		target := targets.NextTarget()
		if target == nil {
			break
		}

		a.expandTarget(ctx, target, urls)
		a.drainQueue(ctx, deadline, urls, targets, sess, result, &dequeues)
		targets.CompleteTarget(target.ID)

		completed := targets.Completed()
		if completed%a.cfg.Loop.ReviewInterval == 0 {
			a.reviewStrategy(ctx, targets, sess, objective)
		}
		if completed%a.cfg.Loop.ReconcileInterval == 0 && targets.PendingLeads() > 0 {
			a.reconcile(ctx, targets, objective)
		}
	}

	if err := urls.Flush(); err != nil {
		a.logger.Warn("Failed to flush URL frontier at exit", zap.Error(err))
	}

	result.Finished = time.Now()
	a.finishStats(result)
	return result, nil
}

// expandTarget turns one target into URL frontier entries.
func (a *Agent) expandTarget(ctx context.Context, target *strategy.Target, urls *frontier.Frontier) {
	switch target.Kind {
	case strategy.KindSearchQuery:
		searchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		results, err := a.searcher.Search(searchCtx, target.Locator, searchResultLimit)
		if err != nil {
			a.logger.Warn("Search failed", zap.String("query", target.Locator), zap.Error(err))
			return
		}
		for _, r := range results {
			urls.Enqueue(r.URL, 0)
		}

	case strategy.KindArchiveWindow:
		locator, fromYear, toYear := parseArchiveWindow(target.Locator)
		archiveCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
		snapshots, err := a.wayback.Snapshots(archiveCtx, locator, fromYear, toYear)
		if err != nil {
			a.logger.Warn("Archive listing failed", zap.String("target", target.Locator), zap.Error(err))
			return
		}
		for _, snap := range fetch.SampleSnapshots(snapshots) {
			urls.Enqueue(snap.ArchiveURL(), 0)
		}

	default: // website, github_repo, forum, blog
		urls.Enqueue(target.Locator, 0)
	}
}

// drainQueue processes pending URLs until the queue is empty or the
// budget runs out. Page links feed back into the queue up to the depth
// limit; off-domain links become leads instead.
func (a *Agent) drainQueue(ctx context.Context, deadline time.Time, urls *frontier.Frontier, targets *strategy.Frontier, sess *pipeline.Session, result *SessionResult, dequeues *int) {
	for {
		if ctx.Err() != nil || time.Now().After(deadline) {
			return
		}

		entry, ok := urls.Dequeue()
		if !ok {
			return
		}
		*dequeues++
		if *dequeues%a.cfg.Crawl.FlushInterval == 0 {
			if err := urls.Flush(); err != nil {
				a.logger.Warn("Failed to flush URL frontier", zap.Error(err))
			}
		}

		a.delay.Wait(ctx)

		fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		page, err := a.fetcher.Fetch(fetchCtx, entry.URL)
		cancel()
		if err != nil {
			a.logger.Debug("Fetch failed", zap.String("url", entry.URL), zap.Error(err))
			continue
		}

		result.URLsProcessed++
		if domain := normalize.Domain(entry.URL); domain != "" {
			result.Domains[domain]++
		}

		artifacts := a.registry.Extract(page.Content, entry.URL)
		result.ArtifactsFound += len(artifacts)

		discoveries, err := a.pipe.Process(artifacts, sess)
		if err != nil {
			a.logger.Warn("Pipeline failed for page", zap.String("url", entry.URL), zap.Error(err))
		}
		result.Discoveries += len(discoveries)

		// Newly discovered names that are not already aliases of the
		// entity become search leads for the next reconciliation.
		for _, d := range discoveries {
			if d.Type == "name" && !sess.MatchesAlias(d.NormalizedContent) {
				targets.AddLead(d.NormalizedContent, strategy.KindSearchQuery,
					"name discovered at "+entry.URL)
			}
		}

		pageDomain := normalize.Domain(entry.URL)
		leads := 0
		for _, link := range page.Links {
			if normalize.Domain(link) == pageDomain {
				if entry.Depth < a.cfg.Crawl.MaxDepth {
					urls.Enqueue(link, entry.Depth+1)
				}
				continue
			}
			if leads < pageLeadLimit {
				targets.AddLead(link, leadKind(link), "linked from "+entry.URL)
				leads++
			}
		}
	}
}

// leadKind guesses the target kind for an off-domain link.
func leadKind(link string) string {
	if normalize.Domain(link) == "github.com" {
		return strategy.KindGithubRepo
	}
	return strategy.KindWebsite
}

func (a *Agent) reconcile(ctx context.Context, targets *strategy.Frontier, objective string) {
	llmCtx, cancel := context.WithTimeout(ctx, a.cfg.GetLLMTimeout())
	defer cancel()
	targets.ReconcileLeads(a.planner.Rescore(llmCtx, objective, a.highlights(objective)))
}

func (a *Agent) reviewStrategy(ctx context.Context, targets *strategy.Frontier, sess *pipeline.Session, objective string) {
	llmCtx, cancel := context.WithTimeout(ctx, a.cfg.GetLLMTimeout())
	defer cancel()
	for _, lead := range a.planner.ReviewStrategy(llmCtx, targets, objective, a.highlights(objective)) {
		targets.AddLead(lead.Locator, lead.Kind, lead.Rationale)
	}
}

func (a *Agent) highlights(objective string) []string {
	top, err := a.store.Top(objective, 5)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(top))
	for _, d := range top {
		out = append(out, fmt.Sprintf("%s: %s (%.2f)", d.Type, d.RawContent, d.Score))
	}
	return out
}

// seedFallbackTargets gives a degraded run something to do when the
// planner produced nothing.
func (a *Agent) seedFallbackTargets(targets *strategy.Frontier, entity string) {
	if entity == "" {
		return
	}
	targets.AddTarget(strategy.KindSearchQuery, entity, "entity name search", 6)
	targets.AddTarget(strategy.KindSearchQuery, entity+" site:github.com", "code footprint search", 5)
	a.logger.Info("Seeded fallback targets", zap.String("entity", entity))
}

func (a *Agent) finishStats(result *SessionResult) {
	stats, err := a.store.ObjectiveStats(result.Objective)
	if err != nil {
		a.logger.Warn("Failed to collect objective stats", zap.Error(err))
		return
	}
	result.HighScoring = stats.HighScoring
	result.NarrativeWorthy = stats.NarrativeWorthy

	top, err := a.store.Top(result.Objective, 10)
	if err == nil {
		result.Top = top
	}
}

// CloseObjective archives the objective's discoveries.
func (a *Agent) CloseObjective(objective string) error {
	return a.store.ArchiveObjective(objective)
}

func (a *Agent) queueStatePath(objective string) string {
	sum := sha256.Sum256([]byte(normalize.Text(objective)))
	return filepath.Join(a.cfg.State.Dir, "queue", fmt.Sprintf("queue_%s.json", hex.EncodeToString(sum[:])[:16]))
}

var archiveWindowPattern = regexp.MustCompile(`^(.*?)\s+(\d{4})(?:\s*-\s*(\d{4}))?$`)

// parseArchiveWindow splits an optional trailing year range off an
// archive_window locator: "example.com 2008-2010" or "example.com 2009".
// Without a range, both years are zero and the whole history is listed.
func parseArchiveWindow(locator string) (target string, fromYear, toYear int) {
	m := archiveWindowPattern.FindStringSubmatch(strings.TrimSpace(locator))
	if m == nil {
		return locator, 0, 0
	}
	from, err := strconv.Atoi(m[2])
	if err != nil {
		return locator, 0, 0
	}
	to := from
	if m[3] != "" {
		if v, err := strconv.Atoi(m[3]); err == nil {
			to = v
		}
	}
	return m[1], from, to
}

// inferObjectiveType extracts the artifact-type hint from objective text.
func inferObjectiveType(objective string) string {
	lower := strings.ToLower(objective)
	switch {
	case strings.Contains(lower, "wallet"):
		return "wallet_address"
	case strings.Contains(lower, "username") || strings.Contains(lower, "handle") || strings.Contains(lower, "alias"):
		return "username"
	case strings.Contains(lower, "code"):
		return "code"
	case strings.Contains(lower, "name"):
		return "name"
	default:
		return ""
	}
}
