package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sleuth/internal/llm"
)

// planResponse is the structured plan the LLM is asked to produce.
// Missing sections unmarshal to empty slices and are simply skipped.
type planResponse struct {
	Sources        []planItem `json:"sources"`
	GithubTargets  []planItem `json:"github_targets"`
	WaybackTargets []planItem `json:"wayback_targets"`
	SearchQueries  []planItem `json:"search_queries"`
	ForumTargets   []planItem `json:"forum_targets"`
}

type planItem struct {
	URL       string `json:"url"`
	Query     string `json:"query"`
	Priority  int    `json:"priority"`
	Rationale string `json:"rationale"`
}

func (p planItem) locator() string {
	if p.URL != "" {
		return p.URL
	}
	return p.Query
}

// Planner seeds and revises the target frontier through the LLM gateway.
type Planner struct {
	gateway *llm.Gateway
	logger  *zap.Logger
}

// NewPlanner creates a planner over the given gateway.
func NewPlanner(gateway *llm.Gateway, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{gateway: gateway, logger: logger}
}

// BuildPlan asks the LLM for a comprehensive research plan and loads it
// into the frontier. It returns the number of targets added and whether
// the whole provider chain failed. A degraded gateway result yields zero
// targets, never an error; the caller decides whether to fall back to
// manually seeded targets.
func (p *Planner) BuildPlan(ctx context.Context, f *Frontier, objective, entity string) (int, bool) {
	prompt := buildPlanPrompt(objective, entity)
	result := p.gateway.Complete(ctx, prompt)
	if result.AllFailed {
		p.logger.Warn("Planning skipped, no provider produced a plan")
		return 0, true
	}

	var plan planResponse
	if err := json.Unmarshal(result.Data, &plan); err != nil {
		p.logger.Warn("Plan response did not match expected shape", zap.Error(err))
		return 0, false
	}

	added := 0
	for _, item := range plan.Sources {
		kind := KindWebsite
		if looksLikeBlog(item.locator()) {
			kind = KindBlog
		}
		if f.AddTarget(kind, item.locator(), item.Rationale, item.Priority) != "" {
			added++
		}
	}
	added += p.loadSection(f, plan.GithubTargets, KindGithubRepo)
	added += p.loadSection(f, plan.WaybackTargets, KindArchiveWindow)
	added += p.loadSection(f, plan.SearchQueries, KindSearchQuery)
	added += p.loadSection(f, plan.ForumTargets, KindForum)

	p.logger.Info("Research plan loaded",
		zap.String("provider", result.Provider),
		zap.Int("targets", added),
		zap.Bool("repaired", result.Repaired))
	return added, false
}

// looksLikeBlog spots blog hosts and paths so they carry the blog kind.
func looksLikeBlog(locator string) bool {
	lower := strings.ToLower(locator)
	return strings.Contains(lower, "blog.") ||
		strings.Contains(lower, "/blog") ||
		strings.Contains(lower, "medium.com") ||
		strings.Contains(lower, "substack.com")
}

func (p *Planner) loadSection(f *Frontier, items []planItem, kind string) int {
	added := 0
	for _, item := range items {
		if f.AddTarget(kind, item.locator(), item.Rationale, item.Priority) != "" {
			added++
		}
	}
	return added
}

// Rescore returns a rescoring function for Frontier.ReconcileLeads that
// asks the LLM to re-rank the pending set given discoveries so far.
func (p *Planner) Rescore(ctx context.Context, objective string, highlights []string) func([]*Target) map[string]int {
	return func(pending []*Target) map[string]int {
		if len(pending) == 0 {
			return nil
		}
		prompt := buildRescorePrompt(objective, highlights, pending)
		result := p.gateway.Complete(ctx, prompt)
		if result.AllFailed {
			return nil
		}

		var resp struct {
			Priorities map[string]int `json:"priorities"`
		}
		if err := json.Unmarshal(result.Data, &resp); err != nil {
			p.logger.Warn("Rescore response did not match expected shape", zap.Error(err))
			return nil
		}
		return resp.Priorities
	}
}

// ReviewStrategy asks the LLM whether the current direction is still
// productive and returns suggested new leads. Failures return nothing.
func (p *Planner) ReviewStrategy(ctx context.Context, f *Frontier, objective string, highlights []string) []Lead {
	prompt := buildReviewPrompt(objective, highlights, f.Pending())
	result := p.gateway.Complete(ctx, prompt)
	if result.AllFailed {
		return nil
	}

	var resp struct {
		NewLeads []struct {
			Locator   string `json:"locator"`
			Kind      string `json:"kind"`
			Rationale string `json:"rationale"`
		} `json:"new_leads"`
	}
	if err := json.Unmarshal(result.Data, &resp); err != nil {
		return nil
	}

	leads := make([]Lead, 0, len(resp.NewLeads))
	for _, l := range resp.NewLeads {
		if l.Locator == "" {
			continue
		}
		leads = append(leads, Lead{Locator: l.Locator, Kind: l.Kind, Rationale: l.Rationale})
	}
	return leads
}

func buildPlanPrompt(objective, entity string) string {
	var b strings.Builder
	b.WriteString("You are planning an open-source investigation.\n\n")
	fmt.Fprintf(&b, "Objective: %s\n", objective)
	if entity != "" {
		fmt.Fprintf(&b, "Primary entity: %s\n", entity)
	}
	b.WriteString(`
Produce a comprehensive research plan as JSON with this exact shape:
{
  "sources": [{"url": "...", "priority": 1-10, "rationale": "..."}],
  "github_targets": [{"url": "...", "priority": 1-10, "rationale": "..."}],
  "wayback_targets": [{"url": "...", "priority": 1-10, "rationale": "..."}],
  "search_queries": [{"query": "...", "priority": 1-10, "rationale": "..."}],
  "forum_targets": [{"url": "...", "priority": 1-10, "rationale": "..."}]
}

Favor primary sources over aggregators. Respond with JSON only.`)
	return b.String()
}

func buildRescorePrompt(objective string, highlights []string, pending []*Target) string {
	var b strings.Builder
	b.WriteString("Re-rank the remaining investigation targets.\n\n")
	fmt.Fprintf(&b, "Objective: %s\n\n", objective)
	if len(highlights) > 0 {
		b.WriteString("Discoveries so far:\n")
		for _, h := range highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString("\n")
	}
	b.WriteString("Pending targets:\n")
	for _, t := range pending {
		fmt.Fprintf(&b, "- id=%s kind=%s priority=%d %s\n", t.ID, t.Kind, t.Priority, t.Locator)
	}
	b.WriteString(`
Respond with JSON only: {"priorities": {"<id>": 1-10, ...}}.
Omit targets whose priority should not change.`)
	return b.String()
}

func buildReviewPrompt(objective string, highlights []string, pending []*Target) string {
	var b strings.Builder
	b.WriteString("Review the direction of this investigation.\n\n")
	fmt.Fprintf(&b, "Objective: %s\n\n", objective)
	if len(highlights) > 0 {
		b.WriteString("Recent discoveries:\n")
		for _, h := range highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Pending targets remaining: %d\n", len(pending))
	b.WriteString(`
If promising directions are missing, suggest them. Respond with JSON only:
{"new_leads": [{"locator": "...", "kind": "website|github_repo|search_query|archive_window|forum|blog", "rationale": "..."}]}`)
	return b.String()
}
