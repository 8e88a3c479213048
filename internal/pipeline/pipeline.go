// Package pipeline turns raw extractor output into scored, deduplicated
// discoveries. Extractors are pluggable and untrusted: every artifact is
// validated against the contract at the boundary before scoring.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sleuth/internal/config"
	"sleuth/internal/normalize"
	"sleuth/internal/store"
)

// Artifact is the canonical extractor output contract. Type and Value
// are mandatory; Subtype and Context are optional.
type Artifact struct {
	Type       string  `json:"type"`
	Subtype    string  `json:"subtype,omitempty"`
	Value      string  `json:"value"`
	SourceURL  string  `json:"source_url"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
}

// Validate enforces the artifact contract.
func (a Artifact) Validate() error {
	if a.Type == "" {
		return fmt.Errorf("artifact missing type")
	}
	if a.Value == "" {
		return fmt.Errorf("artifact missing value (type %s)", a.Type)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("artifact confidence %v outside [0, 1]", a.Confidence)
	}
	return nil
}

// Session carries the objective context one investigation runs under,
// including the growing set of entity aliases used for scoring.
type Session struct {
	Objective     string
	ObjectiveType string // artifact-type hint, e.g. "name" or "wallet_address"
	Entity        string

	aliases map[string]bool
}

// NewSession seeds the alias set from the entity name: the full name,
// each part longer than two characters, and the "Last, First" form.
func NewSession(objective, objectiveType, entity string) *Session {
	s := &Session{
		Objective:     objective,
		ObjectiveType: objectiveType,
		Entity:        entity,
		aliases:       make(map[string]bool),
	}
	s.AddAlias(entity)
	parts := strings.Fields(entity)
	for _, part := range parts {
		if len(part) > 2 {
			s.AddAlias(part)
		}
	}
	if len(parts) >= 2 {
		s.AddAlias(parts[len(parts)-1] + ", " + strings.Join(parts[:len(parts)-1], " "))
	}
	return s
}

// AddAlias records a normalized alias. Empty input is ignored.
func (s *Session) AddAlias(alias string) {
	n := normalize.Text(alias)
	if n != "" {
		s.aliases[n] = true
	}
}

// Aliases returns the known aliases in normalized form.
func (s *Session) Aliases() []string {
	out := make([]string, 0, len(s.aliases))
	for a := range s.aliases {
		out = append(out, a)
	}
	return out
}

// MatchesAlias reports whether the normalized text contains any known
// alias of the entity.
func (s *Session) MatchesAlias(text string) bool {
	n := normalize.Text(text)
	if n == "" {
		return false
	}
	for alias := range s.aliases {
		if strings.Contains(n, alias) {
			return true
		}
	}
	return false
}

// aliasTypes are the artifact types whose values become entity aliases
// for subsequent scoring.
var aliasTypes = map[string]bool{
	"username":       true,
	"alias":          true,
	"wallet_address": true,
}

// Pipeline scores and records artifacts.
type Pipeline struct {
	scoring    config.ScoringConfig
	store      *store.Store
	narratives *store.NarrativeWriter
	logger     *zap.Logger

	now func() time.Time
}

// New creates a pipeline. The narrative writer may be nil, in which
// case narrative-worthy discoveries are indexed but no record files are
// written.
func New(scoring config.ScoringConfig, st *store.Store, narratives *store.NarrativeWriter, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		scoring:    scoring,
		store:      st,
		narratives: narratives,
		logger:     logger,
		now:        time.Now,
	}
}

// Process validates, deduplicates, scores, and records a batch of
// artifacts, returning the newly created discoveries. Artifacts that
// fail validation, duplicate within the batch, score at or below zero,
// or already exist in the store produce no discovery.
func (p *Pipeline) Process(artifacts []Artifact, sess *Session) ([]store.Discovery, error) {
	seen := make(map[string]bool, len(artifacts))
	var created []store.Discovery

	for _, a := range artifacts {
		if err := a.Validate(); err != nil {
			p.logger.Warn("Rejecting artifact at pipeline boundary", zap.Error(err))
			continue
		}

		normalized := normalize.Text(a.Value)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true

		score := p.score(a, sess)
		if score <= 0 {
			continue
		}

		d := store.Discovery{
			ID:                store.DiscoveryID(a.Type, normalized),
			Type:              a.Type,
			Subtype:           a.Subtype,
			NormalizedContent: normalized,
			RawContent:        a.Value,
			Score:             score,
			SourceURL:         a.SourceURL,
			EntityLinks:       []string{sess.Entity},
			Timestamp:         p.now(),
			NarrativeWorthy:   score > p.scoring.NarrativeThreshold,
		}

		isNew, err := p.store.Record(sess.Objective, d)
		if err != nil {
			return created, fmt.Errorf("failed to record discovery: %w", err)
		}

		if aliasTypes[a.Type] {
			sess.AddAlias(a.Value)
		}
		if !isNew {
			continue
		}

		created = append(created, d)
		if d.NarrativeWorthy && p.narratives != nil {
			if err := p.narratives.Write(d.ID, sess.Objective, sess.Entity, d); err != nil {
				p.logger.Warn("Failed to write narrative record",
					zap.String("id", d.ID), zap.Error(err))
			}
		}
	}

	return created, nil
}

// score applies the additive boosts on top of extractor confidence.
// The result is floored at 0 and capped at 1.
func (p *Pipeline) score(a Artifact, sess *Session) float64 {
	score := a.Confidence

	if sess.ObjectiveType != "" && a.Type == sess.ObjectiveType {
		score += p.scoring.ObjectiveTypeBoost
	}
	if p.trustedDomain(a.SourceURL) {
		score += p.scoring.TrustedDomainBoost
	}
	if sess.MatchesAlias(a.Value) || sess.MatchesAlias(a.Context) {
		score += p.scoring.EntityAliasBoost
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func (p *Pipeline) trustedDomain(rawURL string) bool {
	domain := normalize.Domain(rawURL)
	if domain == "" {
		return false
	}
	for _, trusted := range p.scoring.TrustedDomains {
		if domain == trusted || strings.HasSuffix(domain, "."+trusted) {
			return true
		}
	}
	return false
}
