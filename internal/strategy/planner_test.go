package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sleuth/internal/llm"
)

type scriptedClient struct {
	response string
}

func (s *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, nil
}

func (s *scriptedClient) Provider() string { return "scripted" }

func TestBuildPlanLoadsAllSections(t *testing.T) {
	gw := llm.NewGateway(zap.NewNop(), &scriptedClient{response: `{
		"sources": [{"url": "https://example.com/about", "priority": 8, "rationale": "official site"}],
		"github_targets": [{"url": "https://github.com/acme/site", "priority": 7, "rationale": "source history"}],
		"wayback_targets": [{"url": "https://example.com", "priority": 6, "rationale": "earlier versions"}],
		"search_queries": [{"query": "acme founder 2009", "priority": 5, "rationale": "early mentions"}],
		"forum_targets": [{"url": "https://forum.example.com/t/1", "priority": 4, "rationale": "community thread"}]
	}`})

	f := newTestFrontier(t)
	p := NewPlanner(gw, zap.NewNop())

	added, failed := p.BuildPlan(context.Background(), f, "find name artifacts", "acme")
	assert.Equal(t, 5, added)
	assert.False(t, failed)
	assert.Equal(t, 5, f.Len())

	got := f.NextTarget()
	require.NotNil(t, got)
	assert.Equal(t, KindWebsite, got.Kind)
	assert.Equal(t, 8, got.Priority)
}

func TestBuildPlanSkipsInvalidItems(t *testing.T) {
	gw := llm.NewGateway(zap.NewNop(), &scriptedClient{response: `{
		"sources": [{"url": "", "priority": 8}, {"url": "https://example.com", "priority": 5}],
		"search_queries": [{"query": "acme", "priority": 99}]
	}`})

	f := newTestFrontier(t)
	added, _ := NewPlanner(gw, zap.NewNop()).BuildPlan(context.Background(), f, "obj", "")

	assert.Equal(t, 2, added)
	// Out-of-range priorities are clamped, not rejected.
	got := f.NextTarget()
	require.NotNil(t, got)
	assert.Equal(t, 10, got.Priority)
}

func TestBuildPlanDegradedGateway(t *testing.T) {
	f := newTestFrontier(t)
	added, failed := NewPlanner(llm.NewGateway(zap.NewNop()), zap.NewNop()).BuildPlan(context.Background(), f, "obj", "")
	assert.Equal(t, 0, added)
	assert.True(t, failed)
	assert.Equal(t, 0, f.Len())
}

func TestBuildPlanDetectsBlogSources(t *testing.T) {
	gw := llm.NewGateway(zap.NewNop(), &scriptedClient{response: `{
		"sources": [
			{"url": "https://blog.example.com/post", "priority": 6},
			{"url": "https://example.com/about", "priority": 5}
		]
	}`})

	f := newTestFrontier(t)
	NewPlanner(gw, zap.NewNop()).BuildPlan(context.Background(), f, "obj", "")

	first := f.NextTarget()
	require.NotNil(t, first)
	assert.Equal(t, KindBlog, first.Kind)
	f.CompleteTarget(first.ID)

	second := f.NextTarget()
	require.NotNil(t, second)
	assert.Equal(t, KindWebsite, second.Kind)
}

func TestRescoreParsesPriorities(t *testing.T) {
	gw := llm.NewGateway(zap.NewNop(), &scriptedClient{response: `{"priorities": {"abc123": 2}}`})
	f := newTestFrontier(t)
	f.AddTarget(KindWebsite, "https://example.com", "", 9)

	rescore := NewPlanner(gw, zap.NewNop()).Rescore(context.Background(), "obj", []string{"found alias zed"})
	revised := rescore(f.Pending())
	assert.Equal(t, map[string]int{"abc123": 2}, revised)
}

func TestReviewStrategyReturnsLeads(t *testing.T) {
	gw := llm.NewGateway(zap.NewNop(), &scriptedClient{response: `{
		"new_leads": [
			{"locator": "https://blog.example.com", "kind": "blog", "rationale": "linked from bio"},
			{"locator": "", "kind": "website"}
		]
	}`})

	f := newTestFrontier(t)
	leads := NewPlanner(gw, zap.NewNop()).ReviewStrategy(context.Background(), f, "obj", nil)
	require.Len(t, leads, 1)
	assert.Equal(t, "https://blog.example.com", leads[0].Locator)
	assert.Equal(t, KindBlog, leads[0].Kind)
}
