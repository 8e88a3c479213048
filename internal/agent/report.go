package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// topDomainLimit bounds the domains section of the summary.
const topDomainLimit = 5

// RenderSummary formats the session summary as plain text.
func RenderSummary(result *SessionResult, nextObjectives []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Session %s\n", result.SessionID)
	fmt.Fprintf(&sb, "Objective: %s\n", result.Objective)
	if result.Entity != "" {
		fmt.Fprintf(&sb, "Entity: %s\n", result.Entity)
	}
	fmt.Fprintf(&sb, "Duration: %s\n", result.Finished.Sub(result.Started).Round(time.Second))
	if result.AllLLMFailed {
		sb.WriteString("Note: no LLM provider was reachable; ran on fallback targets.\n")
	}
	sb.WriteString("\n")

	stats := table.NewWriter()
	stats.AppendHeader(table.Row{"Metric", "Count"})
	stats.AppendRows([]table.Row{
		{"URLs processed", result.URLsProcessed},
		{"Artifacts found", result.ArtifactsFound},
		{"New discoveries", result.Discoveries},
		{"High-scoring", result.HighScoring},
		{"Narrative-worthy", result.NarrativeWorthy},
	})
	sb.WriteString(stats.Render())
	sb.WriteString("\n\n")

	if len(result.Domains) > 0 {
		sb.WriteString("Top source domains:\n")
		for _, dc := range topDomains(result.Domains, topDomainLimit) {
			fmt.Fprintf(&sb, "  %s (%d pages)\n", dc.domain, dc.count)
		}
		sb.WriteString("\n")
	}

	if len(result.Top) > 0 {
		highlights := table.NewWriter()
		highlights.AppendHeader(table.Row{"Type", "Content", "Score", "Source"})
		for _, d := range result.Top {
			highlights.AppendRow(table.Row{d.Type, truncate(d.RawContent, 40), fmt.Sprintf("%.2f", d.Score), truncate(d.SourceURL, 50)})
		}
		sb.WriteString("Top discoveries:\n")
		sb.WriteString(highlights.Render())
		sb.WriteString("\n\n")
	}

	if len(nextObjectives) > 0 {
		sb.WriteString("Next queued objectives:\n")
		for _, o := range nextObjectives {
			fmt.Fprintf(&sb, "  - %s\n", o)
		}
	}

	return sb.String()
}

// WriteSummary renders the summary and writes it under the sessions
// directory, returning the file path.
func WriteSummary(dir string, result *SessionResult, nextObjectives []string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create sessions directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("session_%s.txt", result.SessionID))
	if err := os.WriteFile(path, []byte(RenderSummary(result, nextObjectives)), 0644); err != nil {
		return "", fmt.Errorf("failed to write session summary: %w", err)
	}
	return path, nil
}

type domainCount struct {
	domain string
	count  int
}

func topDomains(domains map[string]int, limit int) []domainCount {
	out := make([]domainCount, 0, len(domains))
	for d, c := range domains {
		out = append(out, domainCount{d, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].domain < out[j].domain
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
