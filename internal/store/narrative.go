package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// NarrativeRecord is the standalone JSON file written for every
// narrative-worthy discovery.
type NarrativeRecord struct {
	Objective    string  `json:"objective"`
	ArtifactType string  `json:"artifact_type"`
	Entity       string  `json:"entity"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	SourceURL    string  `json:"source_url"`
	Timestamp    string  `json:"timestamp"`
}

// NarrativeWriter drops one JSON file per narrative-worthy discovery
// into a directory.
type NarrativeWriter struct {
	dir string
	now func() time.Time
}

// NewNarrativeWriter creates the directory if needed.
func NewNarrativeWriter(dir string) (*NarrativeWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create narrative directory: %w", err)
	}
	return &NarrativeWriter{dir: dir, now: time.Now}, nil
}

// Write persists one record, named by the discovery id.
func (w *NarrativeWriter) Write(discoveryID, objective, entity string, d Discovery) error {
	record := NarrativeRecord{
		Objective:    objective,
		ArtifactType: d.Type,
		Entity:       entity,
		Content:      d.RawContent,
		Score:        d.Score,
		SourceURL:    d.SourceURL,
		Timestamp:    w.now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal narrative record: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("narrative_%s.json", discoveryID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write narrative record: %w", err)
	}
	return nil
}
