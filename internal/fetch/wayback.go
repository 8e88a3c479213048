package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Snapshot is one archived capture of a URL.
type Snapshot struct {
	Timestamp string // 14-digit archive timestamp
	Original  string
}

// ArchiveURL returns the replay URL for the snapshot.
func (s Snapshot) ArchiveURL() string {
	return fmt.Sprintf("https://web.archive.org/web/%s/%s", s.Timestamp, s.Original)
}

// Year returns the capture year, or 0 if the timestamp is malformed.
func (s Snapshot) Year() int {
	if len(s.Timestamp) < 4 {
		return 0
	}
	t, err := time.Parse("2006", s.Timestamp[:4])
	if err != nil {
		return 0
	}
	return t.Year()
}

// WaybackClient lists archived snapshots of a URL via the CDX API.
type WaybackClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewWaybackClient creates a client against web.archive.org.
func NewWaybackClient(logger *zap.Logger) *WaybackClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaybackClient{
		baseURL: "https://web.archive.org/cdx/search/cdx",
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// Snapshots lists captures of target between fromYear and toYear
// inclusive. Zero years leave the window open on that side.
func (w *WaybackClient) Snapshots(ctx context.Context, target string, fromYear, toYear int) ([]Snapshot, error) {
	params := url.Values{}
	params.Set("url", target)
	params.Set("output", "json")
	params.Set("fl", "timestamp,original")
	params.Set("collapse", "timestamp:8") // one capture per day
	if fromYear > 0 {
		params.Set("from", fmt.Sprintf("%d", fromYear))
	}
	if toYear > 0 {
		params.Set("to", fmt.Sprintf("%d", toYear))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from archive CDX", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive response: %w", err)
	}

	// CDX JSON output is an array of rows; the first row is headers.
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse archive response: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	snapshots := make([]Snapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		snapshots = append(snapshots, Snapshot{Timestamp: row[0], Original: row[1]})
	}
	return snapshots, nil
}

// SampleSnapshots reduces a capture list to at most five representative
// points: the earliest, the latest, and three spread through the middle.
func SampleSnapshots(snapshots []Snapshot) []Snapshot {
	if len(snapshots) <= 5 {
		return snapshots
	}

	n := len(snapshots)
	picks := []int{0, n / 4, n / 2, 3 * n / 4, n - 1}
	out := make([]Snapshot, 0, len(picks))
	seen := make(map[int]bool)
	for _, i := range picks {
		if !seen[i] {
			seen[i] = true
			out = append(out, snapshots[i])
		}
	}
	return out
}
