// Package fetch retrieves pages for the investigation loop: plain HTTP
// with a body cap, HTML-to-text conversion, link extraction, and the
// clients for web search and the Wayback Machine.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Page is one fetched document.
type Page struct {
	URL     string
	Content string   // plain text
	Links   []string // absolute URLs found in the document
}

// Config controls fetcher behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// DefaultConfig returns sensible fetcher defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:    "sleuth/1.0 (research agent)",
		Timeout:      60 * time.Second,
		MaxBodyBytes: 2 << 20,
	}
}

// Fetcher downloads pages one at a time.
type Fetcher struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// New creates a fetcher.
func New(config Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig().UserAgent
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return &Fetcher{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// Fetch downloads one URL and returns its text content plus extracted
// links. A transport error is retried once before giving up.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	body, contentType, err := f.get(ctx, rawURL)
	if err != nil {
		f.logger.Debug("Fetch failed, retrying once",
			zap.String("url", rawURL), zap.Error(err))
		body, contentType, err = f.get(ctx, rawURL)
		if err != nil {
			return nil, err
		}
	}

	if strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "text/markdown") {
		return &Page{URL: rawURL, Content: body}, nil
	}

	content, links := htmlToText(body, rawURL)
	return &Page{URL: rawURL, Content: content, Links: links}, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		return "", "", fmt.Errorf("failed to read response: %w", err)
	}

	return string(data), resp.Header.Get("Content-Type"), nil
}
