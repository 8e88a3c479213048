package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title string
	URL   string
}

// Searcher turns a query into result URLs. The orchestrator only
// depends on this interface; the default implementation scrapes
// DuckDuckGo's HTML endpoint.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// DuckDuckGoSearcher queries html.duckduckgo.com.
type DuckDuckGoSearcher struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewDuckDuckGoSearcher creates the default searcher.
func NewDuckDuckGoSearcher(userAgent string, logger *zap.Logger) *DuckDuckGoSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuckDuckGoSearcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Search runs one query and returns up to maxResults hits.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from search", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	return parseSearchResults(string(body), maxResults)
}

func parseSearchResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	var results []SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			href := getAttr(n, "href")
			title := strings.TrimSpace(textContent(n))
			if u := cleanRedirect(href); u != "" && title != "" {
				results = append(results, SearchResult{Title: title, URL: u})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

// cleanRedirect unwraps DuckDuckGo's /l/?uddg= redirect URLs.
func cleanRedirect(href string) string {
	for _, prefix := range []string{"//duckduckgo.com/l/?uddg=", "https://duckduckgo.com/l/?uddg="} {
		if strings.HasPrefix(href, prefix) {
			rest := strings.TrimPrefix(href, prefix)
			if i := strings.Index(rest, "&"); i >= 0 {
				rest = rest[:i]
			}
			if decoded, err := url.QueryUnescape(rest); err == nil {
				return decoded
			}
		}
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
