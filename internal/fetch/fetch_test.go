package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestFetchExtractsTextAndLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>About</title></head><body>
			<script>ignored()</script>
			<p>Maintained by Jane Doe.</p>
			<a href="/contact">Contact</a>
			<a href="https://other.example.com/page#section">Other</a>
			<a href="mailto:jane@example.com">Mail</a>
		</body></html>`))
	}))
	defer srv.Close()

	f := New(DefaultConfig(), zap.NewNop())
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, page.Content, "Maintained by Jane Doe.")
	assert.NotContains(t, page.Content, "ignored")
	assert.Contains(t, page.Links, srv.URL+"/contact")
	assert.Contains(t, page.Links, "https://other.example.com/page")
	for _, l := range page.Links {
		assert.NotContains(t, l, "mailto:")
	}
}

func TestFetchPlainTextPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("just text <not html>"))
	}))
	defer srv.Close()

	f := New(DefaultConfig(), zap.NewNop())
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "just text <not html>", page.Content)
	assert.Empty(t, page.Links)
}

func TestFetchRetriesOnce(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := New(DefaultConfig(), zap.NewNop())
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", page.Content)
	assert.Equal(t, 2, attempts)
}

func TestFetchGivesUpAfterSecondFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(DefaultConfig(), zap.NewNop())
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestHTMLToTextCodeBlocks(t *testing.T) {
	content, _ := htmlToText(`<html><body><pre>x = 1</pre></body></html>`, "https://example.com")
	assert.Contains(t, content, "```\nx = 1")
}

func TestResolveLink(t *testing.T) {
	base := mustParse(t, "https://example.com/dir/page")

	tests := []struct {
		href string
		want string
	}{
		{"/about", "https://example.com/about"},
		{"sibling", "https://example.com/dir/sibling"},
		{"https://other.example.com/x#frag", "https://other.example.com/x"},
		{"#section", ""},
		{"javascript:void(0)", ""},
		{"ftp://example.com/file", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveLink(base, tt.href), "href %q", tt.href)
	}
}
