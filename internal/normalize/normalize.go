// Package normalize canonicalizes free text and URLs for equality comparison.
// Equality of normalized forms is the only criterion for "same logical
// content" used by the frontier and pipeline dedup checks.
package normalize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// Pre-compile regex patterns to avoid recompilation overhead
var (
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Text lower-cases, collapses whitespace runs to a single space, strips
// punctuation from word edges, and trims. It never fails; empty input yields
// empty output. Text is idempotent: Text(Text(s)) == Text(s).
func Text(s string) string {
	s = strings.ToLower(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	words := strings.Split(s, " ")
	out := words[:0]
	for _, w := range words {
		w = strings.TrimFunc(w, isWordPunct)
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// isWordPunct reports whether r is punctuation that should be stripped from
// word boundaries. Interior punctuation (foo-bar, v1.2, a@b) is preserved.
func isWordPunct(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return false
	case r >= '0' && r <= '9':
		return false
	case r > 127:
		// Non-ASCII letters survive; ToLower already folded case. Curly
		// quotes, em-dashes, and other Unicode punctuation still strip.
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}
	return true
}

// URL canonicalizes a URL: lower-cases the host, strips the default port for
// the scheme, drops the query string and fragment, and removes a single
// trailing slash. A URL without a scheme is treated as https. Unparsable
// input is returned trimmed, so URL stays total and idempotent.
func URL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// Domain extracts the lower-cased host from a URL, or "" if it has none.
func Domain(raw string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return ""
	}
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
