package fetch

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// htmlToText converts an HTML document to plain text and collects the
// absolute URLs of its links. Unparsable input is returned as-is with
// no links.
func htmlToText(htmlContent, baseURL string) (string, []string) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent, nil
	}

	var sb strings.Builder
	var links []string
	seen := make(map[string]bool)

	base, _ := url.Parse(baseURL)

	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if depth > 50 {
			return
		}

		switch n.Type {
		case html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "iframe", "svg", "nav", "footer":
				return
			case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				sb.WriteString("\n\n")
			case "br", "li":
				sb.WriteString("\n")
			case "pre", "code":
				sb.WriteString("\n```\n")
			case "a":
				if abs := resolveLink(base, getAttr(n, "href")); abs != "" && !seen[abs] {
					seen[abs] = true
					links = append(links, abs)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth+1)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "pre", "code":
				sb.WriteString("\n```\n")
			}
		}
	}
	walk(doc, 0)

	return cleanText(sb.String()), links
}

// resolveLink turns an href into an absolute http(s) URL, or "" when it
// is a fragment, a non-web scheme, or unresolvable.
func resolveLink(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func cleanText(s string) string {
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	s = multiSpacePattern.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
