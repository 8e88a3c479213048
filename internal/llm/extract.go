package llm

import (
	"strings"
)

// extractFenced returns the content of the first fenced code block, or "".
// Markdown-wrapped replies usually carry the payload in a ```json fence.
func extractFenced(response string) string {
	start := strings.Index(response, "```")
	if start == -1 {
		return ""
	}
	rest := response[start+3:]
	// Skip an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "json" || firstLine == "" {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		// Truncated before the closing fence; hand back what we have.
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// extractBalanced finds the first balanced JSON object in the response.
func extractBalanced(response string) string {
	start := strings.IndexByte(response, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}

	return ""
}

// structuredCandidate returns the fragment most likely to hold the payload:
// a fenced block if present, otherwise everything from the first opening
// delimiter onward.
func structuredCandidate(response string) string {
	if fenced := extractFenced(response); fenced != "" {
		return fenced
	}
	obj := strings.IndexByte(response, '{')
	arr := strings.IndexByte(response, '[')
	start := obj
	if start == -1 || (arr != -1 && arr < start) {
		start = arr
	}
	if start == -1 {
		return ""
	}
	return strings.TrimSpace(response[start:])
}

// repairTruncated closes a structurally truncated JSON fragment. It tracks
// the open-delimiter stack outside string literals, strips a trailing
// separator, and appends the missing closers innermost-first. A string cut
// off mid-token gets its quote closed; the value itself stays truncated.
func repairTruncated(fragment string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	repaired := strings.TrimRight(fragment, " \t\r\n")
	if inString {
		repaired += `"`
	}
	repaired = strings.TrimRight(repaired, " \t\r\n")
	repaired = strings.TrimSuffix(repaired, ",")

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			repaired += "}"
		} else {
			repaired += "]"
		}
	}
	return repaired
}
