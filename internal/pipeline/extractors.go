package pipeline

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Reference extractors for the common artifact types. They are regex
// heuristics: confidence stays modest and the pipeline's scoring does
// the rest.

var (
	namePattern     = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+){1,2}\b`)
	usernamePattern = regexp.MustCompile(`(?:@|(?:user(?:name)?|handle|author)[:=]\s*)([A-Za-z0-9_][A-Za-z0-9_.-]{2,30})`)
	btcPattern      = regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b`)
	ethPattern      = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
	codePattern     = regexp.MustCompile("(?s)```(?:[a-z]+\n)?(.*?)```")
)

// nameStopwords are capitalized phrases that match the name pattern but
// are almost never personal names.
var nameStopwords = map[string]bool{
	"privacy policy":   true,
	"terms of service": true,
	"all rights":       true,
	"sign in":          true,
	"log in":           true,
	"read more":        true,
	"new york":         true,
	"united states":    true,
	"stack overflow":   true,
}

// ExtractNames finds candidate personal names.
func ExtractNames(content, sourceURL string) []Artifact {
	var out []Artifact
	for _, match := range namePattern.FindAllString(content, -1) {
		if len(match) < 2 || len(match) > 30 {
			continue
		}
		if strings.IndexFunc(match, unicode.IsControl) >= 0 {
			continue
		}
		if nameStopwords[strings.ToLower(match)] {
			continue
		}
		out = append(out, Artifact{
			Type:       "name",
			Value:      match,
			SourceURL:  sourceURL,
			Confidence: 0.4,
			Context:    surrounding(content, match),
		})
	}
	return out
}

// ExtractUsernames finds handles and declared usernames.
func ExtractUsernames(content, sourceURL string) []Artifact {
	var out []Artifact
	for _, match := range usernamePattern.FindAllStringSubmatch(content, -1) {
		handle := strings.TrimRight(match[1], ".-")
		if len(handle) < 3 {
			continue
		}
		out = append(out, Artifact{
			Type:       "username",
			Value:      handle,
			SourceURL:  sourceURL,
			Confidence: 0.6,
			Context:    surrounding(content, match[0]),
		})
	}
	return out
}

// ExtractWalletAddresses finds Bitcoin and Ethereum addresses.
func ExtractWalletAddresses(content, sourceURL string) []Artifact {
	var out []Artifact
	for _, match := range btcPattern.FindAllString(content, -1) {
		out = append(out, Artifact{
			Type:       "wallet_address",
			Subtype:    "bitcoin",
			Value:      match,
			SourceURL:  sourceURL,
			Confidence: 0.7,
			Context:    surrounding(content, match),
		})
	}
	for _, match := range ethPattern.FindAllString(content, -1) {
		out = append(out, Artifact{
			Type:       "wallet_address",
			Subtype:    "ethereum",
			Value:      match,
			SourceURL:  sourceURL,
			Confidence: 0.7,
			Context:    surrounding(content, match),
		})
	}
	return out
}

// ExtractCode finds fenced code blocks.
func ExtractCode(content, sourceURL string) []Artifact {
	var out []Artifact
	for _, match := range codePattern.FindAllStringSubmatch(content, -1) {
		block := strings.TrimSpace(match[1])
		if block == "" {
			continue
		}
		out = append(out, Artifact{
			Type:       "code",
			Value:      block,
			SourceURL:  sourceURL,
			Confidence: 0.5,
		})
	}
	return out
}

// DefaultRegistry returns a registry with all reference extractors.
func DefaultRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := NewRegistry(logger)
	for artifactType, fn := range map[string]Extractor{
		"name":           ExtractNames,
		"username":       ExtractUsernames,
		"wallet_address": ExtractWalletAddresses,
		"code":           ExtractCode,
	} {
		if err := r.Register(artifactType, fn); err != nil {
			logger.Error("Failed to register extractor", zap.Error(err))
		}
	}
	return r
}

// surrounding returns a short window of text around the first
// occurrence of match, for scoring context.
func surrounding(content, match string) string {
	idx := strings.Index(content, match)
	if idx < 0 {
		return ""
	}
	start := idx - 60
	if start < 0 {
		start = 0
	}
	end := idx + len(match) + 60
	if end > len(content) {
		end = len(content)
	}
	return strings.TrimSpace(content[start:end])
}
