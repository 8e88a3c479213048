package pipeline

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Extractor pulls artifacts of one type out of fetched page text.
type Extractor func(content, sourceURL string) []Artifact

// Registry maps artifact types to extractors. Registration is validated
// so a misdeclared extractor fails loudly at startup instead of
// producing malformed artifacts at runtime.
type Registry struct {
	extractors map[string]Extractor
	logger     *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		extractors: make(map[string]Extractor),
		logger:     logger,
	}
}

// Register adds an extractor for the given artifact type.
func (r *Registry) Register(artifactType string, fn Extractor) error {
	if artifactType == "" {
		return fmt.Errorf("extractor registered with empty artifact type")
	}
	if fn == nil {
		return fmt.Errorf("nil extractor for artifact type %s", artifactType)
	}
	if _, exists := r.extractors[artifactType]; exists {
		return fmt.Errorf("duplicate extractor for artifact type %s", artifactType)
	}
	r.extractors[artifactType] = fn
	return nil
}

// Types returns the registered artifact types, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.extractors))
	for t := range r.extractors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Extract runs every registered extractor over the content and returns
// the combined artifacts. Each artifact's type is forced to match the
// extractor it came from, so an extractor cannot smuggle output under
// another type's name.
func (r *Registry) Extract(content, sourceURL string) []Artifact {
	var out []Artifact
	for _, artifactType := range r.Types() {
		for _, a := range r.extractors[artifactType](content, sourceURL) {
			a.Type = artifactType
			if a.SourceURL == "" {
				a.SourceURL = sourceURL
			}
			if err := a.Validate(); err != nil {
				r.logger.Warn("Extractor produced invalid artifact",
					zap.String("extractor", artifactType), zap.Error(err))
				continue
			}
			out = append(out, a)
		}
	}
	return out
}
