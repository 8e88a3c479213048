package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sleuth configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM provider chain
	LLM LLMConfig `yaml:"llm"`

	// Crawl behavior
	Crawl CrawlConfig `yaml:"crawl"`

	// Artifact scoring
	Scoring ScoringConfig `yaml:"scoring"`

	// Investigation loop cadence
	Loop LoopConfig `yaml:"loop"`

	// On-disk state locations
	State StateConfig `yaml:"state"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the provider failover chain. A provider with no
// API key is simply left out of the chain; it is never a startup error.
type LLMConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`

	AnthropicModel string `yaml:"anthropic_model"`
	OpenAIModel    string `yaml:"openai_model"`
	GeminiModel    string `yaml:"gemini_model"`

	Timeout string `yaml:"timeout"`
}

// CrawlConfig configures fetching and the URL frontier.
type CrawlConfig struct {
	UserAgent    string `yaml:"user_agent"`
	Delay        string `yaml:"delay"`
	MaxDepth     int    `yaml:"max_depth"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`

	// Frontier is flushed to disk every this many dequeues.
	FlushInterval int `yaml:"flush_interval"`
}

// ScoringConfig configures the additive relevance boosts applied on top
// of extractor confidence.
type ScoringConfig struct {
	ObjectiveTypeBoost float64 `yaml:"objective_type_boost"`
	TrustedDomainBoost float64 `yaml:"trusted_domain_boost"`
	EntityAliasBoost   float64 `yaml:"entity_alias_boost"`

	// Artifacts scoring above this are recorded as narrative-worthy.
	NarrativeThreshold float64 `yaml:"narrative_threshold"`

	TrustedDomains []string `yaml:"trusted_domains"`
}

// LoopConfig configures the orchestrator cadence.
type LoopConfig struct {
	// Leads are reconciled into targets every this many completed targets.
	ReconcileInterval int `yaml:"reconcile_interval"`

	// Strategy is reviewed every this many completed targets.
	ReviewInterval int `yaml:"review_interval"`
}

// StateConfig locates persistent state.
type StateConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "sleuth",
		Version: "1.0.0",

		LLM: LLMConfig{
			AnthropicModel: "claude-sonnet-4-20250514",
			OpenAIModel:    "gpt-4o",
			GeminiModel:    "gemini-2.0-flash",
			Timeout:        "120s",
		},

		Crawl: CrawlConfig{
			UserAgent:     "sleuth/1.0 (research agent)",
			Delay:         "2s",
			MaxDepth:      3,
			MaxBodyBytes:  2 * 1024 * 1024,
			FlushInterval: 10,
		},

		Scoring: ScoringConfig{
			ObjectiveTypeBoost: 0.2,
			TrustedDomainBoost: 0.1,
			EntityAliasBoost:   0.1,
			NarrativeThreshold: 0.8,
			TrustedDomains: []string{
				"github.com",
				"web.archive.org",
				"stackoverflow.com",
				"news.ycombinator.com",
			},
		},

		Loop: LoopConfig{
			ReconcileInterval: 5,
			ReviewInterval:    10,
		},

		State: StateConfig{
			Dir: "data",
		},

		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist. Environment variables override file
// values in either case.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.AnthropicAPIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.OpenAIAPIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.GeminiAPIKey = key
	}
	if dir := os.Getenv("SLEUTH_STATE_DIR"); dir != "" {
		c.State.Dir = dir
	}
}

// HasAnyProvider reports whether at least one LLM provider is configured.
func (c *Config) HasAnyProvider() bool {
	return c.LLM.AnthropicAPIKey != "" || c.LLM.OpenAIAPIKey != "" || c.LLM.GeminiAPIKey != ""
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetCrawlDelay returns the politeness delay as a duration.
func (c *Config) GetCrawlDelay() time.Duration {
	d, err := time.ParseDuration(c.Crawl.Delay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scoring.NarrativeThreshold < 0 || c.Scoring.NarrativeThreshold > 1 {
		return fmt.Errorf("narrative_threshold must be in [0, 1], got %v", c.Scoring.NarrativeThreshold)
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative, got %d", c.Crawl.MaxDepth)
	}
	if c.Crawl.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive, got %d", c.Crawl.FlushInterval)
	}
	if c.Loop.ReconcileInterval <= 0 || c.Loop.ReviewInterval <= 0 {
		return fmt.Errorf("loop intervals must be positive")
	}
	return nil
}
