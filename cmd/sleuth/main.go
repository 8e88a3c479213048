package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sleuth/internal/agent"
	"sleuth/internal/config"
	"sleuth/internal/llm"
	"sleuth/internal/store"
)

var (
	// Global flags
	objective     string
	entity        string
	timeBudget    int
	auto          bool
	maxObjectives int
	verbose       bool
	stateDir      string
	configPath    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sleuth",
	Short: "sleuth - autonomous research agent",
	Long: `sleuth investigates an objective autonomously: it plans targets with
an LLM, crawls them depth-first, extracts typed artifacts (names,
usernames, wallet addresses, code), and records scored discoveries
that survive crashes and restarts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Encoding = "console"
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInvestigation,
}

func init() {
	rootCmd.Flags().StringVar(&objective, "objective", "", "investigation objective (required)")
	rootCmd.Flags().StringVar(&entity, "entity", "", "primary entity under investigation")
	rootCmd.Flags().IntVar(&timeBudget, "time", 30, "wall-clock budget in minutes")
	rootCmd.Flags().BoolVar(&auto, "auto", false, "rotate through follow-up objectives automatically")
	rootCmd.Flags().IntVar(&maxObjectives, "max-objectives", 4, "objective cap in auto mode")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory for queue, discoveries, and reports")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "sleuth.yaml", "path to config file")
	_ = rootCmd.MarkFlagRequired("objective")
}

func runInvestigation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if stateDir != "" {
		cfg.State.Dir = stateDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	gateway := buildGateway(cfg)
	if !gateway.Available() {
		logger.Warn("No LLM provider configured; planning will fall back to seeded targets")
	}

	st, err := store.New(filepath.Join(cfg.State.Dir, "discoveries.db"), logger)
	if err != nil {
		return fmt.Errorf("failed to open discovery store: %w", err)
	}
	defer st.Close()

	narratives, err := store.NewNarrativeWriter(filepath.Join(cfg.State.Dir, "narratives"))
	if err != nil {
		return fmt.Errorf("failed to prepare narrative directory: %w", err)
	}

	a := agent.New(cfg, gateway, st, narratives, logger, agent.Options{})

	// SIGINT finishes the current iteration, flushes state, and still
	// writes the session summary.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	budget := time.Duration(timeBudget) * time.Minute
	sessionsDir := filepath.Join(cfg.State.Dir, "sessions")

	if auto {
		return a.RunAuto(ctx, objective, entity, maxObjectives, budget, sessionsDir)
	}

	result, err := a.Run(ctx, objective, entity, budget)
	if err != nil {
		return err
	}

	var next []string
	if entity != "" {
		next = agent.NextObjectives(objective, entity, 3)
	}
	path, err := agent.WriteSummary(sessionsDir, result, next)
	if err != nil {
		logger.Warn("Failed to write session summary", zap.Error(err))
	} else {
		logger.Info("Session summary written", zap.String("path", path))
	}

	fmt.Println(agent.RenderSummary(result, next))
	return nil
}

func buildGateway(cfg *config.Config) *llm.Gateway {
	var chain []llm.Client

	if cfg.LLM.AnthropicAPIKey != "" {
		c := llm.DefaultAnthropicConfig(cfg.LLM.AnthropicAPIKey)
		if cfg.LLM.AnthropicModel != "" {
			c.Model = cfg.LLM.AnthropicModel
		}
		c.Timeout = cfg.GetLLMTimeout()
		chain = append(chain, llm.NewAnthropicClientWithConfig(c))
	}
	if cfg.LLM.OpenAIAPIKey != "" {
		c := llm.DefaultOpenAIConfig(cfg.LLM.OpenAIAPIKey)
		if cfg.LLM.OpenAIModel != "" {
			c.Model = cfg.LLM.OpenAIModel
		}
		c.Timeout = cfg.GetLLMTimeout()
		chain = append(chain, llm.NewOpenAIClientWithConfig(c))
	}
	if cfg.LLM.GeminiAPIKey != "" {
		c := llm.DefaultGeminiConfig(cfg.LLM.GeminiAPIKey)
		if cfg.LLM.GeminiModel != "" {
			c.Model = cfg.LLM.GeminiModel
		}
		c.Timeout = cfg.GetLLMTimeout()
		chain = append(chain, llm.NewGeminiClientWithConfig(c))
	}

	return llm.NewGateway(logger, chain...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
