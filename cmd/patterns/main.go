package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/steveyegge/patterns/internal/ai"
	"github.com/steveyegge/patterns/internal/config"
	"github.com/steveyegge/patterns/internal/cost"
	"github.com/steveyegge/patterns/internal/storage"
)

var (
	store      storage.Storage
	appCfg     *config.Config
	dbPath     string
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Agentic workflow patterns for travel planning",
	Long: `patterns drives LLM workflow patterns for travel planning:

  evaluate  refine a travel plan with an evaluator-optimizer loop
  route     send travel questions to specialist handlers
  chat      talk to a travel assistant that remembers the conversation

Run history, progress events and the cost budget live under .patterns/.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}
		appCfg = cfg

		ctx := context.Background()
		store, err = storage.NewStorage(ctx, &storage.Config{Path: cfg.Database.Path})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
			os.Exit(1)
		}

		if cfg.Database.Retention.CleanupEnabled {
			deleted, err := store.CleanupEventsByAge(ctx, cfg.Database.Retention.Days)
			if err != nil {
				slog.Warn("event retention cleanup failed", "error", err)
			} else if deleted > 0 {
				slog.Debug("pruned old events", "deleted", deleted, "retention_days", cfg.Database.Retention.Days)
			}
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default from config: .patterns/patterns.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .patterns/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging routes library diagnostics to stderr; warnings only unless verbose
func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newCostTracker returns nil when budgeting is disabled
func newCostTracker() (*cost.Tracker, error) {
	if !appCfg.Cost.Enabled {
		return nil, nil
	}
	return cost.NewTracker(&appCfg.Cost, store)
}

// newAIClient builds the shared client, wiring the budget tracker when enabled
func newAIClient() (*ai.Client, error) {
	tracker, err := newCostTracker()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cost tracker: %w", err)
	}

	cfg := &ai.Config{
		Model: appCfg.Model,
		Retry: appCfg.AI,
	}
	if tracker != nil {
		cfg.CostTracker = tracker
	}
	return ai.NewClient(cfg)
}

// mustAIClient exits with a message when the client cannot be built
func mustAIClient() *ai.Client {
	client, err := newAIClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			fmt.Fprintln(os.Stderr, "Set ANTHROPIC_API_KEY to use AI features")
		}
		os.Exit(1)
	}
	return client
}
