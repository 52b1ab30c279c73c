package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/steveyegge/patterns/internal/ai"
	"github.com/steveyegge/patterns/internal/config"
	"github.com/steveyegge/patterns/internal/executor"
	"github.com/steveyegge/patterns/internal/refine"
	"github.com/steveyegge/patterns/internal/repl"
	"github.com/steveyegge/patterns/internal/routing"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a travel assistant that remembers the conversation",
	Long: `Start an interactive session with TravelBuddy. The assistant remembers
everything said in the session. Slash commands reach the other patterns:

  /plan <request>   refine a travel plan (stored like 'patterns evaluate')
  /route <query>    ask the right specialist
  /stats            refinement statistics for the session's /plan runs

The assistant can call flight, weather and activity lookups on its own.
Ctrl-C while a reply or plan is in progress cancels just that request.`,
	Run: func(cmd *cobra.Command, args []string) {
		noHistory, _ := cmd.Flags().GetBool("no-history")

		client := mustAIClient()
		metrics := refine.NewMetricsCollector()

		exec, err := executor.New(&executor.Config{
			Store:     store,
			Optimizer: ai.NewTravelPlanner(client),
			Refine:    appCfg.Refine,
			Model:     client.Model(),
			Metrics:   metrics,
			Output:    os.Stdout,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		router, err := routing.NewRouter(ai.NewQueryRouter(client), ai.NewSpecialists(client))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		router.SetEventRecorder(store)

		historyFile := filepath.Join(config.DefaultBaseDir, "chat_history")
		if noHistory {
			historyFile = ""
		} else if err := os.MkdirAll(config.DefaultBaseDir, 0755); err != nil {
			historyFile = ""
		}

		shell, err := repl.New(&repl.Config{
			Chat:        ai.NewConversation(client),
			Planner:     exec,
			Router:      router,
			Stats:       metrics,
			HistoryFile: historyFile,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Ctrl-C is handled per input line by the shell
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
		defer stop()

		if err := shell.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	chatCmd.Flags().Bool("no-history", false, "Do not persist line history")
	rootCmd.AddCommand(chatCmd)
}
