package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/patterns/internal/ai"
	"github.com/steveyegge/patterns/internal/routing"
)

var sampleQueries = []string{
	"What are the must-see attractions in Paris for a 3-day trip?",
	"Can you recommend budget-friendly hotels in central Paris?",
	"What's the best way to get around Paris using public transportation?",
}

const responsePreviewLength = 200

var routeCmd = &cobra.Command{
	Use:   "route [query]",
	Short: "Route travel questions to specialist handlers",
	Long: `Classify each query as attractions, accommodations or transportation and
answer it with the matching specialist. Without a query, three sample
questions about Paris are routed.`,
	Run: func(cmd *cobra.Command, args []string) {
		full, _ := cmd.Flags().GetBool("full")

		queries := sampleQueries
		if len(args) > 0 {
			queries = []string{strings.Join(args, " ")}
		}

		client := mustAIClient()
		router, err := routing.NewRouter(ai.NewQueryRouter(client), ai.NewSpecialists(client))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		router.SetEventRecorder(store)

		ctx := ai.WithScope(context.Background(), "route")
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		magenta := color.New(color.FgMagenta).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		failed := false
		for i, query := range queries {
			fmt.Printf("\n%s %s\n", cyan(fmt.Sprintf("Query %d:", i+1)), query)

			result, err := router.Route(ctx, query)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
				failed = true
				continue
			}

			if result.Fallback {
				fmt.Printf("Routed to: %s\n", yellow("none (fallback)"))
			} else {
				fmt.Printf("Routed to: %s\n", magenta(result.Decision.QueryType))
			}
			if result.Decision.Explanation != "" {
				fmt.Printf("%s\n", gray(result.Decision.Explanation))
			}

			response := result.Response
			if !full {
				response = previewText(response, responsePreviewLength, "\n...")
			}
			fmt.Printf("Response: %s\n", response)
		}
		fmt.Println()

		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	routeCmd.Flags().Bool("full", false, "Print whole responses instead of previews")
	rootCmd.AddCommand(routeCmd)
}
