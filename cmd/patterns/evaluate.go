package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/patterns/internal/ai"
	"github.com/steveyegge/patterns/internal/executor"
	"github.com/steveyegge/patterns/internal/refine"
)

// defaultTravelRequest is used when no request is given
const defaultTravelRequest = `I'm planning a 4-day cultural trip to Kyoto, Japan next spring during cherry blossom season.
I'm interested in traditional temples, Japanese gardens, authentic cuisine, and cultural experiences
like tea ceremonies. I prefer a mix of famous sites and off-the-beaten-path locations.
I'd like to stay at a traditional ryokan for at least part of my stay, and I'm looking for
a balance of scheduled activities and time to wander. My budget is mid-range.`

const planPreviewLength = 500

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [request]",
	Short: "Refine a travel plan with the evaluator-optimizer loop",
	Long: `Generate a travel plan, have it reviewed, and regenerate it with the review's
feedback until it meets all criteria, reaches the score threshold, or the
iteration budget runs out.

The request comes from the arguments, from --file, or defaults to a 4-day
cherry blossom trip to Kyoto. Every run is stored; see 'patterns runs'.`,
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		full, _ := cmd.Flags().GetBool("full")

		request, err := resolveRequest(args, file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		refineCfg := appCfg.Refine
		if cmd.Flags().Changed("max-iterations") {
			refineCfg.MaxIterations, _ = cmd.Flags().GetInt("max-iterations")
		}
		if cmd.Flags().Changed("threshold") {
			refineCfg.ScoreThreshold, _ = cmd.Flags().GetInt("threshold")
		}
		if err := refineCfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		client := mustAIClient()
		exec, err := executor.New(&executor.Config{
			Store:     store,
			Optimizer: ai.NewTravelPlanner(client),
			Refine:    refineCfg,
			Model:     client.Model(),
			Output:    os.Stdout,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n", cyan("=== Evaluator-Optimizer Travel Planner ==="))
		fmt.Printf("\nTravel request:\n%s\n", request)
		fmt.Printf("\nStarting refinement (max %d iterations, threshold %d/10)...\n",
			refineCfg.MaxIterations, refineCfg.ScoreThreshold)

		res, err := exec.Execute(ctx, request)
		if err != nil {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(os.Stderr, "\n%s %v\n", red("✗"), err)
			if res != nil && res.Run != nil {
				fmt.Fprintf(os.Stderr, "Run %s recorded as failed\n", res.Run.ID)
			}
			os.Exit(1)
		}

		printFinalPlan(res.Result, full)
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n", gray(fmt.Sprintf("Run %s saved (patterns show %s)", res.Run.ID, res.Run.ID)))
	},
}

func init() {
	evaluateCmd.Flags().Int("max-iterations", refine.DefaultMaxIterations, "Maximum generate/evaluate iterations")
	evaluateCmd.Flags().Int("threshold", refine.DefaultScoreThreshold, "Score (1-10) at which a plan is accepted")
	evaluateCmd.Flags().StringP("file", "f", "", "Read the travel request from a file")
	evaluateCmd.Flags().Bool("full", false, "Print the whole final plan instead of a preview")
	rootCmd.AddCommand(evaluateCmd)
}

// resolveRequest picks the request from args, then file, then the default
func resolveRequest(args []string, file string) (string, error) {
	if len(args) > 0 && file != "" {
		return "", fmt.Errorf("give the request as arguments or --file, not both")
	}
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read request file: %w", err)
		}
		request := strings.TrimSpace(string(data))
		if request == "" {
			return "", fmt.Errorf("request file %s is empty", file)
		}
		return request, nil
	}
	return defaultTravelRequest, nil
}

func printFinalPlan(result *refine.Result, full bool) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", bold(fmt.Sprintf("Final travel plan after %d iteration(s) (final score: %d/10):",
		result.IterationsUsed, result.FinalEvaluation.Score)))
	if full {
		fmt.Println(result.FinalArtifact)
		return
	}
	fmt.Println(previewText(result.FinalArtifact, planPreviewLength, "\n...(truncated)"))
}

// previewText cuts s to at most n runes and appends marker when it was cut
func previewText(s string, n int, marker string) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + marker
}
