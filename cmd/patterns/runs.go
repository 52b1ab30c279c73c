package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/patterns/internal/executor"
	"github.com/steveyegge/patterns/internal/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List refinement runs",
	Long:  `List stored refinement runs, newest first.`,
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := types.RunFilter{Status: types.RunStatus(status), Limit: limit}
		if status != "" && !filter.Status.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: invalid status %q (running, completed, failed)\n", status)
			os.Exit(1)
		}

		runs, err := store.ListRuns(context.Background(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(runs) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No runs found\n\n", yellow("✨"))
			return
		}

		fmt.Println()
		for _, run := range runs {
			printRunLine(run)
		}
		fmt.Println()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its evaluation trail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		full, _ := cmd.Flags().GetBool("full")
		ctx := context.Background()

		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if run == nil {
			fmt.Fprintf(os.Stderr, "Error: run %s not found\n", args[0])
			os.Exit(1)
		}

		trail, err := store.GetIterations(ctx, run.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		printRunDetail(run, trail, full)
	},
}

func init() {
	runsCmd.Flags().StringP("status", "s", "", "Filter by status (running, completed, failed)")
	runsCmd.Flags().IntP("limit", "n", 20, "Maximum runs to list")
	showCmd.Flags().Bool("full", false, "Print whole plans instead of previews")
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
}

func statusLabel(run *types.Run) string {
	switch run.Status {
	case types.RunStatusCompleted:
		if run.Outcome == "budget_exhausted" {
			return color.YellowString("exhausted")
		}
		return color.GreenString("accepted")
	case types.RunStatusFailed:
		return color.RedString("failed")
	default:
		return color.CyanString("running")
	}
}

func printRunLine(run *types.Run) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	score := gray("-")
	if run.Status == types.RunStatusCompleted {
		score = executor.ScoreColor(run.FinalScore, run.ScoreThreshold)
	}
	request := strings.Join(strings.Fields(run.Request), " ")
	fmt.Printf("%s  %-9s %s  %d/%d  %s  %s\n",
		color.GreenString(shortID(run.ID)),
		statusLabel(run),
		score,
		run.IterationsUsed, run.MaxIterations,
		gray(run.CreatedAt.Format("2006-01-02 15:04")),
		truncateString(request, 50))
}

func printRunDetail(run *types.Run, trail []*types.IterationRecord, full bool) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s %s\n\n", cyan("Run"), run.ID)
	fmt.Printf("  Status:     %s\n", statusLabel(run))
	if run.Outcome != "" {
		fmt.Printf("  Outcome:    %s\n", run.Outcome)
	}
	fmt.Printf("  Iterations: %d/%d (threshold %d/10)\n", run.IterationsUsed, run.MaxIterations, run.ScoreThreshold)
	if run.Model != "" {
		fmt.Printf("  Model:      %s\n", run.Model)
	}
	fmt.Printf("  Created:    %s\n", run.CreatedAt.Format(time.RFC3339))
	if d := run.Duration(); d > 0 {
		fmt.Printf("  Duration:   %s\n", d.Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Printf("  Error:      %s\n", color.RedString(run.Error))
	}

	fmt.Printf("\n%s\n%s\n", yellow("Request:"), strings.TrimSpace(run.Request))

	for _, rec := range trail {
		fmt.Printf("\n%s  score %s  meets criteria: %t\n",
			cyan(fmt.Sprintf("--- Iteration %d ---", rec.Iteration)),
			executor.ScoreColor(rec.Score, run.ScoreThreshold),
			rec.MeetsCriteria)
		if len(rec.FeedbackIn) > 0 {
			fmt.Printf("%s\n", gray(fmt.Sprintf("Generated with %d feedback item(s)", len(rec.FeedbackIn))))
		}
		artifact := rec.Artifact
		if !full {
			artifact = previewText(artifact, planPreviewLength, "\n...(truncated)")
		}
		fmt.Println(artifact)
		if len(rec.Feedback) > 0 {
			fmt.Println(yellow("Feedback:"))
			for _, item := range rec.Feedback {
				fmt.Printf("  - %s\n", item)
			}
		}
	}
	fmt.Println()
}

// shortID returns the first block of a UUID
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
