package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/patterns/internal/executor"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cleanup and maintenance commands",
	Long:  `Commands for cleaning up abandoned runs and old progress events.`,
}

var cleanupRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Mark abandoned runs as failed",
	Long: `Find runs still marked "running" long after they started and record them
as failed. This happens when the process is killed mid-loop.

Examples:
  patterns cleanup runs                 # Runs started more than 1 hour ago
  patterns cleanup runs --older-than 10m
  patterns cleanup runs --dry-run       # Preview what would be marked`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		olderThan, _ := cmd.Flags().GetDuration("older-than")

		if dryRun {
			fmt.Printf("%s\n", color.YellowString("DRY RUN MODE - No runs will be modified"))
		}

		stale, err := executor.MarkStaleRuns(context.Background(), store, olderThan, dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		for _, run := range stale {
			fmt.Printf("  %s  started %s  %s\n",
				color.GreenString(shortID(run.ID)),
				run.CreatedAt.Format("2006-01-02 15:04"),
				truncateString(run.Request, 50))
		}

		green := color.New(color.FgGreen).SprintFunc()
		if dryRun {
			fmt.Printf("\nWould mark %d run(s) as failed\n", len(stale))
		} else {
			fmt.Printf("\n%s Marked %d run(s) as failed\n", green("✓"), len(stale))
		}
	},
}

var cleanupEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Delete old progress events",
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("retention-days")
		if !cmd.Flags().Changed("retention-days") {
			days = appCfg.Database.Retention.Days
		}

		deleted, err := store.CleanupEventsByAge(context.Background(), days)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted %d event(s) older than %d day(s)\n", green("✓"), deleted, days)
	},
}

func init() {
	cleanupRunsCmd.Flags().Duration("older-than", time.Hour, "Age after which a running run is considered abandoned")
	cleanupRunsCmd.Flags().Bool("dry-run", false, "Show what would be marked without changing anything")
	cleanupEventsCmd.Flags().Int("retention-days", 30, "Delete events older than this many days (default from config)")

	cleanupCmd.AddCommand(cleanupRunsCmd)
	cleanupCmd.AddCommand(cleanupEventsCmd)
	rootCmd.AddCommand(cleanupCmd)
}
