package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/patterns/internal/events"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show progress events",
	Long: `Display recent progress events and optionally follow live updates.

Events include run starts and completions, every generation and evaluation,
routed queries, AI usage and budget alerts.`,
	Run: func(cmd *cobra.Command, args []string) {
		follow, _ := cmd.Flags().GetBool("follow")
		runID, _ := cmd.Flags().GetString("run")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()

		if follow {
			runTailFollow(ctx, runID, limit)
		} else {
			runTailOnce(ctx, runID, limit)
		}
	},
}

func init() {
	tailCmd.Flags().BoolP("follow", "f", false, "Follow mode - watch for live updates (Ctrl+C to stop)")
	tailCmd.Flags().StringP("run", "r", "", "Filter events by run ID")
	tailCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show initially")
	rootCmd.AddCommand(tailCmd)
}

// runTailOnce shows recent events and exits
func runTailOnce(ctx context.Context, runID string, limit int) {
	evts, err := store.GetEvents(ctx, events.EventFilter{RunID: runID, Limit: limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching events: %v\n", err)
		os.Exit(1)
	}

	if len(evts) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		if runID != "" {
			fmt.Printf("\n%s No events found for run %s\n\n", yellow("✨"), runID)
		} else {
			fmt.Printf("\n%s No events found\n\n", yellow("✨"))
		}
		return
	}

	// Newest last
	for i := len(evts) - 1; i >= 0; i-- {
		fmt.Print(formatEvent(evts[i]))
	}
}

// followPageSize bounds one query while catching up in follow mode
const followPageSize = 100

// runTailFollow shows recent events and continues polling for new ones
func runTailFollow(ctx context.Context, runID string, initialLimit int) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("\n%s Following live updates (Ctrl+C to stop)...\n\n", cyan("👁️"))

	evts, err := store.GetEvents(ctx, events.EventFilter{RunID: runID, Limit: initialLimit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching events: %v\n", err)
		os.Exit(1)
	}
	var lastSeq int64
	for i := len(evts) - 1; i >= 0; i-- {
		fmt.Print(formatEvent(evts[i]))
		if evts[i].Seq > lastSeq {
			lastSeq = evts[i].Seq
		}
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n\nStopped following")
			return
		case <-ticker.C:
			lastSeq, err = drainEvents(ctx, store, runID, lastSeq, os.Stdout)
			if err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "\nError fetching new events: %v\n", err)
			}
		}
	}
}

// drainEvents prints every event stored after lastSeq, oldest first, paging
// until caught up. It returns the sequence number of the last printed event.
func drainEvents(ctx context.Context, es events.EventStore, runID string, lastSeq int64, w io.Writer) (int64, error) {
	for {
		batch, err := es.GetEventsAfter(ctx, lastSeq, runID, followPageSize)
		if err != nil {
			return lastSeq, err
		}
		for _, event := range batch {
			fmt.Fprint(w, formatEvent(event))
			lastSeq = event.Seq
		}
		if len(batch) < followPageSize {
			return lastSeq, nil
		}
	}
}
