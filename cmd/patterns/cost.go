package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/patterns/internal/cost"
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Show AI cost budget and usage statistics",
	Long:  `Display the current AI cost budget status, hourly and all-time usage, and per-scope token use in the current window.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := &appCfg.Cost
		if !cfg.Enabled {
			fmt.Println("Cost budgeting is disabled")
			fmt.Println("Set PATTERNS_COST_ENABLED=true to enable cost tracking")
			return
		}

		tracker, err := cost.NewTracker(cfg, store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize cost tracker: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(renderBudget(tracker.GetStats()))
	},
}

func init() {
	rootCmd.AddCommand(costCmd)
}

func renderBudget(stats cost.BudgetStats) string {
	cfg := stats.Config
	var sb strings.Builder

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(&sb, "\n%s\n\n", cyan("=== AI Cost Budget Status ==="))

	statusColor := color.New(color.FgGreen)
	statusIcon := "✓"
	switch stats.Status {
	case cost.BudgetWarning:
		statusColor = color.New(color.FgYellow)
		statusIcon = "⚠️"
	case cost.BudgetExceeded:
		statusColor = color.New(color.FgRed, color.Bold)
		statusIcon = "🚨"
	}
	fmt.Fprintf(&sb, "%s Budget Status: %s\n\n", statusIcon, statusColor.Sprint(stats.Status.String()))

	fmt.Fprintf(&sb, "%s\n", yellow("Hourly Budget:"))
	if cfg.MaxTokensPerHour > 0 {
		pct := float64(stats.HourlyTokensUsed) / float64(cfg.MaxTokensPerHour) * 100
		fmt.Fprintf(&sb, "  Tokens:  %s / %s (%.1f%%)\n", formatTokens(stats.HourlyTokensUsed), formatTokens(cfg.MaxTokensPerHour), pct)
		fmt.Fprintf(&sb, "           %s\n", renderProgressBar(pct, 40))
	} else {
		fmt.Fprintf(&sb, "  Tokens:  %s (unlimited)\n", formatTokens(stats.HourlyTokensUsed))
	}
	if cfg.MaxCostPerHour > 0 {
		pct := stats.HourlyCostUsed / cfg.MaxCostPerHour * 100
		fmt.Fprintf(&sb, "  Cost:    $%.4f / $%.2f (%.1f%%)\n", stats.HourlyCostUsed, cfg.MaxCostPerHour, pct)
		fmt.Fprintf(&sb, "           %s\n", renderProgressBar(pct, 40))
	} else {
		fmt.Fprintf(&sb, "  Cost:    $%.4f (unlimited)\n", stats.HourlyCostUsed)
	}
	fmt.Fprintf(&sb, "  Resets:  in %s\n\n", stats.ResetsIn.Round(time.Second))

	if len(stats.Scopes) > 0 {
		fmt.Fprintf(&sb, "%s\n", yellow("This Window by Scope:"))
		scopes := make([]string, 0, len(stats.Scopes))
		for scope := range stats.Scopes {
			scopes = append(scopes, scope)
		}
		sort.Strings(scopes)
		for _, scope := range scopes {
			label := scope
			if label == "" {
				label = "(unscoped)"
			} else if label != "chat" && label != "route" {
				label = "run " + shortID(label)
			}
			used := formatTokens(stats.Scopes[scope])
			if cfg.MaxTokensPerScope > 0 {
				used += " / " + formatTokens(cfg.MaxTokensPerScope)
			}
			fmt.Fprintf(&sb, "  %-14s %s\n", label, used)
		}
		fmt.Fprintln(&sb)
	}

	fmt.Fprintf(&sb, "%s\n", yellow("All-Time Usage:"))
	fmt.Fprintf(&sb, "  Tokens:  %s\n", formatTokens(stats.TotalTokensUsed))
	fmt.Fprintf(&sb, "  Cost:    $%.2f\n\n", stats.TotalCostUsed)

	fmt.Fprintf(&sb, "%s\n", yellow("Pricing (per 1M tokens):"))
	fmt.Fprintf(&sb, "  Input:   $%.2f\n", cfg.InputTokenCost)
	fmt.Fprintf(&sb, "  Output:  $%.2f\n\n", cfg.OutputTokenCost)
	return sb.String()
}

// formatTokens formats a token count compactly
func formatTokens(tokens int64) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	} else if tokens < 1_000_000 {
		return fmt.Sprintf("%.1fK", float64(tokens)/1000)
	}
	return fmt.Sprintf("%.2fM", float64(tokens)/1_000_000)
}

// renderProgressBar renders a text-based progress bar
func renderProgressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100.0 * float64(width))

	barColor := color.New(color.FgGreen)
	if percent >= 100 {
		barColor = color.New(color.FgRed, color.Bold)
	} else if percent >= 80 {
		barColor = color.New(color.FgYellow)
	}

	var bar strings.Builder
	bar.WriteString(barColor.Sprint(strings.Repeat("█", filled)))
	bar.WriteString(color.New(color.FgHiBlack).Sprint(strings.Repeat("░", width-filled)))
	return "[" + bar.String() + "]"
}
