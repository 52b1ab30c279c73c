package repl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/steveyegge/patterns/internal/ai"
	"github.com/steveyegge/patterns/internal/executor"
	"github.com/steveyegge/patterns/internal/refine"
)

// cmdHelp shows help information
func (r *REPL) cmdHelp(ctx context.Context, args string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"/help, /?", "Show this help message"},
		{"/clear", "Forget the conversation so far"},
		{"/history", "Show the conversation so far"},
		{"/plan <request>", "Draft and refine a travel plan until it passes review"},
		{"/route <query>", "Send a question to the right travel specialist"},
		{"/stats", "Show refinement statistics for this session"},
		{"/tools", "List the lookups the assistant can use"},
		{"/exit, /quit", "Exit the chat"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %-18s %s\n", green(cmd.name), cmd.desc)
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Anything else is sent to the assistant, for example:")
	fmt.Fprintln(r.out, "  'I want to visit Lisbon in May'")
	fmt.Fprintln(r.out, "  'Show me flights'")
	fmt.Fprintln(r.out, "  'I'm planning a trip to Paris. What should I know?'")
	fmt.Fprintln(r.out)
	return nil
}

// cmdClear resets the conversation memory
func (r *REPL) cmdClear(ctx context.Context, args string) error {
	r.chat.Reset()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "%s Conversation cleared\n", green("✓"))
	return nil
}

// cmdHistory prints the remembered turns
func (r *REPL) cmdHistory(ctx context.Context, args string) error {
	turns := r.chat.History()
	if len(turns) == 0 {
		fmt.Fprintln(r.out, "No conversation yet")
		return nil
	}

	gray := color.New(color.FgHiBlack).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	for _, turn := range turns {
		fmt.Fprintf(r.out, "%s %s: %s\n", gray(turn.Timestamp.Format("15:04:05")), bold(turn.Role), turn.Text)
		if len(turn.Tools) > 0 {
			fmt.Fprintf(r.out, "         %s\n", gray("used "+strings.Join(turn.Tools, ", ")))
		}
	}
	return nil
}

// cmdPlan runs the refinement loop for the request
func (r *REPL) cmdPlan(ctx context.Context, args string) error {
	if r.planner == nil {
		return fmt.Errorf("planning is not available in this session")
	}
	if args == "" {
		return fmt.Errorf("usage: /plan <request>")
	}

	res, err := r.planner.Execute(ctx, args)
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n%s\n", cyan("Final plan:"), res.Result.FinalArtifact)
	fmt.Fprintf(r.out, "\nRun %s, %d iteration(s), score %s\n\n",
		res.Run.ID, res.Result.IterationsUsed, executor.ScoreColor(res.Result.FinalEvaluation.Score, res.Run.ScoreThreshold))
	return nil
}

// cmdRoute answers a question through the router
func (r *REPL) cmdRoute(ctx context.Context, args string) error {
	if r.router == nil {
		return fmt.Errorf("routing is not available in this session")
	}
	if args == "" {
		return fmt.Errorf("usage: /route <query>")
	}

	result, err := r.router.Route(ai.WithScope(ctx, "route"), args)
	if err != nil {
		return fmt.Errorf("routing failed: %w", err)
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	magenta := color.New(color.FgMagenta).SprintFunc()
	label := strings.ToUpper(string(result.Decision.QueryType))
	if result.Fallback {
		label = yellow("UNROUTED")
	} else {
		label = magenta(label)
	}
	fmt.Fprintf(r.out, "\n[%s] %s\n\n", label, result.Response)
	return nil
}

// cmdStats prints the refinement metrics collected by /plan in this session
func (r *REPL) cmdStats(ctx context.Context, args string) error {
	if r.stats == nil {
		return fmt.Errorf("statistics are not available in this session")
	}

	agg := r.stats.Aggregate()
	if agg.TotalRuns == 0 {
		fmt.Fprintln(r.out, "No plans refined yet (try /plan <request>)")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("Refinement stats (this session):"))
	fmt.Fprintf(r.out, "  Runs:              %d (%d accepted, %d exhausted)\n", agg.TotalRuns, agg.AcceptedRuns, agg.ExhaustedRuns)
	fmt.Fprintf(r.out, "  Iterations:        mean %.1f, p50 %d, p95 %d\n", agg.MeanIterations, agg.P50Iterations, agg.P95Iterations)
	fmt.Fprintf(r.out, "  Final score:       mean %.1f/10\n", agg.MeanFinalScore)
	fmt.Fprintf(r.out, "  Score improvement: mean %+.1f\n", agg.MeanScoreImprovement)

	var outcomes []string
	for _, outcome := range []refine.Outcome{refine.OutcomeCriteriaMet, refine.OutcomeThresholdReached, refine.OutcomeBudgetExhausted} {
		if n := agg.ByOutcome[outcome]; n > 0 {
			outcomes = append(outcomes, fmt.Sprintf("%s=%d", outcome, n))
		}
	}
	fmt.Fprintf(r.out, "  Outcomes:          %s\n", strings.Join(outcomes, " "))
	fmt.Fprintf(r.out, "  Total time:        %s\n\n", agg.TotalDuration.Round(time.Millisecond))
	return nil
}

// cmdTools lists the tools the assistant may call
func (r *REPL) cmdTools(ctx context.Context, args string) error {
	lister, ok := r.chat.(interface{ ToolNames() []string })
	if !ok || len(lister.ToolNames()) == 0 {
		fmt.Fprintln(r.out, "The assistant has no tools in this session")
		return nil
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintln(r.out, "The assistant can look things up with:")
	for _, name := range lister.ToolNames() {
		fmt.Fprintf(r.out, "  %s\n", green(name))
	}
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(ctx context.Context, args string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	if r.rl != nil {
		r.rl.Close()
	}
	return errExit
}
