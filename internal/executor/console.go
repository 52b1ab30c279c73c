package executor

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/steveyegge/patterns/internal/refine"
)

// consoleObserver prints loop progress the way the CLI shows it
type consoleObserver struct {
	w   io.Writer
	cfg refine.Config
}

func newConsoleObserver(w io.Writer, cfg refine.Config) *consoleObserver {
	return &consoleObserver{w: w, cfg: cfg}
}

func (c *consoleObserver) OnGenerate(iteration int, feedback []string, artifact string) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(c.w, "\n%s\n", cyan(fmt.Sprintf("=== Iteration %d/%d ===", iteration, c.cfg.MaxIterations)))
	if len(feedback) > 0 {
		fmt.Fprintf(c.w, "%s\n", gray(fmt.Sprintf("Regenerated with %d feedback item(s)", len(feedback))))
	}
	fmt.Fprintf(c.w, "Generated plan (%d chars)\n", len(artifact))
}

func (c *consoleObserver) OnEvaluate(iteration int, evaluation *refine.Evaluation) {
	fmt.Fprintf(c.w, "Score: %s\n", ScoreColor(evaluation.Score, c.cfg.ScoreThreshold))
	if evaluation.MeetsCriteria {
		fmt.Fprintf(c.w, "Meets criteria: %s\n", color.GreenString("yes"))
	} else {
		fmt.Fprintf(c.w, "Meets criteria: %s\n", color.YellowString("no"))
	}
	if len(evaluation.Feedback) > 0 {
		fmt.Fprintln(c.w, "Feedback:")
		for _, item := range evaluation.Feedback {
			fmt.Fprintf(c.w, "  - %s\n", item)
		}
	}
}

func (c *consoleObserver) OnComplete(result *refine.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	msg := Assessment(result, c.cfg.MaxIterations)
	if result.Outcome.Accepted() {
		fmt.Fprintf(c.w, "\n%s %s\n", green("✓"), msg)
	} else {
		fmt.Fprintf(c.w, "\n%s %s\n", yellow("⚠"), msg)
	}
}

// ScoreColor renders "N/10" green at or above threshold, yellow within two
// points of it and red otherwise
func ScoreColor(score, threshold int) string {
	text := fmt.Sprintf("%d/10", score)
	switch {
	case score >= threshold:
		return color.GreenString(text)
	case score >= threshold-2:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}
