// Package repl provides the interactive chat shell: free text goes to a
// conversation with memory, slash commands reach the refinement loop and the
// query router.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/steveyegge/patterns/internal/ai"
	"github.com/steveyegge/patterns/internal/executor"
	"github.com/steveyegge/patterns/internal/refine"
	"github.com/steveyegge/patterns/internal/routing"
)

// Chatter is a conversation that remembers previous turns
type Chatter interface {
	Send(ctx context.Context, message string) (string, error)
	Reset()
	History() []ai.Turn
}

// Planner runs the refinement loop for a request
type Planner interface {
	Execute(ctx context.Context, request string) (*executor.RunResult, error)
}

// Router answers a query through the routing pattern
type Router interface {
	Route(ctx context.Context, query string) (*routing.Result, error)
}

// Stats reports refinement metrics gathered during the session
type Stats interface {
	Aggregate() *refine.AggregateMetrics
}

// REPL represents the interactive shell
type REPL struct {
	chat     Chatter
	planner  Planner
	router   Router
	stats    Stats
	out      io.Writer
	history  string
	rl       *readline.Instance
	ctx      context.Context
	commands map[string]CommandHandler

	// interruptible derives the context a single input line runs under
	interruptible func(context.Context) (context.Context, context.CancelFunc)
}

// CommandHandler handles a specific slash command; args is the text after the command
type CommandHandler func(ctx context.Context, args string) error

// Config holds REPL configuration
type Config struct {
	Chat    Chatter
	Planner Planner // optional, enables /plan
	Router  Router  // optional, enables /route
	Stats   Stats   // optional, enables /stats

	// Out receives all output (default: os.Stdout)
	Out io.Writer

	// HistoryFile persists line history ("" keeps it in memory)
	HistoryFile string
}

// errExit is returned by /exit to stop the loop
var errExit = errors.New("exit requested")

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg == nil || cfg.Chat == nil {
		return nil, fmt.Errorf("chat is required")
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		chat:     cfg.Chat,
		planner:  cfg.Planner,
		router:   cfg.Router,
		stats:    cfg.Stats,
		out:      out,
		history:  cfg.HistoryFile,
		ctx:      context.Background(),
		commands: make(map[string]CommandHandler),
	}
	r.interruptible = func(ctx context.Context) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(ctx, os.Interrupt)
	}

	r.registerCommands()

	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("you> "),
		HistoryFile:       r.history,
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdout:            r.out,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	r.rl = rl

	r.printWelcome()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == errExit {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput dispatches slash commands and sends everything else to the chat.
// Readline owns Ctrl-C only at the prompt; while a line runs, Ctrl-C cancels
// that line's context instead of killing the process, so an interrupted /plan
// still records its run as failed.
func (r *REPL) processInput(line string) error {
	ctx, stop := r.interruptible(r.ctx)
	defer stop()

	if strings.HasPrefix(line, "/") {
		name, args, _ := strings.Cut(line, " ")
		if handler, ok := r.commands[strings.ToLower(name)]; ok {
			return handler(ctx, strings.TrimSpace(args))
		}
		return fmt.Errorf("unknown command %s (type /help for commands)", name)
	}
	return r.sendChat(ctx, line)
}

func (r *REPL) sendChat(ctx context.Context, message string) error {
	reply, err := r.chat.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s %s\n\n", green(ai.DefaultAssistantName+":"), reply)
	return nil
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["/help"] = r.cmdHelp
	r.commands["/?"] = r.cmdHelp
	r.commands["/clear"] = r.cmdClear
	r.commands["/history"] = r.cmdHistory
	r.commands["/plan"] = r.cmdPlan
	r.commands["/route"] = r.cmdRoute
	r.commands["/stats"] = r.cmdStats
	r.commands["/tools"] = r.cmdTools
	r.commands["/exit"] = r.cmdExit
	r.commands["/quit"] = r.cmdExit
}

func (r *REPL) completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("/help"),
		readline.PcItem("/clear"),
		readline.PcItem("/history"),
		readline.PcItem("/plan"),
		readline.PcItem("/route"),
		readline.PcItem("/stats"),
		readline.PcItem("/tools"),
		readline.PcItem("/exit"),
	)
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan(fmt.Sprintf("%s - %s", ai.DefaultAssistantName, ai.DefaultAssistantRole)))
	fmt.Fprintln(r.out, "Tell me where you want to go. I remember what you say during this session.")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Type /help for commands, /exit to quit")
	fmt.Fprintln(r.out)
}
