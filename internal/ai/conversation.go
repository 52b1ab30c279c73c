package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Persona defaults for the chat assistant
const (
	DefaultAssistantName = "TravelBuddy"
	DefaultAssistantRole = "Travel Planner Assistant"
)

const (
	// ConversationScope is the budget scope charged for chat turns
	ConversationScope = "chat"

	// MaxToolIterations bounds the model calls one Send may make while tools are in use
	MaxToolIterations = 10
)

// Turn is one message in a conversation
type Turn struct {
	Role      string    // "user" or "assistant"
	Text      string
	Tools     []string  // tools called while producing an assistant turn, in call order
	Timestamp time.Time
}

// Conversation is a chat session that remembers every exchanged message.
// It is safe for concurrent use; sends are serialized.
type Conversation struct {
	client *Client
	system string

	mu      sync.Mutex
	tools   *Toolbox
	history []anthropic.MessageParam
	turns   []Turn
}

// NewConversation creates a session with the default persona
func NewConversation(client *Client) *Conversation {
	return NewConversationWithPersona(client, DefaultAssistantName, DefaultAssistantRole)
}

// NewConversationWithPersona creates a session for a named assistant
func NewConversationWithPersona(client *Client, name, role string) *Conversation {
	return &Conversation{
		client: client,
		system: buildPersonaPrompt(name, role),
		tools:  TravelToolbox(),
	}
}

// SetTools replaces the tools offered to the model; nil disables tool use
func (c *Conversation) SetTools(box *Toolbox) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = box
}

// ToolNames returns the names of the tools offered to the model
func (c *Conversation) ToolNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tools == nil {
		return nil
	}
	return c.tools.Names()
}

func buildPersonaPrompt(name, role string) string {
	return fmt.Sprintf(`You are %s, a %s.

Your responsibilities:
- Remember the destinations, dates and preferences the user mentions and use them in later answers
- Help find flights, places to stay and things to do
- Use the available tools for flights, weather and activities instead of guessing
- Ask a short clarifying question when a request is ambiguous

Keep answers concise and practical.`, name, role)
}

// SystemPrompt returns the persona prompt sent with every turn
func (c *Conversation) SystemPrompt() string {
	return c.system
}

// Send appends message to the history and asks the model. While the model
// stops to call tools, the calls are run and their results fed back, up to
// MaxToolIterations model calls. On error the history is left as it was
// before the call.
func (c *Conversation) Send(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("message is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := len(c.history)
	c.history = append(c.history, anthropic.NewUserMessage(anthropic.NewTextBlock(message)))

	if ScopeFrom(ctx) == "" {
		ctx = WithScope(ctx, ConversationScope)
	}
	var tools []anthropic.ToolUnionParam
	if c.tools != nil {
		tools = c.tools.params()
	}

	var used []string
	for iteration := 0; iteration < MaxToolIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			c.history = c.history[:start]
			return "", err
		}

		response, err := c.client.createMessage(ctx, "chat", c.system, c.history, tools)
		if err != nil {
			c.history = c.history[:start]
			return "", err
		}

		if response.StopReason != "tool_use" {
			reply := strings.TrimSpace(messageText(response))
			c.history = append(c.history, anthropic.NewAssistantMessage(anthropic.NewTextBlock(reply)))
			now := time.Now()
			c.turns = append(c.turns,
				Turn{Role: "user", Text: message, Timestamp: now},
				Turn{Role: "assistant", Text: reply, Tools: used, Timestamp: now},
			)
			return reply, nil
		}

		// The assistant turn carries the tool_use blocks the results answer
		c.history = append(c.history, response.ToParam())

		var results []anthropic.ContentBlockParamUnion
		for _, block := range response.Content {
			toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
			if !ok {
				continue
			}
			used = append(used, toolUse.Name)
			results = append(results, c.runTool(ctx, toolUse))
		}
		if len(results) == 0 {
			c.history = c.history[:start]
			return "", fmt.Errorf("model stopped for tool use without calling a tool")
		}
		c.history = append(c.history, anthropic.NewUserMessage(results...))
	}

	c.history = c.history[:start]
	return "", fmt.Errorf("conversation exceeded maximum tool iterations (%d)", MaxToolIterations)
}

// runTool executes one tool call; failures are reported to the model as error results
func (c *Conversation) runTool(ctx context.Context, toolUse anthropic.ToolUseBlock) anthropic.ContentBlockParamUnion {
	if c.tools == nil {
		return anthropic.NewToolResultBlock(toolUse.ID, "Error: tools are disabled", true)
	}
	result, err := c.tools.Execute(ctx, toolUse.Name, toolUse.Input)
	if err != nil {
		slog.Warn("tool execution failed", "tool", toolUse.Name, "error", err)
		return anthropic.NewToolResultBlock(toolUse.ID, fmt.Sprintf("Error: %v", err), true)
	}
	slog.Debug("tool executed", "tool", toolUse.Name)
	return anthropic.NewToolResultBlock(toolUse.ID, result, false)
}

// Reset forgets the whole history
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.turns = nil
}

// Turns returns the number of completed exchanges
func (c *Conversation) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns) / 2
}

// History returns a copy of the exchanged messages in order
func (c *Conversation) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.turns...)
}
