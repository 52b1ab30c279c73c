package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Tool is a function the model may call during a conversation
type Tool struct {
	Name        string
	Description string
	Properties  map[string]interface{} // JSON schema properties of the input object
	Required    []string
	Run         func(ctx context.Context, input map[string]interface{}) (string, error)
}

// Toolbox is the set of tools offered to the model, keyed by name
type Toolbox struct {
	tools  []Tool
	byName map[string]Tool
}

// NewToolbox validates tools and indexes them by name
func NewToolbox(tools ...Tool) (*Toolbox, error) {
	box := &Toolbox{byName: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if tool.Run == nil {
			return nil, fmt.Errorf("tool %s has no implementation", tool.Name)
		}
		if _, dup := box.byName[tool.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %s", tool.Name)
		}
		box.byName[tool.Name] = tool
		box.tools = append(box.tools, tool)
	}
	return box, nil
}

// TravelToolbox returns the flight, weather and activity lookups
func TravelToolbox() *Toolbox {
	box, err := NewToolbox(TravelTools()...)
	if err != nil {
		panic(err)
	}
	return box
}

// Names returns the tool names in registration order
func (b *Toolbox) Names() []string {
	names := make([]string, len(b.tools))
	for i, tool := range b.tools {
		names[i] = tool.Name
	}
	return names
}

// params returns the tool definitions for the Messages API
func (b *Toolbox) params() []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(b.tools))
	for i := range b.tools {
		tool := anthropic.ToolParam{
			Name:        b.tools[i].Name,
			Description: anthropic.String(b.tools[i].Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: b.tools[i].Properties,
				Required:   b.tools[i].Required,
			},
		}
		tools[i] = anthropic.ToolUnionParam{OfTool: &tool}
	}
	return tools
}

// Execute decodes input and runs the named tool
func (b *Toolbox) Execute(ctx context.Context, name string, input interface{}) (string, error) {
	tool, ok := b.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	// The SDK hands input over already decoded or as raw JSON
	var inputMap map[string]interface{}
	switch v := input.(type) {
	case map[string]interface{}:
		inputMap = v
	case json.RawMessage:
		if err := json.Unmarshal(v, &inputMap); err != nil {
			return "", fmt.Errorf("failed to unmarshal tool input: %w", err)
		}
	case []byte:
		if err := json.Unmarshal(v, &inputMap); err != nil {
			return "", fmt.Errorf("failed to unmarshal tool input: %w", err)
		}
	case nil:
	default:
		return "", fmt.Errorf("invalid tool input format: %T", input)
	}
	if inputMap == nil {
		inputMap = map[string]interface{}{}
	}

	for _, key := range tool.Required {
		if _, ok := inputMap[key]; !ok {
			return "", fmt.Errorf("%s: missing required input %q", name, key)
		}
	}
	return tool.Run(ctx, inputMap)
}

// FlightOption is one result of search_flights
type FlightOption struct {
	Airline string  `json:"airline"`
	Price   float64 `json:"price"` // USD
}

var (
	cityWeather = map[string]string{
		"london": "rainy, 12°C",
		"paris":  "sunny, 18°C",
		"tokyo":  "cloudy, 16°C",
	}
	cityActivities = map[string]string{
		"london": "Visit British Museum, See Big Ben, Ride the London Eye",
		"paris":  "Visit Eiffel Tower, Explore Louvre Museum, Walk along Seine River",
		"tokyo":  "Visit Tokyo Skytree, Explore Senso-ji Temple, Shop in Shibuya",
	}
)

// TravelTools returns the mock lookups. Their data is canned; swap Run for a real
// API client to go live.
func TravelTools() []Tool {
	return []Tool{
		{
			Name:        "search_flights",
			Description: "Search for flights to the specified destination. Returns airlines with prices in USD.",
			Properties: map[string]interface{}{
				"destination": map[string]interface{}{"type": "string", "description": "Destination city name"},
			},
			Required: []string{"destination"},
			Run:      searchFlights,
		},
		{
			Name:        "search_weather",
			Description: "Get weather information for a city.",
			Properties: map[string]interface{}{
				"city": map[string]interface{}{"type": "string", "description": "City name"},
			},
			Required: []string{"city"},
			Run: func(ctx context.Context, input map[string]interface{}) (string, error) {
				return cityLookup(input, cityWeather, "Weather data not available")
			},
		},
		{
			Name:        "find_activities",
			Description: "Find popular activities for a city.",
			Properties: map[string]interface{}{
				"city": map[string]interface{}{"type": "string", "description": "City name"},
			},
			Required: []string{"city"},
			Run: func(ctx context.Context, input map[string]interface{}) (string, error) {
				return cityLookup(input, cityActivities, "Activity data not available")
			},
		},
	}
}

func searchFlights(ctx context.Context, input map[string]interface{}) (string, error) {
	destination, err := stringInput(input, "destination")
	if err != nil {
		return "", err
	}
	options := []FlightOption{
		{Airline: "SkyHighAir", Price: 450.00},
		{Airline: "GlobalWings", Price: 375.50},
	}
	data, err := json.Marshal(map[string]interface{}{"destination": destination, "flights": options})
	if err != nil {
		return "", fmt.Errorf("failed to encode flights: %w", err)
	}
	return string(data), nil
}

func cityLookup(input map[string]interface{}, table map[string]string, missing string) (string, error) {
	city, err := stringInput(input, "city")
	if err != nil {
		return "", err
	}
	if info, ok := table[strings.ToLower(city)]; ok {
		return info, nil
	}
	return missing, nil
}

func stringInput(input map[string]interface{}, key string) (string, error) {
	raw, ok := input[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}
