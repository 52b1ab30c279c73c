package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var (
	// Matches ```json\n{...}\n```, ```{...}```, ``` json{...}``` and friends
	codeFenceRegex = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)^\s*//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Greedy so nested structures are captured whole
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// maxParseInput caps the size of model output handed to the parser
const maxParseInput = 1 << 20

// ParseResult is the outcome of a lenient JSON parse
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// Parse decodes model output into T, tolerating the usual LLM formatting quirks.
// Strategies are tried in order until one decodes:
//  1. the text as-is
//  2. with markdown code fences removed
//  3. the first JSON object or array found in surrounding prose
//  4. with trailing commas, unquoted keys and comments fixed
//  5. the first JSON object or array in the fixed text
//
// The cleanup regexes also touch string contents (", timing:" reads like a key),
// so text that only needs extracting is tried before it is rewritten.
//
// context names the caller in error messages.
func Parse[T any](text, context string) ParseResult[T] {
	fail := func(msg string) ParseResult[T] {
		if context != "" {
			msg = context + ": " + msg
		}
		return ParseResult[T]{Error: msg, OriginalText: text}
	}

	if len(text) > maxParseInput {
		return fail(fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), maxParseInput))
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fail("empty input")
	}

	unfenced := removeCodeFences(trimmed)
	cleaned := cleanupJSON(unfenced)
	candidates := []string{trimmed, unfenced, extractJSON(unfenced), cleaned, extractJSON(cleaned)}

	var firstErr error
	tried := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		if candidate == "" || tried[candidate] {
			continue
		}
		tried[candidate] = true
		var data T
		err := json.Unmarshal([]byte(candidate), &data)
		if err == nil {
			return ParseResult[T]{Success: true, Data: data, OriginalText: text}
		}
		if firstErr == nil {
			firstErr = err
			slog.Debug("direct JSON parse failed, trying cleanup strategies",
				"error", err, "preview", truncate(text, 100), "context", context)
		}
	}

	return fail(fmt.Sprintf("all JSON parsing strategies failed: %v", firstErr))
}

// removeCodeFences strips markdown code fences (and a lone pair of backticks)
func removeCodeFences(text string) string {
	cleaned := text
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		cleaned = m[1]
	}
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") && len(cleaned) > 1 {
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes trailing commas, bare identifier keys and comments.
// Single quotes are left alone so apostrophes inside strings survive.
func cleanupJSON(text string) string {
	cleaned := trailingCommaRegex.ReplaceAllString(text, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON returns the outermost object or array in mixed content, or "".
// The first JSON-like character decides which kind is wanted so that
// [{"a":1},{"a":2}] is not cut down to its first element.
func extractJSON(text string) string {
	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")

	if arrIdx >= 0 && (objIdx < 0 || arrIdx < objIdx) {
		if match := arrayRegex.FindString(text); match != "" {
			return match
		}
	}
	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	return arrayRegex.FindString(text)
}
