package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>...</think> reasoning blocks some models emit.
func StripThinking(text string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
}

// ExtractJSON returns the JSON payload of an LLM reply, unwrapping markdown
// code fences wherever they appear in the text.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		// drop a language tag such as "json"
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		text = rest
	}
	return strings.TrimSpace(text)
}

// Decode unmarshals the JSON payload of an LLM reply into v.
func Decode(text string, v any) error {
	payload := ExtractJSON(text)
	if payload == "" {
		return errors.New("empty response")
	}
	return json.Unmarshal([]byte(payload), v)
}

// ParseJSONResponse parses a JSON object from an LLM reply, handling markdown
// code blocks. Returns nil when the reply is not a JSON object.
func ParseJSONResponse(text string) map[string]any {
	var result map[string]any
	if err := Decode(text, &result); err != nil {
		return nil
	}
	return result
}
