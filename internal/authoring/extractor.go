package authoring

import (
	"encoding/json"
	"regexp"
	"strings"
)

// suggestionTag is the discriminant a fenced block must carry to be treated
// as a task suggestion.
const suggestionTag = "task_suggestion"

var fencedBlockRe = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n(.*?)```")

// suggestionWire is the tolerant wire shape of the fenced block.
type suggestionWire struct {
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Labels      json.RawMessage `json:"labels"`
	Priority    string          `json:"priority"`
}

// ExtractSuggestion scans accumulated assistant text for a trailing fenced
// block carrying a task-suggestion payload and validates it. Extraction is
// best-effort: any missing block, malformed JSON, wrong discriminant, or
// missing required field yields nil rather than an error.
func ExtractSuggestion(text string) *TaskSuggestion {
	matches := fencedBlockRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	raw := matches[len(matches)-1][1]

	var wire suggestionWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil
	}
	if wire.Type != suggestionTag {
		return nil
	}

	title := strings.TrimSpace(wire.Title)
	description := strings.TrimSpace(wire.Description)
	if title == "" || description == "" {
		return nil
	}

	return &TaskSuggestion{
		Title:       title,
		Description: description,
		Labels:      coerceLabels(wire.Labels),
		Priority:    coercePriority(wire.Priority),
	}
}

// coerceLabels returns an empty list for absent or malformed labels.
func coerceLabels(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var labels []string
	if err := json.Unmarshal(raw, &labels); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// coercePriority defaults to medium unless the value is one of the three
// allowed priorities.
func coercePriority(raw string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	case PriorityMedium:
		return PriorityMedium
	default:
		return PriorityMedium
	}
}
