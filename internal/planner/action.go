package planner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is one browser step proposed by the model
type Action struct {
	Action   string `json:"action"`
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Value    string `json:"value,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

const (
	ActionNavigate = "navigate"
	ActionClick    = "click"
	ActionFill     = "fill"
	ActionExtract  = "extract"
	ActionDone     = "done"
)

// ParseAction decodes the model's reply into an Action. Models routinely
// wrap JSON in markdown fences or prepend prose, so the parser isolates
// the first JSON object before decoding.
func ParseAction(reply string) (Action, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return Action{}, fmt.Errorf("no JSON object in model reply")
	}

	var action Action
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return Action{}, fmt.Errorf("malformed action JSON: %w", err)
	}
	if err := action.Validate(); err != nil {
		return Action{}, err
	}
	return action, nil
}

// Validate checks the action names a known verb with the fields it needs
func (a Action) Validate() error {
	switch a.Action {
	case ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate action missing url")
		}
	case ActionClick:
		if a.Selector == "" {
			return fmt.Errorf("click action missing selector")
		}
	case ActionFill:
		if a.Selector == "" || a.Value == "" {
			return fmt.Errorf("fill action missing selector or value")
		}
	case ActionExtract, ActionDone:
	default:
		return fmt.Errorf("unknown action: %q", a.Action)
	}
	return nil
}

func extractJSON(reply string) string {
	start := strings.Index(reply, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(reply); i++ {
		c := reply[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return reply[start : i+1]
				}
			}
		}
	}
	return ""
}
