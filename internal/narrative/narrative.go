// Package narrative extracts the weekly client and coach views from raw
// generation output.
package narrative

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/compass/internal/types"
)

// ErrMalformedOutput is returned when raw output does not hold the expected shape.
var ErrMalformedOutput = errors.New("malformed generation output")

// Output is the parsed pair of views.
type Output struct {
	ClientView types.ClientView
	CoachView  types.CoachView
}

var (
	clientViewKeys = []string{"headline", "themes", "wins", "reflection_prompts", "encouragement"}
	coachViewKeys  = []string{"summary", "patterns", "risks", "suggested_focus", "next_session_questions"}
)

// Parse strips an optional code fence from raw and decodes the two views.
// Both top-level keys and all five keys of each view must be present. Field
// types are checked by decoding only; any failure wraps ErrMalformedOutput.
func Parse(raw string) (*Output, error) {
	body := stripFence(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	clientRaw, err := view(top, "client_view", clientViewKeys)
	if err != nil {
		return nil, err
	}
	coachRaw, err := view(top, "coach_view", coachViewKeys)
	if err != nil {
		return nil, err
	}

	var out Output
	if err := json.Unmarshal(clientRaw, &out.ClientView); err != nil {
		return nil, fmt.Errorf("%w: client_view: %v", ErrMalformedOutput, err)
	}
	if err := json.Unmarshal(coachRaw, &out.CoachView); err != nil {
		return nil, fmt.Errorf("%w: coach_view: %v", ErrMalformedOutput, err)
	}
	normalize(&out)
	return &out, nil
}

// view returns the raw object under key after checking it has every field.
func view(top map[string]json.RawMessage, key string, fields []string) (json.RawMessage, error) {
	raw, ok := top[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedOutput, key)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: %s is not an object", ErrMalformedOutput, key)
	}
	for _, f := range fields {
		if _, ok := obj[f]; !ok {
			return nil, fmt.Errorf("%w: missing %s.%s", ErrMalformedOutput, key, f)
		}
	}
	return raw, nil
}

// stripFence removes a leading ``` or ```json line and a trailing ``` line.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// normalize turns JSON nulls into empty lists so stored views always carry arrays.
func normalize(o *Output) {
	for _, list := range []*[]string{
		&o.ClientView.Themes, &o.ClientView.Wins, &o.ClientView.ReflectionPrompts,
		&o.CoachView.Patterns, &o.CoachView.Risks, &o.CoachView.SuggestedFocus, &o.CoachView.NextSessionQuestions,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
}
