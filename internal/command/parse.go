package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/voxform/voxform/internal/llmjson"
)

// ErrMalformedResponse is returned when a model reply cannot be turned into a
// Decision: no JSON object, invalid JSON, missing required keys, or an action
// outside the known vocabulary.
var ErrMalformedResponse = errors.New("command: malformed model response")

// defaultConfidence is substituted when the model emits a non-numeric
// confidence ("high", null). Confidence is the one field that is repaired
// rather than rejected; 0.5 sits below the execution threshold, so repaired
// decisions always route through clarification.
const defaultConfidence = 0.5

// rawDecision mirrors Decision with confidence left undecoded, so a
// non-numeric value degrades gracefully instead of failing the unmarshal.
type rawDecision struct {
	Action        *string         `json:"action"`
	Target        string          `json:"target"`
	Value         string          `json:"value"`
	Confidence    json.RawMessage `json:"confidence"`
	Clarification string          `json:"clarification"`
	Confirmation  *string         `json:"confirmation"`
	SpokenText    *string         `json:"ttsText"`
}

// ParseDecision extracts and validates a Decision from a raw model reply.
//
// Structural defects (no JSON object, syntax errors, missing action,
// confidence, confirmation, or ttsText keys, or an unrecognised action) fail
// with [ErrMalformedResponse]. A present-but-non-numeric confidence is the
// sole repair: it is coerced to a number when it is a numeric string and
// replaced with 0.5 otherwise.
func ParseDecision(reply string) (*Decision, error) {
	obj, err := llmjson.ExtractObject(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	var missing []string
	if raw.Action == nil {
		missing = append(missing, "action")
	}
	if raw.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if raw.Confirmation == nil {
		missing = append(missing, "confirmation")
	}
	if raw.SpokenText == nil {
		missing = append(missing, "ttsText")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing keys: %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}

	action := Action(*raw.Action)
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformedResponse, *raw.Action)
	}

	return &Decision{
		Action:        action,
		Target:        raw.Target,
		Value:         raw.Value,
		Confidence:    parseConfidence(raw.Confidence),
		Clarification: raw.Clarification,
		Confirmation:  *raw.Confirmation,
		SpokenText:    *raw.SpokenText,
	}, nil
}

// parseConfidence accepts a JSON number or a numeric string and falls back to
// defaultConfidence for anything else.
func parseConfidence(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return defaultConfidence
}
