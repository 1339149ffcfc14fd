// Package command resolves spoken field-report commands into structured,
// confidence-gated decisions.
//
// The [Resolver] combines a transcript with a [screen.Context] snapshot,
// consults an inference provider, and always returns a well-formed [Decision]:
// provider failures, malformed model output, low confidence, and unresolvable
// field references all degrade into clarification decisions rather than
// errors, so the voice loop keeps talking to the user no matter what breaks
// underneath.
package command

// Action identifies what the client should do with a resolved command.
type Action string

const (
	// ActionUpdateField writes Value into the field named by Target.
	ActionUpdateField Action = "update_field"

	// ActionToggleMode switches the surface between edit and preview.
	ActionToggleMode Action = "toggle_mode"

	// ActionExecuteAction triggers the screen action named by Target.
	ActionExecuteAction Action = "execute_action"

	// ActionClarify asks the user a follow-up question. Nothing is executed.
	ActionClarify Action = "clarify"

	// ActionAcknowledge responds conversationally without changing anything.
	ActionAcknowledge Action = "acknowledge"

	// ActionExplainCapabilities describes what the assistant can do.
	ActionExplainCapabilities Action = "explain_capabilities"

	// ActionProvideSuggestion offers content the user may dictate into a field.
	ActionProvideSuggestion Action = "provide_suggestion"
)

// IsValid reports whether a is one of the recognised actions.
func (a Action) IsValid() bool {
	switch a {
	case ActionUpdateField, ActionToggleMode, ActionExecuteAction, ActionClarify,
		ActionAcknowledge, ActionExplainCapabilities, ActionProvideSuggestion:
		return true
	}
	return false
}

// Mutating reports whether the action changes form state when executed.
func (a Action) Mutating() bool {
	switch a {
	case ActionUpdateField, ActionToggleMode, ActionExecuteAction:
		return true
	}
	return false
}

// ConfidenceThreshold is the minimum model confidence at which a mutating
// decision is executed as-is. Anything below it is downgraded to a
// clarification so a garbled utterance never silently changes form data.
const ConfidenceThreshold = 0.7

// Decision is the resolved outcome of one voice command. Every resolution
// produces exactly one Decision, whether or not the command could be carried
// out.
type Decision struct {
	// Action says what the client should do.
	Action Action `json:"action"`

	// Target names the field to update or the screen action to execute.
	// Empty for conversational actions.
	Target string `json:"target,omitempty"`

	// Value is the content to write for update_field, or suggested content
	// for provide_suggestion.
	Value string `json:"value,omitempty"`

	// Confidence is the model's self-assessed certainty in [0, 1].
	Confidence float64 `json:"confidence"`

	// Clarification is the question to ask when Action is clarify.
	Clarification string `json:"clarification,omitempty"`

	// Confirmation is the short on-screen status line describing what
	// happened.
	Confirmation string `json:"confirmation"`

	// SpokenText is the sentence to speak back to the user.
	SpokenText string `json:"ttsText"`
}
