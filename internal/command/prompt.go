package command

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voxform/voxform/internal/screen"
)

// maxPromptValueLen caps how much of a field's current value is echoed into
// the prompt. Long narrative fields would otherwise dominate the context
// window without helping the model pick an action.
const maxPromptValueLen = 100

const systemPersona = `You are a voice assistant for field technicians filling out service reports hands-free. ` +
	`You interpret one spoken command at a time against the form currently on screen and respond with a single JSON object. ` +
	`Be decisive when the command is clear, and ask a short clarifying question when it is not. ` +
	`Keep ttsText to one conversational sentence suitable for speech synthesis.`

const responseSchema = `Respond with ONLY a JSON object, no prose and no markdown, with these keys:
  "action": one of "update_field", "toggle_mode", "execute_action", "clarify", "acknowledge", "explain_capabilities", "provide_suggestion"
  "target": field name for update_field, or action name for execute_action (omit otherwise)
  "value": the content to write for update_field or suggest for provide_suggestion (omit otherwise)
  "confidence": your certainty in this interpretation, a number from 0.0 to 1.0
  "clarification": the question to ask the user (only when action is "clarify")
  "confirmation": a short status line describing what you did, e.g. "Updated location"
  "ttsText": one sentence to speak back to the user`

// BuildPrompt renders the system and user prompts for one resolution. The
// output is deterministic for a given transcript, context, and timestamp, so
// prompt drift shows up in tests rather than in production transcripts.
func BuildPrompt(transcript string, sc *screen.Context, now time.Time) (system, user string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Current screen: %q (mode: %s)\n", sc.Name, promptMode(sc.Mode))
	fmt.Fprintf(&b, "Current time: %s\n\n", now.Format("2006-01-02 15:04"))

	if len(sc.Fields) > 0 {
		b.WriteString("Visible fields:\n")
		for _, f := range sc.Fields {
			fmt.Fprintf(&b, "  - %s (name: %s)", fieldLabel(f), f.Name)
			if !f.Editable {
				b.WriteString(" [read-only]")
			}
			if len(f.Synonyms) > 0 {
				fmt.Fprintf(&b, " (also called: %s)", strings.Join(f.Synonyms, ", "))
			}
			if v := truncateValue(f.Value); v != "" {
				fmt.Fprintf(&b, "\n    current value: %q", v)
			} else {
				b.WriteString("\n    current value: (empty)")
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	if len(sc.Actions) > 0 {
		fmt.Fprintf(&b, "Available actions: %s\n\n", strings.Join(sc.Actions, ", "))
	}

	fmt.Fprintf(&b, "The technician said: %q\n\n", transcript)
	b.WriteString(responseSchema)

	return systemPersona, b.String()
}

func promptMode(m screen.Mode) string {
	if m == "" {
		return string(screen.ModeOther)
	}
	return string(m)
}

func fieldLabel(f screen.FieldDescriptor) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func truncateValue(v string) string {
	if len(v) <= maxPromptValueLen {
		return v
	}
	cut := maxPromptValueLen
	// Back off to a rune boundary so a multi-byte character is never split.
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut] + "..."
}
