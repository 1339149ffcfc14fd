package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxform/voxform/internal/screen"
	"github.com/voxform/voxform/pkg/provider/llm"
)

// minMeaningfulLen is the minimum trimmed transcript length worth sending to
// the model. Shorter utterances are mic noise or clipped speech.
const minMeaningfulLen = 3

const defaultTemperature = 0.2

// Resolver turns transcripts into decisions using an inference provider.
type Resolver struct {
	provider    llm.Provider
	logger      *slog.Logger
	now         func() time.Time
	temperature float64
	maxTokens   int
}

// ResolverOption is a functional option for Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithClock overrides the time source used for datetime enrichment and
// prompt timestamps. Intended for tests.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithTemperature sets the sampling temperature. Defaults to 0.2; command
// resolution wants near-deterministic output.
func WithTemperature(t float64) ResolverOption {
	return func(r *Resolver) {
		r.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ResolverOption {
	return func(r *Resolver) {
		r.maxTokens = n
	}
}

// NewResolver constructs a Resolver backed by the given provider.
func NewResolver(provider llm.Provider, opts ...ResolverOption) (*Resolver, error) {
	if provider == nil {
		return nil, errors.New("command: provider must not be nil")
	}
	r := &Resolver{
		provider:    provider,
		logger:      slog.Default(),
		now:         time.Now,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Resolve interprets one spoken command against the given screen snapshot.
//
// It never returns an error: every failure path (missing context, an
// unusable transcript, a provider outage, a malformed reply, low confidence,
// or an unresolvable field reference) yields a clarification Decision so the
// caller always has something safe to speak back.
func (r *Resolver) Resolve(ctx context.Context, transcript string, sc *screen.Context) *Decision {
	if sc == nil {
		return clarify(0, "I can't see your screen right now. Could you try that again in a moment?")
	}

	trimmed := strings.TrimSpace(transcript)
	if len(trimmed) < minMeaningfulLen {
		return clarify(0, "I didn't catch that. Could you say it again?")
	}

	system, user := BuildPrompt(trimmed, sc, r.now())
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: user}},
		Temperature:  r.temperature,
		MaxTokens:    r.maxTokens,
	})
	if err != nil || resp == nil {
		r.logger.ErrorContext(ctx, "command resolution failed", "error", err, "screen", sc.Name)
		return clarify(0, "Sorry, I had trouble processing that. Could you repeat your command?")
	}

	d, err := ParseDecision(resp.Content)
	if err != nil {
		r.logger.WarnContext(ctx, "discarding malformed model reply", "error", err, "screen", sc.Name)
		return clarify(0, "Sorry, I had trouble processing that. Could you repeat your command?")
	}

	// The gate applies to every parsed decision, not just mutating ones: a
	// hesitant acknowledgement is as untrustworthy as a hesitant field write.
	if d.Confidence < ConfidenceThreshold && d.Action != ActionClarify {
		question := d.Clarification
		if question == "" {
			question = "I'm not sure I understood. Could you rephrase that?"
		}
		r.logger.DebugContext(ctx, "confidence below threshold",
			"confidence", d.Confidence, "action", string(d.Action))
		return clarify(d.Confidence, question)
	}

	switch d.Action {
	case ActionUpdateField:
		return r.resolveUpdate(ctx, d, sc)
	case ActionExecuteAction:
		return r.resolveExecute(d, sc)
	}
	return d
}

// resolveUpdate validates and enriches an update_field decision.
func (r *Resolver) resolveUpdate(ctx context.Context, d *Decision, sc *screen.Context) *Decision {
	field, err := sc.ResolveField(d.Target)

	var ambErr *screen.AmbiguousFieldError
	if errors.As(err, &ambErr) {
		return clarify(d.Confidence, fmt.Sprintf(
			"Which one did you mean: %s?", joinOr(ambErr.Labels)))
	}
	if field == nil {
		if label, ok := sc.Suggest(d.Target); ok {
			return clarify(d.Confidence, fmt.Sprintf(
				"I couldn't find a field called %q. Did you mean %s?", d.Target, label))
		}
		return clarify(d.Confidence, fmt.Sprintf(
			"I couldn't find a field called %q on this screen.", d.Target))
	}

	if sc.Mode == screen.ModePreview {
		return clarify(d.Confidence,
			"You're in preview mode, so fields can't be changed. Want me to switch to edit mode first?")
	}
	if !field.Editable {
		return clarify(d.Confidence, fmt.Sprintf(
			"%s can't be edited on this screen.", labelOf(field)))
	}

	d.Target = field.Name

	if field.Kind == screen.KindDateTime && strings.TrimSpace(d.Value) == "" {
		d.Value = r.now().Format("2006-01-02 15:04")
		r.logger.DebugContext(ctx, "filled datetime field with current time", "field", field.Name)
	}

	// Rewrite acknowledgements around the display label so speech output
	// never reads out raw field keys like "onsite_contact".
	d.Confirmation = fmt.Sprintf("Updated %s to: %s", labelOf(field), d.Value)
	d.SpokenText = fmt.Sprintf("Updated! %s is now %s.", labelOf(field), d.Value)
	return d
}

// resolveExecute normalizes loosely-phrased action targets onto the screen's
// action vocabulary.
func (r *Resolver) resolveExecute(d *Decision, sc *screen.Context) *Decision {
	target := strings.ToLower(strings.TrimSpace(d.Target))

	switch {
	case strings.Contains(target, "edit mode"), strings.Contains(target, "preview mode"):
		// "Switch to edit mode" is a mode change, not a screen action.
		d.Action = ActionToggleMode
		d.Target = ""
		return d
	case strings.Contains(target, "pdf"), strings.Contains(target, "generate"):
		d.Target = "generate_pdf"
	case target != "":
		d.Target = target
	}

	if !sc.HasAction(d.Target) {
		if len(sc.Actions) == 0 {
			return clarify(d.Confidence, "There are no actions available on this screen.")
		}
		return clarify(d.Confidence, fmt.Sprintf(
			"I can't do that here. Available actions are: %s.", strings.Join(sc.Actions, ", ")))
	}
	return d
}

// clarify builds a clarification Decision whose question is both shown and
// spoken.
func clarify(confidence float64, question string) *Decision {
	return &Decision{
		Action:        ActionClarify,
		Confidence:    confidence,
		Clarification: question,
		Confirmation:  "Needs clarification",
		SpokenText:    question,
	}
}

func labelOf(f *screen.FieldDescriptor) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
}
