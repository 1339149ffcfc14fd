// Package llmcorrect implements a language-model-based transcript correction
// stage that resolves vocabulary misspellings not caught by the phonetic
// matcher.
//
// The [Corrector] sends the transcript text to an [llm.Provider] along with
// the known vocabulary. The model is instructed (via a conservative system
// prompt) to fix only words that look like misheard vocabulary terms and to
// return a structured JSON response containing the corrected text and an
// itemised list of substitutions. Every reported change is then verified
// token-by-token against the actual text diff; changes the model made but did
// not declare are reverted, so the model can never silently rewrite the
// technician's words.
//
// When the LLM response cannot be parsed, the corrector returns the original
// text unchanged rather than surfacing an error, keeping the pipeline robust.
package llmcorrect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxform/voxform/internal/llmjson"
	"github.com/voxform/voxform/pkg/provider/llm"
)

const defaultTemperature = 0.1

// systemPromptTemplate is the base system prompt. The vocabulary list is
// appended at call time so each request carries the current job context.
const systemPromptTemplate = `You are a transcript correction assistant for a field service technician's spoken report.

Your task: fix misheard vocabulary terms in the provided transcript text.

Rules:
- ONLY correct words that appear to be misheard versions of the known terms listed below.
- Do NOT change ordinary English words, grammar, punctuation, or sentence structure.
- Be conservative. If you are not confident a word is a misheard term, leave it unchanged.
- Preserve the original capitalisation style of the surrounding text where possible.
- Terms in the corrected text should match the canonical spelling from the list exactly.

Known terms:
%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "corrected_text": "<full corrected transcript>",
  "corrections": [
    {"original": "<original word>", "corrected": "<corrected word>", "confidence": <0.0-1.0>}
  ]
}

If no corrections are needed, return an empty corrections array and corrected_text equal to the input.`

// Correction captures a single word-level substitution produced by the LLM
// corrector. The pipeline maps these to transcript corrections with Method
// set to "llm".
type Correction struct {
	// Original is the word as it appeared in the input transcript.
	Original string

	// Corrected is the replacement term suggested by the LLM.
	Corrected string

	// Confidence is the LLM's reported confidence for this substitution (0.0-1.0).
	Confidence float64
}

// llmResponse is the expected JSON structure returned by the LLM.
type llmResponse struct {
	CorrectedText string `json:"corrected_text"`
	Corrections   []struct {
		Original   string  `json:"original"`
		Corrected  string  `json:"corrected"`
		Confidence float64 `json:"confidence"`
	} `json:"corrections"`
}

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic corrections. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(c *Corrector) {
		c.temperature = temp
	}
}

// Corrector uses an [llm.Provider] to correct vocabulary misspellings in
// transcript text. It is safe for concurrent use.
type Corrector struct {
	llm         llm.Provider
	temperature float64
}

// New returns a new [Corrector] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Corrector {
	c := &Corrector{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct sends text to the LLM with the vocabulary as context and asks it to
// fix misheard terms. The reply is verified against the actual token diff;
// undeclared changes are reverted.
//
// When the LLM response is unparseable, Correct returns the original text
// unchanged with a nil corrections slice and a nil error (graceful
// degradation; the pipeline must continue).
//
// Context cancellation and network errors are returned as non-nil errors.
func (c *Corrector) Correct(
	ctx context.Context,
	text string,
	vocabulary []string,
) (string, []Correction, error) {
	if len(vocabulary) == 0 {
		return text, nil, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(vocabulary),
		Temperature:  c.temperature,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: text},
		},
	}

	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		return text, nil, fmt.Errorf("llm corrector: complete: %w", err)
	}
	if resp == nil {
		return text, nil, nil
	}

	corrected, corrections, parseErr := parseResponse(resp.Content, text)
	if parseErr != nil {
		// Unparseable response: return original unchanged, no error.
		return text, nil, nil
	}

	verified, verifiedCorrections := verifyCorrectedText(text, corrected, corrections)
	return verified, verifiedCorrections, nil
}

// buildSystemPrompt formats the system prompt template with the vocabulary.
func buildSystemPrompt(vocabulary []string) string {
	var sb strings.Builder
	for _, term := range vocabulary {
		sb.WriteString("- ")
		sb.WriteString(term)
		sb.WriteByte('\n')
	}
	return fmt.Sprintf(systemPromptTemplate, sb.String())
}

// parseResponse attempts to unmarshal the LLM output into an [llmResponse].
// Code fences and surrounding prose are stripped before parsing.
func parseResponse(content, originalText string) (string, []Correction, error) {
	obj, err := llmjson.ExtractObject(content)
	if err != nil {
		return "", nil, fmt.Errorf("llm corrector: extract response: %w", err)
	}

	var r llmResponse
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return "", nil, fmt.Errorf("llm corrector: parse response: %w", err)
	}

	if r.CorrectedText == "" {
		return originalText, nil, nil
	}

	corrections := make([]Correction, 0, len(r.Corrections))
	for _, c := range r.Corrections {
		if c.Original == c.Corrected || c.Original == "" {
			continue
		}
		corrections = append(corrections, Correction{
			Original:   c.Original,
			Corrected:  c.Corrected,
			Confidence: c.Confidence,
		})
	}

	return r.CorrectedText, corrections, nil
}
