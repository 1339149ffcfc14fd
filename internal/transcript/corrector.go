package transcript

import (
	"context"
	"strings"

	"github.com/voxform/voxform/internal/transcript/llmcorrect"
)

// PipelineOption is a functional option for configuring a [CorrectionPipeline].
type PipelineOption func(*CorrectionPipeline)

// WithPhoneticMatcher attaches a [PhoneticMatcher] as the first correction
// stage. When nil (the default), the phonetic stage is skipped entirely.
func WithPhoneticMatcher(m PhoneticMatcher) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.phonetic = m
	}
}

// WithLLMCorrector attaches an [llmcorrect.Corrector] as the second correction
// stage. When nil (the default), the LLM stage is skipped entirely.
func WithLLMCorrector(c *llmcorrect.Corrector) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.llmCorrector = c
	}
}

// CorrectionPipeline is the two-stage transcript correction implementation of
// [Pipeline]. Stages are optional and are applied in order:
//
//  1. [PhoneticMatcher]: fast, in-process phonetic vocabulary alignment.
//  2. [llmcorrect.Corrector]: LLM-assisted correction for what the phonetic
//     stage missed.
//
// CorrectionPipeline is safe for concurrent use.
type CorrectionPipeline struct {
	phonetic     PhoneticMatcher
	llmCorrector *llmcorrect.Corrector
}

var _ Pipeline = (*CorrectionPipeline)(nil)

// NewPipeline constructs a [CorrectionPipeline] with the supplied options.
// By default both stages are disabled (nil); use [WithPhoneticMatcher] and
// [WithLLMCorrector] to activate them.
func NewPipeline(opts ...PipelineOption) *CorrectionPipeline {
	p := &CorrectionPipeline{}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Correct applies the configured correction stages to text.
//
// Pipeline flow:
//  1. The text is tokenised into whitespace-separated word tokens.
//  2. When a [PhoneticMatcher] is configured, every token is tested against
//     the vocabulary. N-gram windows (up to the longest vocabulary term) are
//     tested as well so multi-word terms like "Aldrich Plaza" can be matched.
//  3. When an [llmcorrect.Corrector] is configured, the phonetic-corrected
//     text is passed to the model for a second, verified pass.
//
// Context cancellation is respected: if ctx is done before the LLM stage
// completes, an error is returned.
func (p *CorrectionPipeline) Correct(
	ctx context.Context,
	text string,
	vocabulary []string,
) (*CorrectedTranscript, error) {
	result := &CorrectedTranscript{
		Original:    text,
		Corrected:   text,
		Corrections: []Correction{},
	}
	if len(vocabulary) == 0 {
		return result, nil
	}

	working := text

	if p.phonetic != nil {
		corrected, corrections := p.applyPhonetic(text, vocabulary)
		working = corrected
		result.Corrections = append(result.Corrections, corrections...)
	}

	if p.llmCorrector != nil {
		corrected, rawCorrections, err := p.llmCorrector.Correct(ctx, working, vocabulary)
		if err != nil {
			return nil, err
		}
		working = corrected
		for _, rc := range rawCorrections {
			result.Corrections = append(result.Corrections, Correction{
				Original:   rc.Original,
				Corrected:  rc.Corrected,
				Confidence: rc.Confidence,
				Method:     "llm",
			})
		}
	}

	result.Corrected = working
	return result, nil
}

// applyPhonetic runs the phonetic matching stage over the text. It returns
// the corrected text and the list of corrections applied.
//
// At each token position, n-gram windows from the longest vocabulary term
// down to a single token are tried; the longest match wins so multi-word
// terms take precedence over partial single-word matches.
func (p *CorrectionPipeline) applyPhonetic(
	text string,
	vocabulary []string,
) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	maxTermWords := maxWordCount(vocabulary)

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := maxTermWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			term, conf, ok := p.phonetic.Match(window, vocabulary)
			if !ok {
				continue
			}
			// An exact (case-insensitive) hit needs no correction; emit the
			// canonical spelling and move on without recording anything.
			if strings.EqualFold(window, term) {
				output = append(output, strings.Fields(term)...)
				i += n
				matched = true
				break
			}

			output = append(output, strings.Fields(term)...)
			corrections = append(corrections, Correction{
				Original:   window,
				Corrected:  term,
				Confidence: conf,
				Method:     "phonetic",
			})
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any vocabulary term. Returns 1 when vocabulary is empty.
func maxWordCount(vocabulary []string) int {
	max := 1
	for _, term := range vocabulary {
		if n := len(strings.Fields(term)); n > max {
			max = n
		}
	}
	return max
}
