// Package transcript defines the transcript correction pipeline used by
// Voxform to fix STT errors in job-specific vocabulary.
//
// Raw speech-to-text output is rarely perfect for field-service terms. Site
// names, part numbers, contact names, and form field labels are frequently
// misheard ("loh cayshun" for "location", "Eldridge Plaza" for "Aldrich
// Plaza"). The [Pipeline] applies a two-stage correction strategy:
//
//  1. Phonetic matching ([PhoneticMatcher]): fast, in-process alignment based
//     on pronunciation similarity. No network calls.
//
//  2. LLM-assisted correction: a language model resolves misspellings the
//     phonetic stage missed, constrained to the known vocabulary and verified
//     token-by-token so it cannot rewrite anything else.
//
// Each [Correction] records which method produced the substitution and its
// confidence, so callers can audit, display, or selectively roll back changes.
//
// Implementations of both interfaces must be safe for concurrent use.
package transcript

import "context"

// Correction captures a single word-level substitution made by the pipeline.
type Correction struct {
	// Original is the word as produced by the STT provider.
	Original string `json:"original"`

	// Corrected is the replacement selected by the pipeline.
	Corrected string `json:"corrected"`

	// Confidence is the pipeline's confidence in this substitution (0.0-1.0).
	Confidence float64 `json:"confidence"`

	// Method describes which correction stage produced this substitution.
	// Well-known values:
	//   "phonetic" produced by a [PhoneticMatcher].
	//   "llm"      produced by a language-model correction pass.
	Method string `json:"method"`
}

// CorrectedTranscript is the output of a [Pipeline.Correct] call.
type CorrectedTranscript struct {
	// Original is the raw transcript text as received from the STT provider.
	Original string `json:"original"`

	// Corrected is the full corrected transcript text with all substitutions
	// applied.
	Corrected string `json:"corrected"`

	// Corrections is the ordered list of word-level substitutions applied to
	// produce Corrected. An empty (non-nil) slice means no corrections were
	// necessary.
	Corrections []Correction `json:"corrections"`
}

// Pipeline applies multi-stage corrections to raw transcript text, resolving
// STT errors for job-specific vocabulary.
//
// Implementations must be safe for concurrent use.
type Pipeline interface {
	// Correct processes text using the provided vocabulary and returns a
	// [CorrectedTranscript] containing the corrected text and an itemised
	// record of every substitution made.
	//
	// vocabulary lists the canonical terms the pipeline should recognise:
	// field labels, site and contact names, release codes, and other terms
	// specific to the current job.
	//
	// Returns a non-nil *CorrectedTranscript on success. When no corrections
	// are needed, Corrected equals text and Corrections is an empty (non-nil)
	// slice.
	Correct(ctx context.Context, text string, vocabulary []string) (*CorrectedTranscript, error)
}

// PhoneticMatcher resolves a single word or phrase to a known vocabulary term
// based on pronunciation similarity. It is the first stage of the correction
// pipeline and must be fast enough for the interactive path: no network
// calls, no LLM round-trips.
//
// Implementations must be safe for concurrent use.
type PhoneticMatcher interface {
	// Match attempts to find the term from vocabulary that is most
	// phonetically similar to word.
	//
	// Return values:
	//   corrected  is the best-matching term from vocabulary.
	//   confidence is the similarity score in [0.0, 1.0], 1.0 being perfect.
	//   matched    is true when a sufficiently similar term was found.
	//
	// When matched is false, corrected must equal word unchanged and
	// confidence must be 0.
	Match(word string, vocabulary []string) (corrected string, confidence float64, matched bool)
}
