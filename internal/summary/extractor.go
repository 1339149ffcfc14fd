package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/voxform/voxform/internal/llmjson"
	"github.com/voxform/voxform/pkg/provider/llm"
)

// fallbackTranscriptLen caps how much raw transcript is preserved in a
// fallback record.
const fallbackTranscriptLen = 200

const (
	fallbackOutcome = "Could not be determined automatically - please review"
	fallbackNotes   = "Automatic extraction failed; the summary was built from the raw transcript."
)

const extractSystemPrompt = `You extract structured data from a field technician's spoken report. ` +
	`Respond with ONLY a JSON object. Use an empty string for anything the technician did not mention. ` +
	`Never invent details that are not in the transcript.`

const recordSchema = `{
  "taskDescription": "what the job was",
  "location": "where the work happened",
  "datetime": "when the work happened",
  "outcome": "how the job ended",
  "notes": "anything else worth recording"
}`

const closeoutSchema = `{
  "technicianName": "who performed the work",
  "location": "the service location",
  "datetime": "date and time of the visit",
  "onsiteContact": "who was on site",
  "supportContact": "remote or phone support contact",
  "workCompleted": "what was done",
  "delays": "any delays and their causes",
  "troubleshootingSteps": "diagnostic steps taken",
  "scopeCompleted": "whether the planned scope was completed",
  "outOfScopeWork": "extra work outside the planned scope",
  "materialsUsed": "parts and materials used",
  "expenses": "expenses incurred",
  "releasedBy": "who released the technician",
  "releaseCode": "the release or closure code",
  "returnTracking": "tracking numbers for returned parts",
  "photosUploaded": "whether photos were uploaded"
}`

// Extractor turns narration transcripts into structured records.
type Extractor struct {
	provider    llm.Provider
	logger      *slog.Logger
	temperature float64
	maxTokens   int
}

// ExtractorOption is a functional option for Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = l
	}
}

// WithTemperature sets the sampling temperature. Defaults to 0.1.
func WithTemperature(t float64) ExtractorOption {
	return func(e *Extractor) {
		e.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ExtractorOption {
	return func(e *Extractor) {
		e.maxTokens = n
	}
}

// NewExtractor constructs an Extractor backed by the given provider.
func NewExtractor(provider llm.Provider, opts ...ExtractorOption) (*Extractor, error) {
	if provider == nil {
		return nil, errors.New("summary: provider must not be nil")
	}
	e := &Extractor{
		provider:    provider,
		logger:      slog.Default(),
		temperature: 0.1,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Extract builds a generic five-field Record from the transcript. A provider
// failure or unparseable reply yields a fallback record, never an error; the
// returned bool reports whether extraction actually succeeded.
func (e *Extractor) Extract(ctx context.Context, transcript string) (*Record, bool) {
	user := fmt.Sprintf("Transcript:\n%q\n\nFill this JSON object from the transcript:\n%s", transcript, recordSchema)

	var rec Record
	if !e.complete(ctx, user, &rec) {
		return fallbackRecord(transcript), false
	}
	return &rec, true
}

// ExtractCloseout builds a full CloseoutRecord from the transcript, with the
// same degradation contract as Extract.
func (e *Extractor) ExtractCloseout(ctx context.Context, transcript string) (*CloseoutRecord, bool) {
	user := fmt.Sprintf("Transcript:\n%q\n\nFill this JSON object from the transcript:\n%s", transcript, closeoutSchema)

	var rec CloseoutRecord
	if !e.complete(ctx, user, &rec) {
		return fallbackCloseout(transcript), false
	}
	return &rec, true
}

// EnhanceCloseout merges additional spoken context into an existing closeout
// record: the technician reviews the draft, says what is missing or wrong,
// and the record is updated in place. An empty additionalContext short-circuits
// and returns rec unchanged. On any failure the input record is returned
// unchanged.
func (e *Extractor) EnhanceCloseout(ctx context.Context, rec *CloseoutRecord, additionalContext string) (*CloseoutRecord, bool) {
	if strings.TrimSpace(additionalContext) == "" {
		return rec, false
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return rec, false
	}
	user := fmt.Sprintf(
		"Here is the closeout record so far:\n%s\n\n"+
			"The technician added:\n%q\n\n"+
			"Merge the new information into the record. Update fields the technician corrected, "+
			"append to fields they expanded on, and leave everything else exactly as it is. "+
			"Respond with the full record using the exact same JSON keys.", raw, additionalContext)

	var enhanced CloseoutRecord
	if !e.complete(ctx, user, &enhanced) {
		return rec, false
	}
	return &enhanced, true
}

// complete runs one structured-output completion and unmarshals the reply
// into out. Returns false on any failure, logging the cause.
func (e *Extractor) complete(ctx context.Context, user string, out any) bool {
	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: extractSystemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: user}},
		Temperature:  e.temperature,
		MaxTokens:    e.maxTokens,
	})
	if err != nil || resp == nil {
		e.logger.ErrorContext(ctx, "summary extraction failed", "error", err)
		return false
	}

	obj, err := llmjson.ExtractObject(resp.Content)
	if err != nil {
		e.logger.WarnContext(ctx, "summary reply contains no JSON object", "error", err)
		return false
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		e.logger.WarnContext(ctx, "summary reply does not match schema", "error", err)
		return false
	}
	return true
}

// fallbackRecord preserves the transcript in a reviewable shape when
// extraction fails.
func fallbackRecord(transcript string) *Record {
	return &Record{
		TaskDescription: truncate(transcript, fallbackTranscriptLen),
		Outcome:         fallbackOutcome,
		Notes:           fallbackNotes,
	}
}

func fallbackCloseout(transcript string) *CloseoutRecord {
	return &CloseoutRecord{
		WorkCompleted:  truncate(transcript, fallbackTranscriptLen),
		ScopeCompleted: fallbackOutcome,
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so a multi-byte character is never split.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
