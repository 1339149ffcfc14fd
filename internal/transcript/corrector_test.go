package transcript_test

import (
	"context"
	"testing"

	"github.com/voxform/voxform/internal/transcript"
	"github.com/voxform/voxform/internal/transcript/llmcorrect"
	"github.com/voxform/voxform/internal/transcript/phonetic"
	"github.com/voxform/voxform/pkg/provider/llm"
	"github.com/voxform/voxform/pkg/provider/llm/mock"
)

// passthroughLLM returns a mock provider whose response declares no changes
// for the given text.
func passthroughLLM(text string) *mock.Provider {
	return &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "` + text + `", "corrections": []}`,
		},
	}
}

func TestPipeline_PhoneticStage(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(phonetic.New()),
	)

	vocab := []string{"Aldrich Plaza"}
	result, err := p.Correct(context.Background(), "aldridge plaza was serviced today", vocab)
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if result.Corrected != "Aldrich Plaza was serviced today" {
		t.Errorf("Corrected=%q, want %q", result.Corrected, "Aldrich Plaza was serviced today")
	}
	if len(result.Corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(result.Corrections))
	}
	c := result.Corrections[0]
	if c.Original != "aldridge plaza" {
		t.Errorf("Original=%q, want %q", c.Original, "aldridge plaza")
	}
	if c.Corrected != "Aldrich Plaza" {
		t.Errorf("Corrected=%q, want %q", c.Corrected, "Aldrich Plaza")
	}
	if c.Method != "phonetic" {
		t.Errorf("Method=%q, want %q", c.Method, "phonetic")
	}
	if c.Confidence < 0.7 {
		t.Errorf("Confidence=%f, want >= 0.7", c.Confidence)
	}
}

func TestPipeline_ExactHitEmitsCanonicalSpelling(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(phonetic.New()),
	)

	// Already-correct terms get canonical casing but no correction entry.
	result, err := p.Correct(context.Background(), "aldrich plaza was serviced", []string{"Aldrich Plaza"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if result.Corrected != "Aldrich Plaza was serviced" {
		t.Errorf("Corrected=%q, want %q", result.Corrected, "Aldrich Plaza was serviced")
	}
	if len(result.Corrections) != 0 {
		t.Errorf("got %d corrections, want 0 for exact hit", len(result.Corrections))
	}
}

func TestPipeline_LLMStage(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "send crew to Meridian now", "corrections": [{"original": "marid ian", "corrected": "Meridian", "confidence": 0.9}]}`,
		},
	}
	p := transcript.NewPipeline(
		transcript.WithLLMCorrector(llmcorrect.New(provider)),
	)

	result, err := p.Correct(context.Background(), "send crew to marid ian now", []string{"Meridian"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if result.Corrected != "send crew to Meridian now" {
		t.Errorf("Corrected=%q, want %q", result.Corrected, "send crew to Meridian now")
	}
	if len(result.Corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(result.Corrections))
	}
	if result.Corrections[0].Method != "llm" {
		t.Errorf("Method=%q, want %q", result.Corrections[0].Method, "llm")
	}
	if len(provider.CompleteCalls) != 1 {
		t.Errorf("got %d LLM calls, want 1", len(provider.CompleteCalls))
	}
}

func TestPipeline_BothStages(t *testing.T) {
	t.Parallel()

	// The phonetic stage fixes "aldridge plaza"; the LLM stage then fixes
	// "fair he toss", which sounds nothing like its vocabulary term.
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "Aldrich Plaza ticket for Veritas closed", "corrections": [{"original": "fair he toss", "corrected": "Veritas", "confidence": 0.8}]}`,
		},
	}
	p := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(phonetic.New()),
		transcript.WithLLMCorrector(llmcorrect.New(provider)),
	)

	vocab := []string{"Aldrich Plaza", "Veritas"}
	result, err := p.Correct(context.Background(), "aldridge plaza ticket for fair he toss closed", vocab)
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if result.Corrected != "Aldrich Plaza ticket for Veritas closed" {
		t.Errorf("Corrected=%q, want %q", result.Corrected, "Aldrich Plaza ticket for Veritas closed")
	}
	if len(result.Corrections) != 2 {
		t.Fatalf("got %d corrections, want 2: %+v", len(result.Corrections), result.Corrections)
	}
	if result.Corrections[0].Method != "phonetic" {
		t.Errorf("Corrections[0].Method=%q, want %q", result.Corrections[0].Method, "phonetic")
	}
	if result.Corrections[1].Method != "llm" {
		t.Errorf("Corrections[1].Method=%q, want %q", result.Corrections[1].Method, "llm")
	}

	// The LLM must receive the phonetic-corrected text, not the raw input.
	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("got %d LLM calls, want 1", len(provider.CompleteCalls))
	}
	userMsg := provider.CompleteCalls[0].Req.Messages[0].Content
	if userMsg != "Aldrich Plaza ticket for fair he toss closed" {
		t.Errorf("LLM input=%q, want phonetic-corrected text", userMsg)
	}
}

func TestPipeline_EmptyVocabularySkipsStages(t *testing.T) {
	t.Parallel()

	provider := passthroughLLM("whatever")
	p := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(phonetic.New()),
		transcript.WithLLMCorrector(llmcorrect.New(provider)),
	)

	text := "no vocabulary for this job"
	result, err := p.Correct(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if result.Corrected != text {
		t.Errorf("Corrected=%q, want unchanged %q", result.Corrected, text)
	}
	if len(result.Corrections) != 0 {
		t.Errorf("got %d corrections, want 0", len(result.Corrections))
	}
	if len(provider.CompleteCalls) != 0 {
		t.Errorf("got %d LLM calls, want 0 with empty vocabulary", len(provider.CompleteCalls))
	}
}

func TestPipeline_NoStagesPassthrough(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline()

	text := "marid ian is offline"
	result, err := p.Correct(context.Background(), text, []string{"Meridian"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if result.Corrected != text {
		t.Errorf("Corrected=%q, want unchanged %q", result.Corrected, text)
	}
	if len(result.Corrections) != 0 {
		t.Errorf("got %d corrections, want 0", len(result.Corrections))
	}
}

func TestPipeline_LLMErrorPropagates(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{CompleteErr: context.DeadlineExceeded}
	p := transcript.NewPipeline(
		transcript.WithLLMCorrector(llmcorrect.New(provider)),
	)

	_, err := p.Correct(context.Background(), "some text", []string{"Meridian"})
	if err == nil {
		t.Fatal("expected error from LLM stage, got nil")
	}
}

func TestPipeline_OriginalPreserved(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(phonetic.New()),
	)

	text := "aldridge plaza inspection done"
	result, err := p.Correct(context.Background(), text, []string{"Aldrich Plaza"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if result.Original != text {
		t.Errorf("Original=%q, want %q", result.Original, text)
	}
	if result.Corrected == result.Original {
		t.Error("Corrected should differ from Original after a phonetic fix")
	}
}
