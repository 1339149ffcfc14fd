// Package transcribe validates incoming audio and turns it into transcripts.
//
// Clients upload recordings as base64 payloads. The [Service] decodes and
// validates the payload before any provider is contacted, so malformed input
// is rejected cheaply and with errors the HTTP layer can map to 400s via
// [ErrInvalidInput].
package transcribe

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/voxform/voxform/pkg/provider/stt"
)

// ErrInvalidInput wraps every client-caused validation failure: empty or
// undecodable payloads, unsupported formats, and oversized audio.
var ErrInvalidInput = errors.New("transcribe: invalid input")

// Default audio intake limits, overridable via service options.
const (
	DefaultMaxSizeMB = 25
)

// DefaultFormats lists the audio container formats accepted by default.
var DefaultFormats = []string{"m4a", "mp3", "wav", "webm", "ogg", "flac"}

// Transcript is the outcome of one transcription.
type Transcript struct {
	// Text is the recognised speech.
	Text string `json:"text"`

	// Format is the audio format the recording arrived in.
	Format string `json:"format"`

	// CapturedAt is when the transcription completed.
	CapturedAt time.Time `json:"capturedAt"`
}

// minMeaningfulLen mirrors the resolver's floor: shorter trimmed transcripts
// are treated as noise.
const minMeaningfulLen = 3

// Meaningful reports whether the transcript carries enough content to act on.
func (t *Transcript) Meaningful() bool {
	return len(strings.TrimSpace(t.Text)) >= minMeaningfulLen
}

// Service validates audio payloads and delegates recognition to an STT
// provider.
type Service struct {
	provider stt.Provider
	maxBytes int
	formats  map[string]struct{}
	now      func() time.Time
}

// ServiceOption is a functional option for Service.
type ServiceOption func(*Service)

// WithMaxSizeMB overrides the maximum accepted audio size.
func WithMaxSizeMB(mb int) ServiceOption {
	return func(s *Service) {
		if mb > 0 {
			s.maxBytes = mb << 20
		}
	}
}

// WithFormats replaces the accepted format list.
func WithFormats(formats []string) ServiceOption {
	return func(s *Service) {
		if len(formats) == 0 {
			return
		}
		s.formats = make(map[string]struct{}, len(formats))
		for _, f := range formats {
			s.formats[strings.ToLower(f)] = struct{}{}
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs a transcription Service.
func NewService(provider stt.Provider, opts ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, errors.New("transcribe: provider must not be nil")
	}
	s := &Service{
		provider: provider,
		maxBytes: DefaultMaxSizeMB << 20,
		now:      time.Now,
	}
	WithFormats(DefaultFormats)(s)
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// FromBase64 decodes, validates, and transcribes a base64 audio payload.
//
// Validation failures return errors wrapping [ErrInvalidInput] without ever
// contacting the provider. Provider failures are returned as-is so transport
// errors stay distinguishable from bad client input.
func (s *Service) FromBase64(ctx context.Context, payload, format, language string) (*Transcript, error) {
	format = strings.ToLower(strings.TrimSpace(format))

	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("%w: empty audio payload", ErrInvalidInput)
	}
	if _, ok := s.formats[format]; !ok {
		return nil, fmt.Errorf("%w: unsupported audio format %q (supported: %s)",
			ErrInvalidInput, format, strings.Join(s.supportedList(), ", "))
	}

	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: audio is not valid base64: %w", ErrInvalidInput, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: decoded audio is empty", ErrInvalidInput)
	}
	if len(audio) > s.maxBytes {
		return nil, fmt.Errorf("%w: audio is %.1f MB, limit is %d MB",
			ErrInvalidInput, float64(len(audio))/(1<<20), s.maxBytes>>20)
	}

	result, err := s.provider.Transcribe(ctx, stt.Request{
		Audio:    audio,
		Format:   format,
		Language: language,
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if result == nil {
		return nil, errors.New("transcribe: provider returned no result")
	}

	return &Transcript{
		Text:       result.Text,
		Format:     format,
		CapturedAt: s.now(),
	}, nil
}

func (s *Service) supportedList() []string {
	list := make([]string, 0, len(s.formats))
	for f := range s.formats {
		list = append(list, f)
	}
	sort.Strings(list)
	return list
}
