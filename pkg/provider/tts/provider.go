// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider converts the resolver's spoken-response text into playable
// audio so clients can voice confirmations and clarification questions back
// to the user. Synthesis is a single blocking call; the caller receives the
// complete encoded audio.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Request describes a single synthesis job.
type Request struct {
	// Text is the content to speak.
	Text string

	// Voice is the provider-specific voice identifier. Empty selects the
	// provider default.
	Voice string
}

// Result is the outcome of a successful synthesis.
type Result struct {
	// Audio is the complete encoded audio.
	Audio []byte

	// MimeType describes the audio encoding (e.g., "audio/mpeg").
	MimeType string
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Synthesize must return as
// soon as possible after ctx is cancelled.
type Provider interface {
	// Synthesize converts req.Text to audio. Returns an error on provider
	// failure, empty input, or context cancellation.
	Synthesize(ctx context.Context, req Request) (*Result, error)
}
