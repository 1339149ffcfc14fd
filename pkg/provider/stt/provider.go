// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., the OpenAI
// Whisper API) and exposes a uniform request/response interface. Field
// recordings arrive as complete audio files, so the interface is a single
// blocking Transcribe call rather than a streaming session: the caller stages
// the audio bytes, submits them, and receives the recognised text.
//
// Implementations must be safe for concurrent use; multiple transcriptions
// may be in flight simultaneously.
package stt

import "context"

// Request describes a single batch transcription job.
type Request struct {
	// Audio is the complete encoded audio file (not raw PCM). The provider
	// forwards it as-is; callers are responsible for size limits.
	Audio []byte

	// Format is the audio container/codec tag (e.g., "m4a", "wav", "mp3").
	// Used to hint the provider about the payload encoding.
	Format string

	// Language is the BCP-47 language tag for recognition (e.g., "en").
	// An empty string lets the provider auto-detect, if supported.
	Language string
}

// Result is the outcome of a successful transcription.
type Result struct {
	// Text is the recognised transcript.
	Text string
}

// Provider is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use. Transcribe must return as
// soon as possible after ctx is cancelled.
type Provider interface {
	// Transcribe submits the audio in req and blocks until the provider
	// returns a transcript or fails. Returns an error on provider failure,
	// unsupported payloads, or context cancellation.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
