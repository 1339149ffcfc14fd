// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to verify that the transcription service sends
// correct Requests and to feed controlled transcripts without a live speech
// backend.
package mock

import (
	"context"
	"sync"

	"github.com/voxform/voxform/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the Request passed to Transcribe.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
// Zero values for response fields cause Transcribe to return zero values and
// nil errors. Set TranscribeErr to inject errors.
type Provider struct {
	mu sync.Mutex

	// TranscribeResult is returned by Transcribe. May be nil (returns nil, nil).
	TranscribeResult *stt.Result

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns TranscribeResult, TranscribeErr.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	audio := make([]byte, len(req.Audio))
	copy(audio, req.Audio)
	req.Audio = audio
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	return p.TranscribeResult, p.TranscribeErr
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
