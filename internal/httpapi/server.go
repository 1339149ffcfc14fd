// Package httpapi exposes the Voxform pipeline over HTTP.
//
// The server wires the transcription service, the voice-command resolver, the
// summary extractor, speech synthesis, and report delivery behind a JSON API:
//
//	POST /v1/transcribe    base64 audio in, transcript out
//	POST /v1/voice-command transcript + screen context in, decision out
//	POST /v1/summarize     transcript in, structured record out
//	POST /v1/closeout      transcript in, closeout record out
//	POST /v1/report/email  rendered report out via email
//	POST /v1/speak         text in, synthesized audio out
//
// plus /healthz, /readyz, and a Prometheus /metrics endpoint. Client mistakes
// map to 400, upstream provider failures to 502; voice-command resolution
// never fails and always answers 200 with a well-formed decision.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxform/voxform/internal/command"
	"github.com/voxform/voxform/internal/health"
	"github.com/voxform/voxform/internal/observe"
	"github.com/voxform/voxform/internal/screen"
	"github.com/voxform/voxform/internal/summary"
	"github.com/voxform/voxform/internal/transcribe"
	"github.com/voxform/voxform/internal/transcript"
	"github.com/voxform/voxform/pkg/provider/tts"
)

// Transcriber turns base64 audio payloads into transcripts.
// Implemented by [transcribe.Service].
type Transcriber interface {
	FromBase64(ctx context.Context, payload, format, language string) (*transcribe.Transcript, error)
}

// CommandResolver resolves one spoken command against a screen snapshot.
// Implemented by [command.Resolver].
type CommandResolver interface {
	Resolve(ctx context.Context, transcript string, sc *screen.Context) *command.Decision
}

// SummaryExtractor builds structured records from narration transcripts.
// Implemented by [summary.Extractor].
type SummaryExtractor interface {
	Extract(ctx context.Context, transcript string) (*summary.Record, bool)
	ExtractCloseout(ctx context.Context, transcript string) (*summary.CloseoutRecord, bool)
	EnhanceCloseout(ctx context.Context, rec *summary.CloseoutRecord, additionalContext string) (*summary.CloseoutRecord, bool)
}

// Mailer delivers rendered reports. Implemented by [report.Mailer].
type Mailer interface {
	Send(ctx context.Context, recipients []string, subject, textBody, htmlBody string) error
}

// Server holds the wired pipeline services behind the HTTP handlers.
//
// Optional dependencies may be nil: a nil Transcriber, Synthesizer, or Mailer
// disables the corresponding endpoint with a 503 response instead of failing
// at startup, so a deployment without (say) an email key still serves voice
// commands.
type Server struct {
	transcriber Transcriber
	resolver    CommandResolver
	extractor   SummaryExtractor
	synthesizer tts.Provider
	mailer      Mailer
	corrector   transcript.Pipeline

	recipients     []string
	allowedOrigins []string
	logger         *slog.Logger
	metrics        *observe.Metrics
	health         *health.Handler
}

// Option is a functional option for Server.
type Option func(*Server)

// WithTranscriber enables the /v1/transcribe endpoint.
func WithTranscriber(t Transcriber) Option {
	return func(s *Server) { s.transcriber = t }
}

// WithCorrector enables vocabulary-aware transcript correction on
// /v1/transcribe. Requests that carry a vocabulary list get their transcript
// run through the pipeline before the response is built.
func WithCorrector(p transcript.Pipeline) Option {
	return func(s *Server) { s.corrector = p }
}

// WithSynthesizer enables the /v1/speak endpoint.
func WithSynthesizer(p tts.Provider) Option {
	return func(s *Server) { s.synthesizer = p }
}

// WithMailer enables the /v1/report/email endpoint. recipients is the default
// recipient list used when a request does not name its own.
func WithMailer(m Mailer, recipients []string) Option {
	return func(s *Server) {
		s.mailer = m
		s.recipients = recipients
	}
}

// WithAllowedOrigins configures the CORS middleware. Empty means same-origin
// only; "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth sets the health handler serving /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// New constructs a Server. The resolver and extractor are mandatory; every
// other dependency is optional and supplied through options.
func New(resolver CommandResolver, extractor SummaryExtractor, opts ...Option) (*Server, error) {
	if resolver == nil {
		return nil, errors.New("httpapi: resolver must not be nil")
	}
	if extractor == nil {
		return nil, errors.New("httpapi: extractor must not be nil")
	}
	s := &Server{
		resolver:  resolver,
		extractor: extractor,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}
	return s, nil
}

// Handler returns the fully assembled HTTP handler: all routes behind the
// CORS and observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /v1/voice-command", s.handleVoiceCommand)
	mux.HandleFunc("POST /v1/summarize", s.handleSummarize)
	mux.HandleFunc("POST /v1/closeout", s.handleCloseout)
	mux.HandleFunc("POST /v1/report/email", s.handleReportEmail)
	mux.HandleFunc("POST /v1/speak", s.handleSpeak)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = observe.Middleware(s.metrics)(h)
	h = corsMiddleware(s.allowedOrigins)(h)
	return h
}
