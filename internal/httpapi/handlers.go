package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/voxform/voxform/internal/report"
	"github.com/voxform/voxform/internal/screen"
	"github.com/voxform/voxform/internal/summary"
	"github.com/voxform/voxform/internal/transcribe"
	"github.com/voxform/voxform/internal/transcript"
	"github.com/voxform/voxform/pkg/provider/tts"
)

// maxBodyBytes caps request bodies. Base64 audio inflates the raw payload by
// a third, so this sits above the transcription service's own size cap.
const maxBodyBytes = 64 << 20

// errorResponse is the JSON body for all non-2xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type transcribeRequest struct {
	Audio    string `json:"audio"`
	Format   string `json:"format"`
	Language string `json:"language,omitempty"`

	// Vocabulary lists job-specific terms (site names, part numbers, field
	// labels) the correction pipeline should align the transcript against.
	Vocabulary []string `json:"vocabulary,omitempty"`
}

type transcribeResponse struct {
	Text       string    `json:"text"`
	Format     string    `json:"format"`
	CapturedAt time.Time `json:"capturedAt"`
	Meaningful bool      `json:"meaningful"`

	// CorrectedText and Corrections are present only when a correction
	// pipeline is configured and the request supplied a vocabulary.
	CorrectedText string                  `json:"correctedText,omitempty"`
	Corrections   []transcript.Correction `json:"corrections,omitempty"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "transcription is not configured")
		return
	}

	var req transcribeRequest
	if !s.decode(w, r, &req) {
		return
	}

	start := time.Now()
	t, err := s.transcriber.FromBase64(r.Context(), req.Audio, req.Format, req.Language)
	s.metrics.STTDuration.Record(r.Context(), time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, transcribe.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "transcription failed", "error", err)
		s.metrics.RecordProviderError(r.Context(), "stt", "transcribe")
		writeError(w, http.StatusBadGateway, "transcription provider failed")
		return
	}

	resp := transcribeResponse{
		Text:       t.Text,
		Format:     t.Format,
		CapturedAt: t.CapturedAt,
		Meaningful: t.Meaningful(),
	}

	if s.corrector != nil && len(req.Vocabulary) > 0 && resp.Meaningful {
		corrected, corrErr := s.corrector.Correct(r.Context(), t.Text, req.Vocabulary)
		if corrErr != nil {
			// Correction is best effort; the raw transcript still goes out.
			s.logger.WarnContext(r.Context(), "transcript correction failed", "error", corrErr)
		} else {
			resp.CorrectedText = corrected.Corrected
			resp.Corrections = corrected.Corrections
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type voiceCommandRequest struct {
	Transcript    string          `json:"transcript"`
	ScreenContext *screen.Context `json:"screenContext"`
}

// handleVoiceCommand resolves one spoken command. The resolver degrades every
// failure into a clarification decision, so this endpoint answers 200 for any
// well-formed request body.
func (s *Server) handleVoiceCommand(w http.ResponseWriter, r *http.Request) {
	var req voiceCommandRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ScreenContext != nil {
		if err := req.ScreenContext.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid screen context: %v", err))
			return
		}
	}

	start := time.Now()
	d := s.resolver.Resolve(r.Context(), req.Transcript, req.ScreenContext)
	s.metrics.ResolveDuration.Record(r.Context(), time.Since(start).Seconds())
	s.metrics.RecordDecision(r.Context(), string(d.Action))

	writeJSON(w, http.StatusOK, d)
}

type summarizeRequest struct {
	Transcript string `json:"transcript"`
}

type summarizeResponse struct {
	Record *summary.Record `json:"record"`

	// Extracted is false when the record is a degraded fallback built from
	// the raw transcript rather than a real extraction.
	Extracted bool `json:"extracted"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript must not be empty")
		return
	}

	start := time.Now()
	rec, ok := s.extractor.Extract(r.Context(), req.Transcript)
	s.metrics.ExtractDuration.Record(r.Context(), time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, summarizeResponse{Record: rec, Extracted: ok})
}

type closeoutRequest struct {
	Transcript string `json:"transcript"`

	// AdditionalContext carries a follow-up utterance spoken after reviewing
	// the draft record. When present, a second pass merges it into the record.
	AdditionalContext string `json:"additionalContext,omitempty"`
}

type closeoutResponse struct {
	Record    *summary.CloseoutRecord `json:"record"`
	Extracted bool                    `json:"extracted"`
	Enhanced  bool                    `json:"enhanced,omitempty"`
}

func (s *Server) handleCloseout(w http.ResponseWriter, r *http.Request) {
	var req closeoutRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript must not be empty")
		return
	}

	start := time.Now()
	rec, ok := s.extractor.ExtractCloseout(r.Context(), req.Transcript)

	enhanced := false
	if ok && req.AdditionalContext != "" {
		rec, enhanced = s.extractor.EnhanceCloseout(r.Context(), rec, req.AdditionalContext)
	}
	s.metrics.ExtractDuration.Record(r.Context(), time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, closeoutResponse{Record: rec, Extracted: ok, Enhanced: enhanced})
}

type reportEmailRequest struct {
	// Exactly one of Closeout and Record must be set.
	Closeout *summary.CloseoutRecord `json:"closeout,omitempty"`
	Record   *summary.Record         `json:"record,omitempty"`

	Subject    string   `json:"subject,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
}

type reportEmailResponse struct {
	Status     string `json:"status"`
	Recipients int    `json:"recipients"`
}

func (s *Server) handleReportEmail(w http.ResponseWriter, r *http.Request) {
	if s.mailer == nil {
		writeError(w, http.StatusServiceUnavailable, "email delivery is not configured")
		return
	}

	var req reportEmailRequest
	if !s.decode(w, r, &req) {
		return
	}
	if (req.Closeout == nil) == (req.Record == nil) {
		writeError(w, http.StatusBadRequest, "exactly one of closeout and record must be set")
		return
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		recipients = s.recipients
	}
	if len(recipients) == 0 {
		writeError(w, http.StatusBadRequest, "no recipients given and no defaults configured")
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "Field Service Report"
	}

	var textBody, htmlBody string
	if req.Closeout != nil {
		textBody = report.RenderCloseoutText(subject, req.Closeout)
		htmlBody = report.RenderCloseoutHTML(subject, req.Closeout)
	} else {
		textBody = report.RenderText(subject, req.Record)
		htmlBody = report.RenderHTML(subject, req.Record)
	}

	if err := s.mailer.Send(r.Context(), recipients, subject, textBody, htmlBody); err != nil {
		s.logger.ErrorContext(r.Context(), "report delivery failed", "error", err, "recipients", len(recipients))
		writeError(w, http.StatusBadGateway, "report delivery failed")
		return
	}
	s.metrics.ReportsSent.Add(r.Context(), 1)

	writeJSON(w, http.StatusOK, reportEmailResponse{Status: "sent", Recipients: len(recipients)})
}

type speakRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// handleSpeak synthesizes speech and streams the raw audio back, with the
// encoding in the Content-Type header.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.synthesizer == nil {
		writeError(w, http.StatusServiceUnavailable, "speech synthesis is not configured")
		return
	}

	var req speakRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}

	start := time.Now()
	res, err := s.synthesizer.Synthesize(r.Context(), tts.Request{Text: req.Text, Voice: req.Voice})
	s.metrics.TTSDuration.Record(r.Context(), time.Since(start).Seconds())

	if err != nil || res == nil || len(res.Audio) == 0 {
		s.logger.ErrorContext(r.Context(), "speech synthesis failed", "error", err)
		s.metrics.RecordProviderError(r.Context(), "tts", "synthesize")
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	mime := res.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Audio); err != nil {
		s.logger.WarnContext(r.Context(), "failed to write audio response", "error", err)
	}
}

// decode reads and unmarshals the request body into v, answering 400 on
// failure. Returns false when the response has already been written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// The status line is already written; an encode failure here can only be
	// a broken connection, which the caller cannot act on.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
