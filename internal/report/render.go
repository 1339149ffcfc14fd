// Package report renders structured summary records into shareable report
// documents and delivers them by email.
package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/voxform/voxform/internal/summary"
)

// notProvided is the placeholder for fields the technician never mentioned.
const notProvided = "Not provided"

// section pairs a display heading with a record value. Rendering walks
// sections in a fixed order so two renders of the same record are identical.
type section struct {
	heading string
	value   string
}

func recordSections(rec *summary.Record) []section {
	return []section{
		{"Task Description", rec.TaskDescription},
		{"Location", rec.Location},
		{"Date & Time", rec.Datetime},
		{"Outcome", rec.Outcome},
		{"Notes", rec.Notes},
	}
}

func closeoutSections(rec *summary.CloseoutRecord) []section {
	return []section{
		{"Technician", rec.TechnicianName},
		{"Location", rec.Location},
		{"Date & Time", rec.Datetime},
		{"Onsite Contact", rec.OnsiteContact},
		{"Support Contact", rec.SupportContact},
		{"Work Completed", rec.WorkCompleted},
		{"Delays", rec.Delays},
		{"Troubleshooting Steps", rec.TroubleshootingSteps},
		{"Scope Completed", rec.ScopeCompleted},
		{"Out-of-Scope Work", rec.OutOfScopeWork},
		{"Materials Used", rec.MaterialsUsed},
		{"Expenses", rec.Expenses},
		{"Released By", rec.ReleasedBy},
		{"Release Code", rec.ReleaseCode},
		{"Return Tracking", rec.ReturnTracking},
		{"Photos Uploaded", rec.PhotosUploaded},
	}
}

// RenderText renders a generic summary record as a plain-text report.
func RenderText(title string, rec *summary.Record) string {
	return renderText(title, recordSections(rec))
}

// RenderCloseoutText renders a closeout record as a plain-text report.
func RenderCloseoutText(title string, rec *summary.CloseoutRecord) string {
	return renderText(title, closeoutSections(rec))
}

// RenderHTML renders a generic summary record as a minimal HTML document
// suitable for an email body.
func RenderHTML(title string, rec *summary.Record) string {
	return renderHTML(title, recordSections(rec))
}

// RenderCloseoutHTML renders a closeout record as a minimal HTML document.
func RenderCloseoutHTML(title string, rec *summary.CloseoutRecord) string {
	return renderHTML(title, closeoutSections(rec))
}

func renderText(title string, sections []section) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("=", len(title)))
	b.WriteString("\n\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "%s:\n  %s\n\n", s.heading, orPlaceholder(s.value))
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderHTML(title string, sections []section) string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	for _, s := range sections {
		fmt.Fprintf(&b, "<h3>%s</h3>\n<p>%s</p>\n",
			html.EscapeString(s.heading), html.EscapeString(orPlaceholder(s.value)))
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

func orPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return notProvided
	}
	return v
}
