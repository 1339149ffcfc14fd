package report_test

import (
	"strings"
	"testing"

	"github.com/voxform/voxform/internal/report"
	"github.com/voxform/voxform/internal/summary"
)

func TestRenderText(t *testing.T) {
	t.Parallel()

	rec := &summary.Record{
		TaskDescription: "Replaced the router",
		Location:        "Downtown Office",
		Outcome:         "Completed",
	}

	out := report.RenderText("Field Report", rec)

	if !strings.HasPrefix(out, "Field Report\n============\n") {
		t.Errorf("missing underlined title:\n%s", out)
	}
	if !strings.Contains(out, "Task Description:\n  Replaced the router") {
		t.Errorf("missing task description:\n%s", out)
	}
	if !strings.Contains(out, "Date & Time:\n  Not provided") {
		t.Errorf("empty field not rendered as placeholder:\n%s", out)
	}

	// Field order is fixed.
	if strings.Index(out, "Task Description") > strings.Index(out, "Location") {
		t.Error("sections out of order")
	}
}

func TestRenderText_Deterministic(t *testing.T) {
	t.Parallel()

	rec := &summary.Record{TaskDescription: "x"}
	if report.RenderText("R", rec) != report.RenderText("R", rec) {
		t.Error("RenderText is not deterministic")
	}
}

func TestRenderCloseoutText(t *testing.T) {
	t.Parallel()

	rec := &summary.CloseoutRecord{
		TechnicianName: "Sam Ortiz",
		WorkCompleted:  "Replaced switch",
		ReleaseCode:    "RC-482",
	}

	out := report.RenderCloseoutText("Closeout Report", rec)

	for _, want := range []string{
		"Technician:\n  Sam Ortiz",
		"Work Completed:\n  Replaced switch",
		"Release Code:\n  RC-482",
		"Return Tracking:\n  Not provided",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderHTML_Escapes(t *testing.T) {
	t.Parallel()

	rec := &summary.Record{
		TaskDescription: `Replaced <router> & "cabling"`,
	}

	out := report.RenderHTML("Report <v1>", rec)

	if strings.Contains(out, "<router>") {
		t.Error("field value was not HTML-escaped")
	}
	if !strings.Contains(out, "Replaced &lt;router&gt; &amp; &#34;cabling&#34;") {
		t.Errorf("escaped value missing:\n%s", out)
	}
	if !strings.Contains(out, "<h1>Report &lt;v1&gt;</h1>") {
		t.Errorf("title not escaped:\n%s", out)
	}
}

func TestRenderCloseoutHTML_AllSectionsPresent(t *testing.T) {
	t.Parallel()

	out := report.RenderCloseoutHTML("Closeout", &summary.CloseoutRecord{})
	if got := strings.Count(out, "<h3>"); got != 16 {
		t.Errorf("rendered %d sections, want 16", got)
	}
	if got := strings.Count(out, "Not provided"); got != 16 {
		t.Errorf("placeholder count = %d, want 16", got)
	}
}
