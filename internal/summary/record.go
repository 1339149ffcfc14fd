// Package summary extracts structured report records from free-form spoken
// narration.
//
// Two record shapes are supported: the generic five-field [Record] for simple
// report forms, and the full [CloseoutRecord] matching the service closeout
// sheet. Extraction never fails outright; when the model's reply cannot be
// parsed, the extractor returns a fallback record that preserves the raw
// transcript and flags the result for manual review.
package summary

// Record is the generic structured summary of a spoken field report.
type Record struct {
	// TaskDescription summarises what the job was.
	TaskDescription string `json:"taskDescription"`

	// Location is where the work happened.
	Location string `json:"location"`

	// Datetime is when the work happened, as spoken or inferred.
	Datetime string `json:"datetime"`

	// Outcome states how the job ended.
	Outcome string `json:"outcome"`

	// Notes carries anything that fits no other field.
	Notes string `json:"notes"`
}

// CloseoutRecord is the structured form of a service closeout narration. Every
// field is a free-text string; empty means the technician did not mention it.
type CloseoutRecord struct {
	TechnicianName       string `json:"technicianName"`
	Location             string `json:"location"`
	Datetime             string `json:"datetime"`
	OnsiteContact        string `json:"onsiteContact"`
	SupportContact       string `json:"supportContact"`
	WorkCompleted        string `json:"workCompleted"`
	Delays               string `json:"delays"`
	TroubleshootingSteps string `json:"troubleshootingSteps"`
	ScopeCompleted       string `json:"scopeCompleted"`
	OutOfScopeWork       string `json:"outOfScopeWork"`
	MaterialsUsed        string `json:"materialsUsed"`
	Expenses             string `json:"expenses"`
	ReleasedBy           string `json:"releasedBy"`
	ReleaseCode          string `json:"releaseCode"`
	ReturnTracking       string `json:"returnTracking"`
	PhotosUploaded       string `json:"photosUploaded"`
}
