// Package screen models the client UI surface that grounds voice-command
// interpretation: which form is on screen, which fields it shows, what they
// currently contain, and which actions the user may trigger.
//
// A [Context] is a request-scoped snapshot supplied by the client with every
// voice command. It is never persisted and never mutated by the server; the
// resolver only reads it to decide what the utterance refers to.
package screen

import (
	"errors"
	"fmt"
)

// Mode describes how the surface currently presents its fields.
type Mode string

const (
	// ModeEdit means fields accept changes.
	ModeEdit Mode = "edit"

	// ModePreview means the surface is read-only; field updates must not be
	// attempted until the user switches to edit mode.
	ModePreview Mode = "preview"

	// ModeOther covers surfaces with no edit/preview distinction.
	ModeOther Mode = "other"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeEdit, ModePreview, ModeOther:
		return true
	}
	return false
}

// FieldKind tags fields that get special enrichment treatment.
type FieldKind string

const (
	// KindText is the default free-text field kind.
	KindText FieldKind = ""

	// KindDateTime marks date/time fields. An update with no supplied value
	// is filled with the current timestamp.
	KindDateTime FieldKind = "datetime"
)

// FieldDescriptor describes one visible form field.
type FieldDescriptor struct {
	// Name is the canonical field key, unique within a Context.
	Name string `json:"name"`

	// Label is the human-readable display string shown in the UI and used in
	// spoken confirmations.
	Label string `json:"label"`

	// Value is the field's current content. May be empty.
	Value string `json:"currentValue"`

	// Editable reports whether the field accepts updates on this surface.
	Editable bool `json:"isEditable"`

	// Synonyms lists alternate spoken names for this field ("place", "where"
	// for a location field). Sets may overlap between fields; overlap is
	// surfaced as ambiguity at resolution time, never silently picked.
	Synonyms []string `json:"synonyms,omitempty"`

	// Kind tags the field for enrichment. Empty means plain text.
	Kind FieldKind `json:"kind,omitempty"`
}

// Context is a snapshot of the active UI surface.
type Context struct {
	// Name identifies the screen (e.g., "closeout", "report_form").
	Name string `json:"screenName"`

	// Mode is the surface's current presentation mode.
	Mode Mode `json:"mode"`

	// Fields lists the visible fields in display order.
	Fields []FieldDescriptor `json:"visibleFields"`

	// Actions lists the action identifiers the user may trigger on this
	// screen (e.g., "generate_pdf", "send_email").
	Actions []string `json:"availableActions"`
}

// Validate checks the Context invariants: a non-empty screen name, a valid
// mode, and unique field names. It returns a joined error listing all
// violations found.
func (c *Context) Validate() error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, errors.New("screen: screenName is required"))
	}
	if c.Mode != "" && !c.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("screen: mode %q is invalid; valid values: edit, preview, other", c.Mode))
	}

	seen := make(map[string]int, len(c.Fields))
	for i, f := range c.Fields {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("screen: visibleFields[%d].name is required", i))
			continue
		}
		if prev, ok := seen[f.Name]; ok {
			errs = append(errs, fmt.Errorf("screen: visibleFields[%d].name %q duplicates visibleFields[%d]", i, f.Name, prev))
		}
		seen[f.Name] = i
	}

	return errors.Join(errs...)
}

// Field returns the descriptor whose Name matches exactly, or nil.
func (c *Context) Field(name string) *FieldDescriptor {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// HasAction reports whether name is listed in Actions.
func (c *Context) HasAction(name string) bool {
	for _, a := range c.Actions {
		if a == name {
			return true
		}
	}
	return false
}
