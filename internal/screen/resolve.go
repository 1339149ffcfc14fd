package screen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// suggestThreshold is the minimum Jaro-Winkler similarity for a near-miss
// field suggestion. Below it a mistyped term is treated as unrelated.
const suggestThreshold = 0.8

// AmbiguousFieldError reports that a spoken term matched more than one field
// via synonyms, so the caller must ask the user to pick one.
type AmbiguousFieldError struct {
	// Term is the spoken field reference that matched multiple fields.
	Term string
	// Labels holds the display labels of every candidate, in field order.
	Labels []string
}

func (e *AmbiguousFieldError) Error() string {
	return fmt.Sprintf("screen: term %q matches multiple fields: %s", e.Term, strings.Join(e.Labels, ", "))
}

// ResolveField maps a spoken field reference onto a visible field.
//
// Matching is tried in order: exact name, case-insensitive name, then
// case-insensitive label, then synonyms. If the term hits synonyms of more
// than one field, ResolveField returns an [AmbiguousFieldError] instead of
// picking one. A term that matches nothing returns (nil, nil); callers can
// follow up with [Context.Suggest] for a near-miss hint.
func (c *Context) ResolveField(term string) (*FieldDescriptor, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	if f := c.Field(term); f != nil {
		return f, nil
	}
	for i := range c.Fields {
		if strings.EqualFold(c.Fields[i].Name, term) {
			return &c.Fields[i], nil
		}
	}
	for i := range c.Fields {
		if strings.EqualFold(c.Fields[i].Label, term) {
			return &c.Fields[i], nil
		}
	}

	var (
		match  *FieldDescriptor
		labels []string
	)
	for i := range c.Fields {
		f := &c.Fields[i]
		for _, syn := range f.Synonyms {
			if strings.EqualFold(syn, term) {
				match = f
				labels = append(labels, displayName(f))
				break
			}
		}
	}
	switch len(labels) {
	case 0:
		return nil, nil
	case 1:
		return match, nil
	default:
		return nil, &AmbiguousFieldError{Term: term, Labels: labels}
	}
}

// Suggest returns the display label of the visible field closest to term, if
// any name, label, or synonym is similar enough to be a plausible near miss.
// It is used to turn "I don't know that field" clarifications into "did you
// mean X?" ones.
func (c *Context) Suggest(term string) (label string, ok bool) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return "", false
	}

	best := 0.0
	for i := range c.Fields {
		f := &c.Fields[i]
		candidates := append([]string{f.Name, f.Label}, f.Synonyms...)
		for _, cand := range candidates {
			if cand == "" {
				continue
			}
			score := matchr.JaroWinkler(term, strings.ToLower(cand), false)
			if score >= suggestThreshold && score > best {
				best = score
				label = displayName(f)
				ok = true
			}
		}
	}
	return label, ok
}

// EditableLabels returns the display labels of all editable fields, sorted,
// for use in clarification prompts that enumerate what can be changed.
func (c *Context) EditableLabels() []string {
	var labels []string
	for i := range c.Fields {
		if c.Fields[i].Editable {
			labels = append(labels, displayName(&c.Fields[i]))
		}
	}
	sort.Strings(labels)
	return labels
}

// displayName prefers the label and falls back to the canonical name.
func displayName(f *FieldDescriptor) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}
