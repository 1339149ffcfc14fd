// Package llmjson extracts JSON objects from free-text model replies.
//
// Inference providers are instructed to respond with JSON only, but in
// practice replies arrive wrapped in markdown fences, prefixed with "Sure,
// here is the result:", or suffixed with commentary. [ExtractObject] recovers
// the embedded object by slicing between the first '{' and the last '}' after
// stripping fences.
//
// The heuristic is deliberately isolated behind this one operation so it can
// be replaced wholesale if a provider grows a strict structured-output mode.
package llmjson

import (
	"errors"
	"strings"
)

// ErrNoObject is returned when the text contains no brace-delimited object.
var ErrNoObject = errors.New("llmjson: no JSON object found in response")

// ExtractObject returns the substring of s spanning the first '{' through the
// last '}', with surrounding prose and markdown fences removed. It does not
// validate that the slice parses; callers unmarshal and handle syntax errors
// themselves.
func ExtractObject(s string) (string, error) {
	s = StripFences(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "", ErrNoObject
	}
	return s[start : end+1], nil
}

// StripFences removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
