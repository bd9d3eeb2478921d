// Package types defines the value objects shared across voxime packages.
//
// These types form the lingua franca between the recognizer back ends, the
// dictation controller and the host editing surface. They are intentionally
// minimal: each package defines its own domain types, but data that crosses
// package boundaries lives here to avoid circular imports.
package types

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// InputType classifies the kind of text a field accepts.
type InputType string

const (
	InputText            InputType = "text"
	InputPassword        InputType = "password"
	InputVisiblePassword InputType = "visible_password"
	InputWebPassword     InputType = "web_password"
	InputNumber          InputType = "number"
	InputEmail           InputType = "email"
	InputURI             InputType = "uri"
)

// IsPassword reports whether t is one of the password input variants.
func (t InputType) IsPassword() bool {
	switch t {
	case InputPassword, InputVisiblePassword, InputWebPassword:
		return true
	}
	return false
}

// FieldAttributes describes the input field currently focused on the host
// editing surface.
type FieldAttributes struct {
	// FieldID identifies the field within its application (view id, DOM id, ...).
	FieldID string

	// Package identifies the application owning the field.
	Package string

	// InputType is the kind of text the field accepts.
	InputType InputType

	// PrivateOptions is a comma-separated list of private options set by the
	// application on the field (e.g. "nm" to suppress the microphone).
	PrivateOptions string

	// MultiLine is true for fields that accept line breaks.
	MultiLine bool
}

// HasPrivateOption reports whether opt appears in the comma-separated
// PrivateOptions list.
func (a FieldAttributes) HasPrivateOption(opt string) bool {
	for o := range strings.SplitSeq(a.PrivateOptions, ",") {
		if strings.TrimSpace(o) == opt {
			return true
		}
	}
	return false
}

// FieldContext is the identity of the current input field. It is passed to
// the recognizer when listening starts and to eligibility checks.
type FieldContext struct {
	// Locale is the BCP-47 tag of the active input locale (e.g. "en-US").
	Locale string

	// EnabledLanguages lists the input languages the user has enabled.
	EnabledLanguages []string

	// Attributes describes the focused field.
	Attributes FieldAttributes
}

// VoiceResult is a single recognition outcome. Candidates are ordered
// best-first; Alternatives maps a committed word or phrase to its ranked
// alternate recognitions.
//
// A VoiceResult is immutable after delivery; use [VoiceResult.Clone] before
// handing it to code that may mutate it.
type VoiceResult struct {
	Candidates   []string
	Alternatives map[string][]string
}

// Best returns the first candidate, or "" and false when there is none.
func (r VoiceResult) Best() (string, bool) {
	if len(r.Candidates) == 0 {
		return "", false
	}
	return r.Candidates[0], true
}

// Clone returns a deep copy of r.
func (r VoiceResult) Clone() VoiceResult {
	out := VoiceResult{Candidates: slices.Clone(r.Candidates)}
	if r.Alternatives != nil {
		out.Alternatives = make(map[string][]string, len(r.Alternatives))
		for k, v := range maps.All(r.Alternatives) {
			out.Alternatives[k] = slices.Clone(v)
		}
	}
	return out
}

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the best hypothesis for the utterance.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0) of Text. May be zero
	// if the provider does not report confidence.
	Confidence float64

	// Words contains per-word detail for Text when available.
	Words []WordDetail

	// Hypotheses holds the provider's n-best list, best first. Hypotheses[0]
	// corresponds to Text. Providers without n-best support leave it nil.
	Hypotheses []Hypothesis

	// Timestamp marks when the utterance started, relative to stream start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// Hypothesis is one entry in an n-best recognition list.
type Hypothesis struct {
	Text       string
	Confidence float64
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}
