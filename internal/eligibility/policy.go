// Package eligibility decides whether the voice-input affordance may be offered
// for a field and how prominently.
package eligibility

import (
	"slices"
	"strings"

	"golang.org/x/text/language"

	"github.com/MrWong99/voxime/pkg/recognizer"
	"github.com/MrWong99/voxime/pkg/types"
)

// Mode is the user's voice-input preference.
type Mode string

const (
	// ModeOff hides the voice affordance.
	ModeOff Mode = "off"
	// ModeMain shows the voice affordance on the primary keyboard.
	ModeMain Mode = "main"
	// ModeSecondary shows the voice affordance on a secondary keyboard.
	ModeSecondary Mode = "secondary"
)

// DefaultMode applies when no preference is stored.
const DefaultMode = ModeMain

// NoMicrophoneOption is the private field option that suppresses the voice
// affordance, e.g. for a search box that already shows its own microphone.
const NoMicrophoneOption = "nm"

// ResolveMode maps a stored preference value to a Mode. Unknown or empty
// values resolve to DefaultMode.
func ResolveMode(v string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(v))); m {
	case ModeOff, ModeMain, ModeSecondary:
		return m
	}
	return DefaultMode
}

// Enabled reports whether the affordance is shown at all.
func (m Mode) Enabled() bool { return m != ModeOff }

// OnPrimary reports whether the affordance sits on the primary keyboard.
func (m Mode) OnPrimary() bool { return m == ModeMain }

// Policy answers eligibility questions for the current recognizer and locale
// configuration. The zero value offers voice nowhere.
type Policy struct {
	// Recognizer is consulted for per-field denylisting and global availability.
	Recognizer recognizer.Recognizer

	// SupportedLocales lists BCP-47 tags or bare languages that recognition
	// handles well. A bare language ("en") covers every region of it.
	SupportedLocales []string
}

// CanOfferVoice reports whether the voice affordance may be offered for the
// field. It is never true for password fields.
func (p Policy) CanOfferVoice(fc types.FieldContext, attrs types.FieldAttributes) bool {
	if fc.Attributes.InputType.IsPassword() || attrs.InputType.IsPassword() {
		return false
	}
	if p.Recognizer == nil {
		return false
	}
	if p.Recognizer.IsFieldDenylisted(fc) {
		return false
	}
	if attrs.HasPrivateOption(NoMicrophoneOption) {
		return false
	}
	return p.Recognizer.Available()
}

// LocaleSupported reports whether locale, or its language, is supported.
// Tags are canonicalized first, so case does not matter and "_" reads as "-".
func (p Policy) LocaleSupported(locale string) bool {
	tag, ok := parseTag(locale)
	if !ok {
		return false
	}
	lang, _ := tag.Base()
	return slices.ContainsFunc(p.SupportedLocales, func(s string) bool {
		st, ok := parseTag(s)
		if !ok {
			return false
		}
		if st == tag {
			return true
		}
		base, _ := st.Base()
		// A bare language only has an inferred region.
		_, conf := st.Region()
		return base == lang && conf != language.Exact
	})
}

func parseTag(s string) (language.Tag, bool) {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	return tag, err == nil
}
