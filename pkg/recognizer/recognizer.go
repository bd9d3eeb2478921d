// Package recognizer defines the contract between the dictation controller and
// a speech recognizer.
//
// A Recognizer captures speech for a text field and reports the outcome through
// a Listener. Listener callbacks may arrive on any goroutine; implementations
// of Listener must hand them off to their owner before touching state.
//
// Logger is the recognizer's logging capability. It receives named dictation
// events and the post-voice edit counters the controller accumulates.
package recognizer

import (
	"context"

	"github.com/MrWong99/voxime/pkg/types"
)

// Listener receives recognition outcomes.
type Listener interface {
	// OnResults delivers best-first candidates and an alternatives map keyed by
	// word or phrase. Implementations must not retain the arguments beyond the
	// call without copying.
	OnResults(candidates []string, alternatives map[string][]string)

	// OnCancel reports that recognition ended without a usable result.
	OnCancel()
}

// Recognizer is the abstraction over any speech recognizer able to dictate
// into a text field.
//
// Implementations must be safe for concurrent use.
type Recognizer interface {
	// SetListener installs the callback target. Passing nil detaches it.
	SetListener(l Listener)

	// StartListening begins capturing speech for the given field. Results are
	// delivered asynchronously through the Listener. swipe is true when the user
	// started dictation with a swipe gesture rather than a tap.
	StartListening(ctx context.Context, fc types.FieldContext, swipe bool) error

	// Cancel aborts an in-flight recognition. It is safe to call when idle.
	Cancel()

	// IsFieldDenylisted reports whether voice input is disallowed for the field.
	IsFieldDenylisted(fc types.FieldContext) bool

	// Available reports whether recognition is currently possible at all.
	Available() bool

	// Logger returns the recognizer's logging capability. Never nil.
	Logger() Logger

	// Destroy releases all resources. The Recognizer must not be used afterwards.
	Destroy()
}

// Event names a dictation event reported to a Logger.
type Event string

const (
	EventWarningDialogShown     Event = "warning_dialog_shown"
	EventWarningDialogOK        Event = "warning_dialog_ok"
	EventWarningDialogCancel    Event = "warning_dialog_cancel"
	EventWarningDialogDismissed Event = "warning_dialog_dismissed"
	EventVoiceInputDelivered    Event = "voice_input_delivered"
	EventPunctuationHintShown   Event = "punctuation_hint_displayed"
	EventInputEnded             Event = "input_ended"
	EventSuggestionPicked       Event = "suggestion_picked"
)

// Entry is one logged event.
type Entry struct {
	Event Event

	// Length is the rune length of the delivered text for
	// EventVoiceInputDelivered.
	Length int

	// Index and Suggestion describe the chosen alternate for
	// EventSuggestionPicked.
	Index      int
	Suggestion string
}

// Logger is the recognizer's logging capability.
//
// Counter increments accumulate until FlushCounters. FlushLogs pushes any
// buffered events to their destination.
type Logger interface {
	LogEvent(e Entry)

	IncrementInsert(n int)
	IncrementDelete(n int)
	IncrementInsertPunctuation(n int)
	FlushCounters()

	FlushLogs()
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) LogEvent(Entry)                 {}
func (NopLogger) IncrementInsert(int)            {}
func (NopLogger) IncrementDelete(int)            {}
func (NopLogger) IncrementInsertPunctuation(int) {}
func (NopLogger) FlushCounters()                 {}
func (NopLogger) FlushLogs()                     {}

var _ Logger = NopLogger{}
