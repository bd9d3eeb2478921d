package voice

import (
	"context"

	"github.com/MrWong99/voxime/pkg/types"
)

// TextSurface is the editing surface the controller writes dictated text to.
// Positions and lengths are in runes.
type TextSurface interface {
	BeginBatchEdit()
	EndBatchEdit()
	FinishComposingText()
	CommitText(text string)
	DeleteBeforeCursor(n int)
	CursorPosition() int
	SelectionLength() int
	RequestExtractedText(monitor bool)
	Attributes() types.FieldAttributes
}

// Host is the editing UI that owns the controller.
type Host interface {
	// Surface returns the current text surface, or nil when no field is
	// connected. Implementations must return an untyped nil in that case.
	Surface() TextSurface

	ShowSuggestions(suggestions []string)
	ClearSuggestions()
	SetCandidatesViewShown(shown bool)
	SwitchToRecognitionView(configurationChanging bool)
	SwitchToStandardView()
	Vibrate()

	// Fullscreen reports whether the host edits in a fullscreen extract view,
	// which already mirrors the field text.
	Fullscreen() bool

	// CapitalizeFirstWord reports whether text inserted at the cursor should
	// start with an upper-case letter (sentence start, caps mode).
	CapitalizeFirstWord() bool
}

// WarningDialog presents the first-use warning. The host reports the user's
// answer through Controller.ConfirmWarning or Controller.DeclineWarning.
type WarningDialog interface {
	Show(msg WarningMessage)
	Dismiss()
}

// Hints shows tips after dictation.
type Hints interface {
	RegisterVoiceResult(text string)
	ShowPunctuationHintIfNecessary(ctx context.Context) bool
}

// Poster schedules work on the controller's owner goroutine.
type Poster interface {
	Post(task func()) bool
}
