package voice

// State is the recognition-session state.
type State int

const (
	// Idle: no dictation attempt in progress.
	Idle State = iota
	// WarningPending: the first-use warning is showing; no recognizer request yet.
	WarningPending
	// Listening: the recognizer is capturing speech for the field.
	Listening
	// ResultsDelivered: a result arrived and its commit is scheduled.
	ResultsDelivered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WarningPending:
		return "warning_pending"
	case Listening:
		return "listening"
	case ResultsDelivered:
		return "results_delivered"
	}
	return "unknown"
}

// PostVoiceFlags describe the short-lived editing mode after a voice commit.
// They are set by a commit and cleared by ResetFlags, a revert (Highlighted
// only) or the next manual edit (Highlighted only).
type PostVoiceFlags struct {
	// AfterVoiceInput: edits are counted as corrections of dictated text.
	AfterVoiceInput bool
	// ImmediatelyAfterVoiceInput: nothing happened since the commit. Suppresses
	// the punctuation hint for the first cursor update.
	ImmediatelyAfterVoiceInput bool
	// Highlighted: the dictated text may still be reverted.
	Highlighted bool
	// ShowingAlternatives: the suggestion strip shows alternates of a dictated word.
	ShowingAlternatives bool
}

// UsageFlags are persisted once true and gate the first-use warning.
type UsageFlags struct {
	HasUsedVoiceInput                  bool
	HasUsedVoiceInputUnsupportedLocale bool
}

// Session is a read-only view of the recognition session.
type Session struct {
	State           State
	LocaleSupported bool
	PasswordField   bool
}

// Recognizing reports whether speech is being captured.
func (s Session) Recognizing() bool { return s.State == Listening }
