// Package voice implements the dictation session controller.
//
// A [Controller] layers one speech-recognition session at a time on top of a
// live editing surface. It gates the first use behind a warning, hands the
// field to the recognizer, commits the delivered text inside a batch edit and
// keeps the alternate recognitions so a misheard word can be swapped later.
//
// All Controller methods must be called on the goroutine that drains the
// controller's [Poster], except OnResults and OnCancel, which the recognizer
// may call from anywhere and which only post to that queue.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/voxime/internal/alternatives"
	"github.com/MrWong99/voxime/internal/eligibility"
	"github.com/MrWong99/voxime/internal/prefs"
	"github.com/MrWong99/voxime/internal/telemetry"
	"github.com/MrWong99/voxime/pkg/recognizer"
	"github.com/MrWong99/voxime/pkg/types"
)

// Construction errors.
var (
	ErrNoRecognizer = errors.New("voice: recognizer is required")
	ErrNoHost       = errors.New("voice: host is required")
	ErrNoQueue      = errors.New("voice: task queue is required")
	ErrNoDialog     = errors.New("voice: warning dialog is required")
)

// Config holds the collaborators of a Controller.
type Config struct {
	Host       Host
	Queue      Poster
	Recognizer recognizer.Recognizer
	Dialog     WarningDialog

	// Prefs stores UsageFlags and the voice mode. Defaults to an in-memory store.
	Prefs prefs.Store

	// Hints is optional.
	Hints Hints

	// SupportedLocales feeds the eligibility policy's locale check.
	SupportedLocales []string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// pendingStart is a StartListening request parked behind the warning dialog.
type pendingStart struct {
	field                 types.FieldContext
	swipe                 bool
	configurationChanging bool
}

// Controller is the dictation session controller. See the package
// documentation for its threading rules.
type Controller struct {
	host   Host
	queue  Poster
	rec    recognizer.Recognizer
	dialog WarningDialog
	store  prefs.Store
	hints  Hints
	policy eligibility.Policy
	log    *slog.Logger

	alts    *alternatives.Store
	counter *telemetry.Counter

	state           State
	flags           PostVoiceFlags
	usage           UsageFlags
	localeSupported bool
	passwordField   bool

	voiceButtonEnabled   bool
	voiceButtonOnPrimary bool
	showingHint          bool
	dialogShowing        bool

	pending   *pendingStart
	delivered types.VoiceResult
	committed string
	destroyed bool
}

var _ recognizer.Listener = (*Controller)(nil)

// New creates a Controller and registers it as the recognizer's listener.
func New(cfg Config) (*Controller, error) {
	var errs []error
	if cfg.Recognizer == nil {
		errs = append(errs, ErrNoRecognizer)
	}
	if cfg.Host == nil {
		errs = append(errs, ErrNoHost)
	}
	if cfg.Queue == nil {
		errs = append(errs, ErrNoQueue)
	}
	if cfg.Dialog == nil {
		errs = append(errs, ErrNoDialog)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	store := cfg.Prefs
	if store == nil {
		store = prefs.NewMemStore(nil)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &Controller{
		host:   cfg.Host,
		queue:  cfg.Queue,
		rec:    cfg.Recognizer,
		dialog: cfg.Dialog,
		store:  store,
		hints:  cfg.Hints,
		policy: eligibility.Policy{
			Recognizer:       cfg.Recognizer,
			SupportedLocales: cfg.SupportedLocales,
		},
		log:     log.With("component", "voice"),
		alts:    alternatives.New(),
		counter: telemetry.New(cfg.Recognizer.Logger()),
	}
	cfg.Recognizer.SetListener(c)
	return c, nil
}

// ---------------------------------------------------------------------------
// Settings and flags
// ---------------------------------------------------------------------------

// LoadSettings refreshes UsageFlags, locale support and the voice button
// state for the field that just gained focus. Preference read failures fall
// back to defaults.
func (c *Controller) LoadSettings(ctx context.Context, fc types.FieldContext) {
	var err error
	if c.usage.HasUsedVoiceInput, err = prefs.Bool(ctx, c.store, prefs.KeyHasUsedVoiceInput, false); err != nil {
		c.log.Warn("failed to read preference", "key", prefs.KeyHasUsedVoiceInput, "err", err)
	}
	if c.usage.HasUsedVoiceInputUnsupportedLocale, err = prefs.Bool(ctx, c.store, prefs.KeyHasUsedVoiceInputUnsupportedLocale, false); err != nil {
		c.log.Warn("failed to read preference", "key", prefs.KeyHasUsedVoiceInputUnsupportedLocale, "err", err)
	}
	raw, err := prefs.String(ctx, c.store, prefs.KeyVoiceMode, string(eligibility.DefaultMode))
	if err != nil {
		c.log.Warn("failed to read preference", "key", prefs.KeyVoiceMode, "err", err)
	}
	mode := eligibility.ResolveMode(raw)

	c.localeSupported = c.policy.LocaleSupported(fc.Locale)
	c.voiceButtonEnabled = mode.Enabled() && !c.passwordField && c.policy.CanOfferVoice(fc, fc.Attributes)
	c.voiceButtonOnPrimary = mode.OnPrimary()
}

// ResetFlags clears the PostVoiceFlags and records whether the focused field
// is a password field, which disables voice input.
func (c *Controller) ResetFlags(isPasswordField bool) {
	c.flags = PostVoiceFlags{}
	c.passwordField = isPasswordField
}

// SetSupportedLocales replaces the locales considered supported. Takes effect
// at the next LoadSettings.
func (c *Controller) SetSupportedLocales(locales []string) {
	c.policy.SupportedLocales = append([]string(nil), locales...)
}

// ---------------------------------------------------------------------------
// Starting a session
// ---------------------------------------------------------------------------

// StartListening begins a dictation attempt for fc. Fields the eligibility
// policy rejects are ignored. The first attempt ever, and the first from an
// unsupported locale, park in WarningPending until the user answers the
// warning dialog.
func (c *Controller) StartListening(ctx context.Context, fc types.FieldContext, swipe, configurationChanging bool) {
	if c.destroyed || c.state != Idle {
		c.log.Debug("ignoring start request", "state", c.state)
		return
	}
	if c.passwordField || !c.policy.CanOfferVoice(fc, fc.Attributes) {
		c.log.Debug("voice input not offered for field", "package", fc.Attributes.Package, "field", fc.Attributes.FieldID)
		return
	}
	if !c.usage.HasUsedVoiceInput || (!c.localeSupported && !c.usage.HasUsedVoiceInputUnsupportedLocale) {
		c.pending = &pendingStart{field: fc, swipe: swipe, configurationChanging: configurationChanging}
		c.state = WarningPending
		c.rec.Logger().LogEvent(recognizer.Entry{Event: recognizer.EventWarningDialogShown})
		c.dialogShowing = true
		c.dialog.Show(warningMessage(c.localeSupported))
		return
	}
	c.reallyStartListening(ctx, fc, swipe, configurationChanging)
}

// ConfirmWarning reports that the user accepted the warning dialog.
func (c *Controller) ConfirmWarning(ctx context.Context) {
	if c.state != WarningPending || c.pending == nil {
		return
	}
	p := *c.pending
	c.pending = nil
	c.dialogShowing = false
	c.state = Idle
	c.rec.Logger().LogEvent(recognizer.Entry{Event: recognizer.EventWarningDialogOK})
	c.reallyStartListening(ctx, p.field, p.swipe, p.configurationChanging)
}

// DeclineWarning reports that the user cancelled the warning dialog.
func (c *Controller) DeclineWarning() {
	if c.state != WarningPending {
		return
	}
	c.pending = nil
	c.dialogShowing = false
	c.state = Idle
	c.rec.Logger().LogEvent(recognizer.Entry{Event: recognizer.EventWarningDialogCancel})
}

func (c *Controller) reallyStartListening(ctx context.Context, fc types.FieldContext, swipe, configurationChanging bool) {
	if !c.usage.HasUsedVoiceInput {
		c.usage.HasUsedVoiceInput = true
		c.persist(ctx, prefs.KeyHasUsedVoiceInput)
	}
	if !c.localeSupported && !c.usage.HasUsedVoiceInputUnsupportedLocale {
		c.usage.HasUsedVoiceInputUnsupportedLocale = true
		c.persist(ctx, prefs.KeyHasUsedVoiceInputUnsupportedLocale)
	}

	c.host.ClearSuggestions()

	c.state = Listening
	if err := c.rec.StartListening(ctx, fc, swipe); err != nil {
		c.log.Warn("recognizer failed to start", "err", err)
		c.state = Idle
		c.host.SwitchToStandardView()
		return
	}
	c.switchToRecognitionView(configurationChanging)
}

// persist writes a usage flag as true. Failures do not block dictation.
func (c *Controller) persist(ctx context.Context, key string) {
	if err := prefs.SetBool(ctx, c.store, key, true); err != nil {
		c.log.Warn("failed to persist preference", "key", key, "err", err)
	}
}

func (c *Controller) switchToRecognitionView(configurationChanging bool) {
	c.host.SetCandidatesViewShown(false)
	c.host.SwitchToRecognitionView(configurationChanging)
}

// ---------------------------------------------------------------------------
// Recognizer callbacks
// ---------------------------------------------------------------------------

// OnResults implements recognizer.Listener. The result is copied and handed
// to the owner queue.
func (c *Controller) OnResults(candidates []string, alts map[string][]string) {
	res := types.VoiceResult{Candidates: candidates, Alternatives: alts}.Clone()
	if !c.queue.Post(func() { c.onVoiceResults(res) }) {
		c.log.Debug("queue closed, dropping voice results")
	}
}

// OnCancel implements recognizer.Listener.
func (c *Controller) OnCancel() {
	c.queue.Post(c.onCancelVoice)
}

func (c *Controller) onVoiceResults(res types.VoiceResult) {
	if c.state != Listening {
		c.log.Debug("dropping late voice results", "state", c.state)
		return
	}
	c.delivered = res
	c.state = ResultsDelivered
	c.queue.Post(func() { c.HandleVoiceResults(c.host.CapitalizeFirstWord()) })
}

func (c *Controller) onCancelVoice() {
	if c.state != Listening {
		return
	}
	c.state = Idle
	c.host.SwitchToStandardView()
}

// HandleVoiceResults commits the delivered result if it is still pending.
func (c *Controller) HandleVoiceResults(capitalizeFirstWord bool) {
	if c.state != ResultsDelivered {
		return
	}
	res := c.delivered
	c.delivered = types.VoiceResult{}
	c.Commit(res, capitalizeFirstWord)
}

// ---------------------------------------------------------------------------
// Commit, revert, highlight
// ---------------------------------------------------------------------------

// Commit inserts the best candidate of res at the cursor and seeds the
// alternatives store. An empty candidate list only ends the session; the
// document, flags and store stay as they were, so a highlight left by an
// earlier commit survives it.
func (c *Controller) Commit(res types.VoiceResult, capitalizeFirstWord bool) {
	if len(res.Candidates) == 0 {
		c.state = Idle
		c.host.SwitchToStandardView()
		return
	}

	nBest := make([]string, len(res.Candidates))
	for i, cand := range res.Candidates {
		if capitalizeFirstWord {
			cand = alternatives.CapitalizeFirst(cand)
		}
		nBest[i] = cand
	}
	best := nBest[0]

	c.flags.AfterVoiceInput = true
	c.flags.ImmediatelyAfterVoiceInput = true

	surface := c.host.Surface()
	if surface != nil && !c.host.Fullscreen() {
		surface.RequestExtractedText(true)
	}
	c.host.Vibrate()
	c.host.SwitchToStandardView()

	c.rec.Logger().LogEvent(recognizer.Entry{
		Event:  recognizer.EventVoiceInputDelivered,
		Length: utf8.RuneCountInString(best),
	})
	if c.hints != nil {
		c.hints.RegisterVoiceResult(best)
	}

	if surface != nil {
		surface.BeginBatchEdit()
		surface.FinishComposingText()
		surface.CommitText(best)
		surface.EndBatchEdit()
		c.flags.Highlighted = true
		c.committed = best
	}

	c.alts.Seed(res.Candidates[0], res.Candidates[1:], res.Alternatives)
	c.state = Idle
}

// Revert removes the highlighted dictated text. It reports whether anything
// was reverted.
func (c *Controller) Revert() bool {
	if !c.flags.Highlighted {
		return false
	}
	surface := c.host.Surface()
	if surface == nil {
		return false
	}
	n := utf8.RuneCountInString(c.committed)
	c.counter.Delete(n)
	surface.DeleteBeforeCursor(n)
	c.flags.Highlighted = false
	c.committed = ""
	return true
}

// CommitHighlight accepts the highlighted dictated text in place.
func (c *Controller) CommitHighlight() {
	if !c.flags.Highlighted {
		return
	}
	if surface := c.host.Surface(); surface != nil {
		surface.FinishComposingText()
	}
	c.flags.Highlighted = false
}

// ---------------------------------------------------------------------------
// Alternatives
// ---------------------------------------------------------------------------

// RememberReplacedWord records that the user replaced the word replaced with
// suggestion from the alternates strip.
func (c *Controller) RememberReplacedWord(replaced, suggestion string) {
	if !c.flags.ShowingAlternatives {
		return
	}
	c.alts.Replace(strings.TrimSpace(replaced), suggestion)
}

// ApplyVoiceAlternatives shows the alternates of the dictated word the cursor
// touches. It reports whether any were shown.
func (c *Controller) ApplyVoiceAlternatives(touching string) bool {
	word := strings.TrimSpace(touching)
	key, _, ok := c.alts.Lookup(word)
	if !ok {
		return false
	}
	// Projection drops alternates that capitalize into the word itself.
	suggestions := c.alts.ProjectCapitalization(key, word)
	if len(suggestions) == 0 {
		return false
	}
	c.flags.ShowingAlternatives = true
	c.host.ShowSuggestions(suggestions)
	c.host.SetCandidatesViewShown(true)
	return true
}

// LogSuggestionPicked flushes the pending edit counters and logs that the
// alternate at index was chosen.
func (c *Controller) LogSuggestionPicked(index int, suggestion string) {
	if !c.flags.AfterVoiceInput || !c.flags.ShowingAlternatives {
		return
	}
	c.counter.Flush()
	c.rec.Logger().LogEvent(recognizer.Entry{
		Event:      recognizer.EventSuggestionPicked,
		Index:      index,
		Suggestion: suggestion,
	})
}

// ---------------------------------------------------------------------------
// Editing events
// ---------------------------------------------------------------------------

// HandleBackspace counts a backspace made after dictation.
func (c *Controller) HandleBackspace() {
	if !c.flags.AfterVoiceInput {
		return
	}
	surface := c.host.Surface()
	if surface == nil {
		return
	}
	c.counter.Backspace(surface.CursorPosition(), surface.SelectionLength())
}

// HandleCharacter accepts highlighted text and counts a typed character.
func (c *Controller) HandleCharacter() {
	c.CommitHighlight()
	if c.flags.AfterVoiceInput {
		c.counter.Insert(1)
	}
}

// HandleSeparator accepts highlighted text and counts a typed separator.
func (c *Controller) HandleSeparator() {
	c.CommitHighlight()
	if c.flags.AfterVoiceInput {
		c.counter.Punctuation(1)
	}
}

// HandleClose cancels an in-flight recognition. The session returns to Idle
// at once; results the recognizer still delivers are dropped.
func (c *Controller) HandleClose() {
	if c.state != Listening {
		return
	}
	c.rec.Cancel()
	c.state = Idle
	c.host.SwitchToStandardView()
}

// ---------------------------------------------------------------------------
// Hints
// ---------------------------------------------------------------------------

// ShowPunctuationHintIfNecessary offers the punctuation hint on the first
// cursor update that is not the commit itself.
func (c *Controller) ShowPunctuationHintIfNecessary(ctx context.Context) {
	if !c.flags.ImmediatelyAfterVoiceInput && c.flags.AfterVoiceInput &&
		c.hints != nil && c.host.Surface() != nil {
		if c.hints.ShowPunctuationHintIfNecessary(ctx) {
			c.showingHint = true
			c.rec.Logger().LogEvent(recognizer.Entry{Event: recognizer.EventPunctuationHintShown})
		}
	}
	c.flags.ImmediatelyAfterVoiceInput = false
}

// TakeShowingHint reports whether a hint was shown since the last call.
func (c *Controller) TakeShowingHint() bool {
	shown := c.showingHint
	c.showingHint = false
	return shown
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Teardown runs when the editing surface hides. A configuration change such
// as a rotation keeps the session and counters alive; the alternatives store
// is cleared in every case.
func (c *Controller) Teardown(configurationChanging bool) {
	if !configurationChanging {
		log := c.rec.Logger()
		if c.flags.AfterVoiceInput {
			c.counter.Flush()
			log.LogEvent(recognizer.Entry{Event: recognizer.EventInputEnded})
		}
		if c.dialogShowing {
			log.LogEvent(recognizer.Entry{Event: recognizer.EventWarningDialogDismissed})
			c.dialog.Dismiss()
			c.dialogShowing = false
			c.pending = nil
		}
		switch c.state {
		case Listening, ResultsDelivered:
			c.rec.Cancel()
		}
		c.state = Idle
		c.delivered = types.VoiceResult{}
		log.FlushLogs()
	}
	c.alts.Clear()
}

// OnConfigurationChanged re-shows the recognition view after the host
// rebuilt its views.
func (c *Controller) OnConfigurationChanged(configurationChanging bool) {
	if c.state == Listening {
		c.switchToRecognitionView(configurationChanging)
	}
}

// Destroy detaches from and destroys the recognizer.
func (c *Controller) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.rec.SetListener(nil)
	c.rec.Destroy()
	c.alts.Clear()
	c.state = Idle
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// State returns the session state.
func (c *Controller) State() State { return c.state }

// Session returns a snapshot of the recognition session.
func (c *Controller) Session() Session {
	return Session{State: c.state, LocaleSupported: c.localeSupported, PasswordField: c.passwordField}
}

// Flags returns the PostVoiceFlags.
func (c *Controller) Flags() PostVoiceFlags { return c.flags }

// Usage returns the UsageFlags.
func (c *Controller) Usage() UsageFlags { return c.usage }

// IsRecognizing reports whether speech is being captured.
func (c *Controller) IsRecognizing() bool { return c.state == Listening }

// VoiceButtonEnabled reports whether the voice affordance is shown.
func (c *Controller) VoiceButtonEnabled() bool { return c.voiceButtonEnabled }

// VoiceButtonOnPrimary reports whether the affordance sits on the primary keyboard.
func (c *Controller) VoiceButtonOnPrimary() bool { return c.voiceButtonOnPrimary }

// Alternatives returns the alternatives store.
func (c *Controller) Alternatives() *alternatives.Store { return c.alts }

// String implements fmt.Stringer for debug logging.
func (c *Controller) String() string {
	return fmt.Sprintf("voice.Controller{state=%s highlighted=%t alternatives=%d}",
		c.state, c.flags.Highlighted, c.alts.Len())
}
