// Package hints shows one-off tips after dictation. The only tip today
// reminds users that punctuation can be spoken ("period", "comma").
package hints

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MrWong99/voxime/internal/prefs"
)

// Defaults for [Punctuation].
const (
	DefaultMaxShown      = 3
	DefaultMinDeliveries = 2
)

// PunctuationHintText is the text passed to Display.ShowHint.
const PunctuationHintText = `Say "period", "comma" or "question mark" to dictate punctuation.`

// Display renders a hint on the host UI.
type Display interface {
	ShowHint(text string)
}

// Option configures a [Punctuation].
type Option func(*Punctuation)

// WithMaxShown caps how often the hint is ever shown. The count persists in
// the preference store.
func WithMaxShown(n int) Option {
	return func(p *Punctuation) { p.maxShown = n }
}

// WithMinDeliveries sets how many unpunctuated deliveries must accumulate
// before the hint is considered.
func WithMinDeliveries(n int) Option {
	return func(p *Punctuation) { p.minDeliveries = n }
}

// Punctuation decides when to show the punctuation hint. It is owned by the
// dictation controller and not safe for concurrent use.
type Punctuation struct {
	display Display
	store   prefs.Store

	maxShown      int
	minDeliveries int

	// unpunctuated counts deliveries without punctuation since the last hint.
	unpunctuated int
}

// NewPunctuation creates a Punctuation hint. store may be nil, in which case
// the shown-count is not persisted.
func NewPunctuation(display Display, store prefs.Store, opts ...Option) *Punctuation {
	p := &Punctuation{
		display:       display,
		store:         store,
		maxShown:      DefaultMaxShown,
		minDeliveries: DefaultMinDeliveries,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// RegisterVoiceResult records a delivered dictation result.
func (p *Punctuation) RegisterVoiceResult(text string) {
	if hasPunctuation(text) {
		p.unpunctuated = 0
		return
	}
	p.unpunctuated++
}

// ShowPunctuationHintIfNecessary shows the hint when enough unpunctuated
// results were delivered and the hint has not been shown too often. It
// reports whether the hint was shown.
func (p *Punctuation) ShowPunctuationHintIfNecessary(ctx context.Context) bool {
	if p.display == nil || p.unpunctuated < p.minDeliveries {
		return false
	}
	shown := 0
	if p.store != nil {
		n, err := prefs.Int(ctx, p.store, prefs.KeyPunctuationHintCount, 0)
		if err != nil {
			slog.Warn("hints: failed to read hint count", "err", err)
		}
		shown = n
	}
	if shown >= p.maxShown {
		return false
	}

	p.display.ShowHint(PunctuationHintText)
	p.unpunctuated = 0
	if p.store != nil {
		if err := prefs.SetInt(ctx, p.store, prefs.KeyPunctuationHintCount, shown+1); err != nil {
			slog.Warn("hints: failed to persist hint count", "err", err)
		}
	}
	return true
}

func hasPunctuation(s string) bool {
	return strings.ContainsAny(s, ".,?!;:")
}
