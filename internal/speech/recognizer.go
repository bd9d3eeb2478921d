// Package speech implements [recognizer.Recognizer] on top of a streaming
// speech-to-text provider.
//
// Each StartListening opens one STT stream, pumps PCM from an [AudioSource]
// into it until the source ends, then closes the stream and waits for the
// remaining final transcripts. The finals become best-first candidates and an
// alternatives map (see [BuildResult]) that are delivered to the listener.
// Failures and empty results are reported as OnCancel.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxime/internal/observe"
	"github.com/MrWong99/voxime/pkg/provider/stt"
	"github.com/MrWong99/voxime/pkg/recognizer"
	"github.com/MrWong99/voxime/pkg/types"
)

// chunkSize is 100 ms of 16 kHz mono 16-bit PCM.
const chunkSize = 3200

// ErrDestroyed is returned by StartListening after Destroy.
var ErrDestroyed = errors.New("speech: recognizer destroyed")

// DenyRule disables voice input for matching fields. Empty fields match
// anything; a rule with both fields empty matches nothing.
type DenyRule struct {
	Package string
	FieldID string
}

func (d DenyRule) matches(a types.FieldAttributes) bool {
	if d.Package == "" && d.FieldID == "" {
		return false
	}
	return (d.Package == "" || d.Package == a.Package) &&
		(d.FieldID == "" || d.FieldID == a.FieldID)
}

// Option configures a [Recognizer].
type Option func(*Recognizer)

// WithProviderName labels metrics and logs. Default: "stt".
func WithProviderName(name string) Option {
	return func(r *Recognizer) { r.name = name }
}

// WithSampleRate sets the PCM sample rate announced to the provider.
// Default: 16000.
func WithSampleRate(hz int) Option {
	return func(r *Recognizer) { r.sampleRate = hz }
}

// WithMaxAlternatives sets the n-best size requested per final. Default: 5.
func WithMaxAlternatives(n int) Option {
	return func(r *Recognizer) { r.maxAlternatives = n }
}

// WithDenylist replaces the deny rules.
func WithDenylist(rules ...DenyRule) Option {
	return func(r *Recognizer) { r.denylist = rules }
}

// WithMetrics records to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Recognizer) { r.metrics = m }
}

// WithEventLogger sets the logging capability handed to the controller.
func WithEventLogger(l recognizer.Logger) Option {
	return func(r *Recognizer) { r.events = l }
}

// WithAvailability sets the probe behind Available, typically the
// failover's breaker state.
func WithAvailability(fn func() bool) Option {
	return func(r *Recognizer) { r.available = fn }
}

// Recognizer is a [recognizer.Recognizer] backed by an [stt.Provider].
type Recognizer struct {
	provider        stt.Provider
	source          AudioSource
	name            string
	sampleRate      int
	maxAlternatives int
	denylist        []DenyRule
	metrics         *observe.Metrics
	events          recognizer.Logger
	available       func() bool

	mu        sync.Mutex
	listener  recognizer.Listener
	active    *run
	destroyed bool
	wg        sync.WaitGroup
}

var _ recognizer.Recognizer = (*Recognizer)(nil)

// run is one in-flight recognition.
type run struct {
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
}

func (r *run) finishInput() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// New creates a Recognizer that streams audio from src to p.
func New(p stt.Provider, src AudioSource, opts ...Option) *Recognizer {
	r := &Recognizer{
		provider:        p,
		source:          src,
		name:            "stt",
		sampleRate:      16000,
		maxAlternatives: 5,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	if r.events == nil {
		r.events = recognizer.NopLogger{}
	}
	return r
}

// SetListener installs the callback target.
func (r *Recognizer) SetListener(l recognizer.Listener) {
	r.mu.Lock()
	r.listener = l
	r.mu.Unlock()
}

// StartListening opens a stream for the field's locale and starts pumping
// audio. An in-flight recognition is cancelled first. The stream outlives
// ctx; use Cancel to abort it.
func (r *Recognizer) StartListening(ctx context.Context, fc types.FieldContext, swipe bool) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ErrDestroyed
	}
	if r.active != nil {
		r.active.cancel()
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cur := &run{cancel: cancel, stop: make(chan struct{})}
	r.active = cur
	r.mu.Unlock()

	runCtx, span := observe.StartRecognition(runCtx, r.name, fc, swipe)
	start := time.Now()
	sess, err := r.provider.StartStream(runCtx, stt.StreamConfig{
		SampleRate:      r.sampleRate,
		Channels:        1,
		Language:        streamLanguage(fc),
		MaxAlternatives: r.maxAlternatives,
	})
	if err != nil {
		r.finish(cur)
		r.metrics.RecordProviderRequest(ctx, r.name, "error")
		r.metrics.RecordProviderError(ctx, r.name, "start")
		observe.EndRecognition(span, "start_failed", err)
		return fmt.Errorf("speech: start stream: %w", err)
	}
	r.metrics.RecordProviderRequest(ctx, r.name, "ok")

	audio, err := r.source.Open(runCtx)
	if err != nil {
		_ = sess.Close()
		r.finish(cur)
		observe.EndRecognition(span, "audio_failed", err)
		return fmt.Errorf("speech: open audio: %w", err)
	}

	observe.Logger(runCtx).Debug("recognition started",
		"provider", r.name, "locale", fc.Locale, "swipe", swipe)
	r.metrics.ActiveRecognitions.Add(ctx, 1)
	r.wg.Add(1)
	go r.recognize(runCtx, span, cur, sess, audio, start)
	return nil
}

// streamLanguage picks the recognition language: the field locale, else the
// first enabled input language.
func streamLanguage(fc types.FieldContext) string {
	if l := strings.TrimSpace(fc.Locale); l != "" {
		return l
	}
	for _, l := range fc.EnabledLanguages {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

// StopListening ends audio capture for the in-flight recognition. The
// transcripts gathered so far are still delivered.
func (r *Recognizer) StopListening() {
	r.mu.Lock()
	cur := r.active
	r.mu.Unlock()
	if cur != nil {
		cur.finishInput()
	}
}

// Cancel aborts the in-flight recognition without delivering anything.
func (r *Recognizer) Cancel() {
	r.mu.Lock()
	cur := r.active
	r.active = nil
	r.mu.Unlock()
	if cur != nil {
		cur.cancel()
	}
}

// SetDenylist replaces the deny rules.
func (r *Recognizer) SetDenylist(rules ...DenyRule) {
	r.mu.Lock()
	r.denylist = rules
	r.mu.Unlock()
}

// IsFieldDenylisted reports whether any deny rule matches the field.
func (r *Recognizer) IsFieldDenylisted(fc types.FieldContext) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.denylist {
		if d.matches(fc.Attributes) {
			return true
		}
	}
	return false
}

// Available reports whether a stream could be started.
func (r *Recognizer) Available() bool {
	r.mu.Lock()
	destroyed := r.destroyed
	r.mu.Unlock()
	if destroyed {
		return false
	}
	return r.available == nil || r.available()
}

// Logger returns the event logging capability.
func (r *Recognizer) Logger() recognizer.Logger { return r.events }

// Destroy cancels any recognition, detaches the listener and waits for the
// background work to finish.
func (r *Recognizer) Destroy() {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return
	}
	r.destroyed = true
	r.listener = nil
	cur := r.active
	r.active = nil
	r.mu.Unlock()
	if cur != nil {
		cur.cancel()
	}
	r.wg.Wait()
}

func (r *Recognizer) finish(cur *run) {
	r.mu.Lock()
	if r.active == cur {
		r.active = nil
	}
	r.mu.Unlock()
	cur.cancel()
}

func (r *Recognizer) currentListener() recognizer.Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener
}

func (r *Recognizer) recognize(ctx context.Context, span trace.Span, cur *run, sess stt.SessionHandle, audio io.ReadCloser, start time.Time) {
	defer r.wg.Done()
	defer r.finish(cur)
	bg := context.WithoutCancel(ctx)
	defer r.metrics.ActiveRecognitions.Add(bg, -1)

	var finals []types.Transcript
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() { _ = sess.Close() }()
		return pump(gctx, cur.stop, audio, sess)
	})
	g.Go(func() error {
		partials, fin := sess.Partials(), sess.Finals()
		for partials != nil || fin != nil {
			select {
			case _, ok := <-partials:
				if !ok {
					partials = nil
				}
			case t, ok := <-fin:
				if !ok {
					fin = nil
					continue
				}
				finals = append(finals, t)
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	err := g.Wait()

	if ctx.Err() != nil {
		r.metrics.RecordRecognition(bg, "cancelled")
		observe.EndRecognition(span, "cancelled", nil)
		return
	}
	listener := r.currentListener()
	if err != nil {
		observe.Logger(ctx).Warn("recognition failed", "provider", r.name, "err", err)
		r.metrics.RecordProviderError(bg, r.name, "stream")
		r.metrics.RecordRecognition(bg, "failed")
		observe.EndRecognition(span, "failed", err)
		if listener != nil {
			listener.OnCancel()
		}
		return
	}

	res := BuildResult(finals, r.maxAlternatives)
	if best, ok := res.Best(); !ok || strings.TrimSpace(best) == "" {
		observe.Logger(ctx).Debug("recognition produced no text", "provider", r.name, "finals", len(finals))
		r.metrics.RecordRecognition(bg, "empty")
		observe.EndRecognition(span, "empty", nil)
		if listener != nil {
			listener.OnCancel()
		}
		return
	}

	r.metrics.RecognitionDuration.Record(bg, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", r.name)))
	r.metrics.RecordRecognition(bg, "delivered")
	observe.EndRecognition(span, "delivered", nil)
	if listener != nil {
		listener.OnResults(res.Candidates, res.Alternatives)
	}
}

// pump copies audio into the session in chunkSize pieces until the source
// ends, stop is closed or ctx is cancelled. Closing the source unblocks a
// pending Read.
func pump(ctx context.Context, stop <-chan struct{}, audio io.ReadCloser, sess stt.SessionHandle) error {
	release := sync.OnceFunc(func() { _ = audio.Close() })
	defer release()
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		release()
	}()

	buf := make([]byte, chunkSize)
	for {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := io.ReadFull(audio, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if serr := sess.SendAudio(chunk); serr != nil {
				return fmt.Errorf("speech: send audio: %w", serr)
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			select {
			case <-stop:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("speech: read audio: %w", err)
		}
	}
}
