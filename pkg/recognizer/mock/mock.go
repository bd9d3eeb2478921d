// Package mock provides test doubles for the recognizer package interfaces.
//
// Recognizer records every call and lets tests drive the installed Listener
// through Deliver and DeliverCancel. Logger records events and counter calls.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxime/pkg/recognizer"
	"github.com/MrWong99/voxime/pkg/types"
)

// StartListeningCall records a single invocation of Recognizer.StartListening.
type StartListeningCall struct {
	Field types.FieldContext
	Swipe bool
}

// Recognizer is a mock implementation of recognizer.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by StartListening.
	StartErr error

	// Denylisted is the value returned by IsFieldDenylisted.
	Denylisted bool

	// Unavailable inverts the value returned by Available.
	Unavailable bool

	// Log is returned by Logger. When nil a shared *Logger is created lazily.
	Log recognizer.Logger

	listener recognizer.Listener

	// --- Call records ---

	StartListeningCalls []StartListeningCall
	CancelCount         int
	DestroyCount        int
	SetListenerCount    int
}

// SetListener records the listener.
func (r *Recognizer) SetListener(l recognizer.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SetListenerCount++
	r.listener = l
}

// Listener returns the installed listener.
func (r *Recognizer) Listener() recognizer.Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener
}

// StartListening records the call and returns StartErr.
func (r *Recognizer) StartListening(_ context.Context, fc types.FieldContext, swipe bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartListeningCalls = append(r.StartListeningCalls, StartListeningCall{Field: fc, Swipe: swipe})
	return r.StartErr
}

// StartCount returns the number of StartListening calls.
func (r *Recognizer) StartCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.StartListeningCalls)
}

// Cancel records the call.
func (r *Recognizer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CancelCount++
}

// Cancels returns the number of Cancel calls.
func (r *Recognizer) Cancels() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.CancelCount
}

// IsFieldDenylisted returns Denylisted.
func (r *Recognizer) IsFieldDenylisted(types.FieldContext) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Denylisted
}

// Available returns !Unavailable.
func (r *Recognizer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.Unavailable
}

// Logger returns Log, creating a *Logger on first use.
func (r *Recognizer) Logger() recognizer.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Log == nil {
		r.Log = &Logger{}
	}
	return r.Log
}

// Destroy records the call.
func (r *Recognizer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DestroyCount++
}

// Deliver calls OnResults on the installed listener, if any.
func (r *Recognizer) Deliver(candidates []string, alternatives map[string][]string) {
	if l := r.Listener(); l != nil {
		l.OnResults(candidates, alternatives)
	}
}

// DeliverCancel calls OnCancel on the installed listener, if any.
func (r *Recognizer) DeliverCancel() {
	if l := r.Listener(); l != nil {
		l.OnCancel()
	}
}

var _ recognizer.Recognizer = (*Recognizer)(nil)

// Logger is a mock implementation of recognizer.Logger.
type Logger struct {
	mu sync.Mutex

	Entries            []recognizer.Entry
	Inserts            []int
	Deletes            []int
	Punctuations       []int
	FlushCountersCount int
	FlushLogsCount     int
}

func (l *Logger) LogEvent(e recognizer.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, e)
}

func (l *Logger) IncrementInsert(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Inserts = append(l.Inserts, n)
}

func (l *Logger) IncrementDelete(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Deletes = append(l.Deletes, n)
}

func (l *Logger) IncrementInsertPunctuation(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Punctuations = append(l.Punctuations, n)
}

func (l *Logger) FlushCounters() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.FlushCountersCount++
}

func (l *Logger) FlushLogs() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.FlushLogsCount++
}

// Events returns the logged event names in order.
func (l *Logger) Events() []recognizer.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]recognizer.Event, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, e.Event)
	}
	return out
}

// Last returns the most recent entry for ev.
func (l *Logger) Last(ev recognizer.Event) (recognizer.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.Entries) - 1; i >= 0; i-- {
		if l.Entries[i].Event == ev {
			return l.Entries[i], true
		}
	}
	return recognizer.Entry{}, false
}

// Count returns how many times ev was logged.
func (l *Logger) Count(ev recognizer.Event) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.Entries {
		if e.Event == ev {
			n++
		}
	}
	return n
}

var _ recognizer.Logger = (*Logger)(nil)
