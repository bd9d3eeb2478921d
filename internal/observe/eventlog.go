package observe

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrWong99/voxime/pkg/recognizer"
)

// EventLog implements [recognizer.Logger] on top of slog and [Metrics].
//
// Events are counted as they arrive and buffered until FlushLogs writes them
// out. Edit counters accumulate until FlushCounters adds them to the
// correction metrics.
type EventLog struct {
	metrics *Metrics
	log     *slog.Logger

	mu      sync.Mutex
	pending []recognizer.Entry
	inserts int
	deletes int
	puncts  int
	totals  Corrections
}

// Corrections is a running total of flushed post-voice edits.
type Corrections struct {
	Inserts      int
	Deletes      int
	Punctuations int
}

var _ recognizer.Logger = (*EventLog)(nil)

// NewEventLog returns an EventLog recording to m. A nil logger uses
// slog.Default().
func NewEventLog(m *Metrics, logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{metrics: m, log: logger}
}

// LogEvent buffers e and counts it.
func (l *EventLog) LogEvent(e recognizer.Entry) {
	l.mu.Lock()
	l.pending = append(l.pending, e)
	l.mu.Unlock()
	l.metrics.RecordEvent(context.Background(), string(e.Event))
}

// IncrementInsert adds n inserted characters.
func (l *EventLog) IncrementInsert(n int) {
	l.mu.Lock()
	l.inserts += n
	l.mu.Unlock()
}

// IncrementDelete adds n deleted characters.
func (l *EventLog) IncrementDelete(n int) {
	l.mu.Lock()
	l.deletes += n
	l.mu.Unlock()
}

// IncrementInsertPunctuation adds n inserted punctuation characters.
func (l *EventLog) IncrementInsertPunctuation(n int) {
	l.mu.Lock()
	l.puncts += n
	l.mu.Unlock()
}

// FlushCounters records the accumulated edit counters and resets them.
func (l *EventLog) FlushCounters() {
	l.mu.Lock()
	ins, del, punct := l.inserts, l.deletes, l.puncts
	l.inserts, l.deletes, l.puncts = 0, 0, 0
	l.totals.Inserts += ins
	l.totals.Deletes += del
	l.totals.Punctuations += punct
	l.mu.Unlock()

	ctx := context.Background()
	l.metrics.RecordCorrections(ctx, "insert", ins)
	l.metrics.RecordCorrections(ctx, "delete", del)
	l.metrics.RecordCorrections(ctx, "punctuation", punct)
	if ins+del+punct > 0 {
		l.log.Debug("post-voice edits flushed", "inserts", ins, "deletes", del, "punctuation", punct)
	}
}

// FlushLogs writes buffered events to the logger.
func (l *EventLog) FlushLogs() {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, e := range pending {
		attrs := []slog.Attr{slog.String("event", string(e.Event))}
		switch e.Event {
		case recognizer.EventVoiceInputDelivered:
			attrs = append(attrs, slog.Int("length", e.Length))
		case recognizer.EventSuggestionPicked:
			attrs = append(attrs, slog.Int("index", e.Index), slog.String("suggestion", e.Suggestion))
		}
		l.log.LogAttrs(context.Background(), slog.LevelInfo, "dictation event", attrs...)
	}
}

// Pending returns a copy of the events not yet flushed.
func (l *EventLog) Pending() []recognizer.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]recognizer.Entry, len(l.pending))
	copy(out, l.pending)
	return out
}

// Totals returns the sum of all flushed edit counters.
func (l *EventLog) Totals() Corrections {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals
}
