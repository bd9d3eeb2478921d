// Package telemetry counts the corrections a user makes right after a voice
// commit and forwards them to the recognizer's logging capability.
package telemetry

import "github.com/MrWong99/voxime/pkg/recognizer"

// Tally is a snapshot of the counts accumulated since the last flush.
type Tally struct {
	Inserts      int
	Deletes      int
	Punctuations int
}

// Counter wraps a recognizer.Logger. It is owned by the dictation controller
// and is not safe for concurrent use.
type Counter struct {
	log   recognizer.Logger
	tally Tally
}

// New returns a Counter forwarding to log. A nil log discards counts.
func New(log recognizer.Logger) *Counter {
	if log == nil {
		log = recognizer.NopLogger{}
	}
	return &Counter{log: log}
}

// Insert counts n inserted runes.
func (c *Counter) Insert(n int) {
	if n <= 0 {
		return
	}
	c.tally.Inserts += n
	c.log.IncrementInsert(n)
}

// Delete counts n deleted runes.
func (c *Counter) Delete(n int) {
	if n <= 0 {
		return
	}
	c.tally.Deletes += n
	c.log.IncrementDelete(n)
}

// Punctuation counts n inserted punctuation runes.
func (c *Counter) Punctuation(n int) {
	if n <= 0 {
		return
	}
	c.tally.Punctuations += n
	c.log.IncrementInsertPunctuation(n)
}

// Backspace counts a backspace pressed with the cursor at cursor and
// selection runes selected. Nothing is deleted at offset 0; otherwise a
// selection counts its full length and a bare cursor counts one rune.
func (c *Counter) Backspace(cursor, selection int) {
	if cursor <= 0 {
		return
	}
	if selection > 0 {
		c.Delete(selection)
		return
	}
	c.Delete(1)
}

// Flush pushes the accumulated counters to the logger and resets the tally.
func (c *Counter) Flush() {
	c.log.FlushCounters()
	c.tally = Tally{}
}

// Snapshot returns the counts accumulated since the last flush.
func (c *Counter) Snapshot() Tally {
	return c.tally
}
