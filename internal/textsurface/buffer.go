// Package textsurface implements an in-memory editing surface: a rune-indexed
// document with a cursor, an optional selection and a composing region.
//
// Buffer satisfies the text-surface contract the dictation controller relies
// on (batched edits, committing and deleting text around the cursor,
// extracted-text monitoring). The console host uses it as its document.
package textsurface

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/MrWong99/voxime/pkg/types"
)

// Snapshot is the extracted text reported to change listeners.
type Snapshot struct {
	Text           string
	Cursor         int
	SelectionStart int
	SelectionEnd   int
}

// Buffer is a text document owned by one editing session.
// All methods are safe for concurrent use. Positions are rune offsets.
type Buffer struct {
	mu sync.Mutex

	attrs types.FieldAttributes
	text  []rune

	// cursor is the selection end; anchor is the selection start. They are
	// equal when nothing is selected.
	cursor int
	anchor int

	// composing region [compStart, compEnd); compStart < 0 when none.
	compStart int
	compEnd   int

	batch      int
	dirty      bool
	monitoring bool
	listeners  []func(Snapshot)
}

// New returns an empty Buffer for a field with the given attributes.
func New(attrs types.FieldAttributes) *Buffer {
	return &Buffer{attrs: attrs, compStart: -1, compEnd: -1}
}

// Attributes returns the field attributes.
func (b *Buffer) Attributes() types.FieldAttributes {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attrs
}

// SetAttributes replaces the field attributes, as when focus moves to another
// field. The document is left untouched.
func (b *Buffer) SetAttributes(attrs types.FieldAttributes) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attrs = attrs
}

// Text returns the document.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

// CursorPosition returns the cursor offset.
func (b *Buffer) CursorPosition() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// SelectionLength returns the number of selected runes.
func (b *Buffer) SelectionLength() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return abs(b.cursor - b.anchor)
}

// ComposingText returns the text of the composing region, if any.
func (b *Buffer) ComposingText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.compStart < 0 {
		return ""
	}
	return string(b.text[b.compStart:b.compEnd])
}

// BeginBatchEdit opens a batch. Change listeners are held back until the
// outermost batch ends.
func (b *Buffer) BeginBatchEdit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batch++
}

// EndBatchEdit closes a batch. Unbalanced calls are ignored.
func (b *Buffer) EndBatchEdit() {
	b.mu.Lock()
	if b.batch == 0 {
		b.mu.Unlock()
		return
	}
	b.batch--
	b.notifyLocked()
}

// InBatch reports whether a batch edit is open.
func (b *Buffer) InBatch() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batch > 0
}

// SetComposingText replaces the composing region (or the selection when there
// is none) with text and marks it as composing.
func (b *Buffer) SetComposingText(text string) {
	b.mu.Lock()
	start, end := b.replaceTargetLocked()
	b.replaceLocked(start, end, []rune(text))
	b.compStart, b.compEnd = start, start+utf8.RuneCountInString(text)
	b.notifyLocked()
}

// FinishComposingText keeps the composing text in place and ends composition.
func (b *Buffer) FinishComposingText() {
	b.mu.Lock()
	if b.compStart < 0 {
		b.mu.Unlock()
		return
	}
	b.compStart, b.compEnd = -1, -1
	b.dirty = true
	b.notifyLocked()
}

// CommitText replaces the composing region (or the selection) with text and
// places the cursor after it.
func (b *Buffer) CommitText(text string) {
	b.mu.Lock()
	start, end := b.replaceTargetLocked()
	b.replaceLocked(start, end, []rune(text))
	b.compStart, b.compEnd = -1, -1
	b.notifyLocked()
}

// DeleteBeforeCursor removes up to n runes before the cursor.
func (b *Buffer) DeleteBeforeCursor(n int) {
	b.mu.Lock()
	if n <= 0 || b.cursor == 0 {
		b.mu.Unlock()
		return
	}
	start := max(b.cursor-n, 0)
	b.anchor = b.cursor
	b.replaceLocked(start, b.cursor, nil)
	b.compStart, b.compEnd = -1, -1
	b.notifyLocked()
}

// Backspace deletes the selection if there is one, else the rune before the
// cursor.
func (b *Buffer) Backspace() {
	b.mu.Lock()
	if b.cursor != b.anchor {
		start, end := b.selectionLocked()
		b.replaceLocked(start, end, nil)
	} else if b.cursor > 0 {
		b.replaceLocked(b.cursor-1, b.cursor, nil)
	} else {
		b.mu.Unlock()
		return
	}
	b.compStart, b.compEnd = -1, -1
	b.notifyLocked()
}

// SetSelection selects [start, end). Equal offsets place the cursor.
// Offsets are clamped to the document.
func (b *Buffer) SetSelection(start, end int) {
	b.mu.Lock()
	b.anchor = clamp(start, 0, len(b.text))
	b.cursor = clamp(end, 0, len(b.text))
	b.dirty = true
	b.notifyLocked()
}

// SetCursor moves the cursor and drops the selection.
func (b *Buffer) SetCursor(pos int) {
	b.SetSelection(pos, pos)
}

// ReplaceRange replaces the runes in [start, end) with text and leaves the
// cursor after the inserted text.
func (b *Buffer) ReplaceRange(start, end int, text string) {
	b.mu.Lock()
	start = clamp(start, 0, len(b.text))
	end = clamp(end, start, len(b.text))
	b.replaceLocked(start, end, []rune(text))
	b.compStart, b.compEnd = -1, -1
	b.notifyLocked()
}

// WordAtCursor returns the word touching the cursor and its range. A word is a
// maximal run of runes not in separators. ok is false when the cursor touches
// no word.
func (b *Buffer) WordAtCursor(separators string) (word string, start, end int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	isSep := func(r rune) bool { return strings.ContainsRune(separators, r) }
	start = b.cursor
	for start > 0 && !isSep(b.text[start-1]) {
		start--
	}
	end = b.cursor
	for end < len(b.text) && !isSep(b.text[end]) {
		end++
	}
	if start == end {
		return "", 0, 0, false
	}
	return string(b.text[start:end]), start, end, true
}

// RequestExtractedText turns change monitoring on or off. While monitoring,
// registered listeners receive a Snapshot after every change.
func (b *Buffer) RequestExtractedText(monitor bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.monitoring = monitor
}

// Monitoring reports whether change monitoring is on.
func (b *Buffer) Monitoring() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.monitoring
}

// OnChange registers fn to receive snapshots while monitoring is on.
func (b *Buffer) OnChange(fn func(Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Snapshot returns the current extracted text.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Buffer) snapshotLocked() Snapshot {
	start, end := b.selectionLocked()
	return Snapshot{
		Text:           string(b.text),
		Cursor:         b.cursor,
		SelectionStart: start,
		SelectionEnd:   end,
	}
}

// replaceTargetLocked returns the range an insertion replaces: the composing
// region, else the selection, else the empty range at the cursor.
func (b *Buffer) replaceTargetLocked() (int, int) {
	if b.compStart >= 0 {
		return b.compStart, b.compEnd
	}
	return b.selectionLocked()
}

func (b *Buffer) selectionLocked() (int, int) {
	return min(b.anchor, b.cursor), max(b.anchor, b.cursor)
}

// replaceLocked swaps text[start:end] for repl and collapses the cursor
// after it.
func (b *Buffer) replaceLocked(start, end int, repl []rune) {
	out := make([]rune, 0, len(b.text)-(end-start)+len(repl))
	out = append(out, b.text[:start]...)
	out = append(out, repl...)
	out = append(out, b.text[end:]...)
	b.text = out
	b.cursor = start + len(repl)
	b.anchor = b.cursor
	b.dirty = true
}

// notifyLocked releases b.mu and, outside a batch, delivers pending changes.
func (b *Buffer) notifyLocked() {
	if b.batch > 0 || !b.dirty {
		b.mu.Unlock()
		return
	}
	b.dirty = false
	if !b.monitoring || len(b.listeners) == 0 {
		b.mu.Unlock()
		return
	}
	snap := b.snapshotLocked()
	listeners := append([]func(Snapshot){}, b.listeners...)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
