package textsurface

import (
	"testing"

	"github.com/MrWong99/voxime/pkg/types"
)

func newBuffer(text string) *Buffer {
	b := New(types.FieldAttributes{InputType: types.InputText})
	b.CommitText(text)
	return b
}

func TestCommitText(t *testing.T) {
	t.Parallel()

	b := newBuffer("hello")
	b.CommitText(" world")
	if got := b.Text(); got != "hello world" {
		t.Errorf("Text = %q", got)
	}
	if got := b.CursorPosition(); got != 11 {
		t.Errorf("cursor = %d, want 11", got)
	}
}

func TestCommitText_ReplacesSelection(t *testing.T) {
	t.Parallel()

	b := newBuffer("hello world")
	b.SetSelection(6, 11)
	if got := b.SelectionLength(); got != 5 {
		t.Errorf("SelectionLength = %d, want 5", got)
	}
	b.CommitText("there")
	if got := b.Text(); got != "hello there" {
		t.Errorf("Text = %q", got)
	}
}

func TestComposing(t *testing.T) {
	t.Parallel()

	b := newBuffer("a ")
	b.SetComposingText("wor")
	b.SetComposingText("word")
	if got := b.ComposingText(); got != "word" {
		t.Errorf("ComposingText = %q", got)
	}
	b.FinishComposingText()
	if got := b.ComposingText(); got != "" {
		t.Errorf("composition not finished: %q", got)
	}
	b.CommitText(" next")
	if got := b.Text(); got != "a word next" {
		t.Errorf("Text = %q", got)
	}
}

func TestDeleteBeforeCursor_Runes(t *testing.T) {
	t.Parallel()

	b := newBuffer("née café")
	b.DeleteBeforeCursor(4)
	if got := b.Text(); got != "née " {
		t.Errorf("Text = %q", got)
	}
	b.DeleteBeforeCursor(100)
	if got := b.Text(); got != "" {
		t.Errorf("Text = %q", got)
	}
	b.DeleteBeforeCursor(1)
	if got := b.CursorPosition(); got != 0 {
		t.Errorf("cursor = %d", got)
	}
}

func TestBackspace(t *testing.T) {
	t.Parallel()

	b := newBuffer("abc")
	b.Backspace()
	if got := b.Text(); got != "ab" {
		t.Errorf("Text = %q", got)
	}
	b.SetSelection(0, 2)
	b.Backspace()
	if got := b.Text(); got != "" {
		t.Errorf("Text = %q", got)
	}
	b.Backspace()
}

func TestBatch_NotifiesOnce(t *testing.T) {
	t.Parallel()

	b := New(types.FieldAttributes{})
	b.RequestExtractedText(true)
	var snaps []Snapshot
	b.OnChange(func(s Snapshot) { snaps = append(snaps, s) })

	b.BeginBatchEdit()
	b.BeginBatchEdit()
	b.CommitText("one ")
	b.CommitText("two")
	b.EndBatchEdit()
	if len(snaps) != 0 {
		t.Fatalf("notified inside batch: %d", len(snaps))
	}
	b.EndBatchEdit()
	if len(snaps) != 1 {
		t.Fatalf("notifications = %d, want 1", len(snaps))
	}
	if snaps[0].Text != "one two" || snaps[0].Cursor != 7 {
		t.Errorf("snapshot = %+v", snaps[0])
	}
	b.EndBatchEdit()
	if b.InBatch() {
		t.Error("unbalanced EndBatchEdit reopened a batch")
	}
}

func TestMonitoringOff_NoNotifications(t *testing.T) {
	t.Parallel()

	b := New(types.FieldAttributes{})
	n := 0
	b.OnChange(func(Snapshot) { n++ })
	b.CommitText("x")
	if n != 0 {
		t.Errorf("notified %d times without monitoring", n)
	}
	b.RequestExtractedText(true)
	b.CommitText("y")
	if n != 1 {
		t.Errorf("notified %d times, want 1", n)
	}
}

func TestWordAtCursor(t *testing.T) {
	t.Parallel()

	b := newBuffer("Hello world, again")
	tests := []struct {
		cursor   int
		want     string
		wantOK   bool
		wantFrom int
	}{
		{cursor: 2, want: "Hello", wantOK: true, wantFrom: 0},
		{cursor: 5, want: "Hello", wantOK: true, wantFrom: 0},
		{cursor: 8, want: "world", wantOK: true, wantFrom: 6},
		{cursor: 12, wantOK: false},
	}
	for _, tt := range tests {
		b.SetCursor(tt.cursor)
		word, start, _, ok := b.WordAtCursor(" ,.")
		if ok != tt.wantOK || word != tt.want || (ok && start != tt.wantFrom) {
			t.Errorf("cursor %d: got (%q, %d, %v), want (%q, %d, %v)",
				tt.cursor, word, start, ok, tt.want, tt.wantFrom, tt.wantOK)
		}
	}
}

func TestReplaceRange(t *testing.T) {
	t.Parallel()

	b := newBuffer("Hello world")
	b.ReplaceRange(0, 5, "Yellow")
	if got := b.Text(); got != "Yellow world" {
		t.Errorf("Text = %q", got)
	}
	if got := b.CursorPosition(); got != 6 {
		t.Errorf("cursor = %d, want 6", got)
	}
}
