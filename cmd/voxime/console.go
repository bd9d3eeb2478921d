package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/MrWong99/voxime/internal/hints"
	"github.com/MrWong99/voxime/internal/textsurface"
	"github.com/MrWong99/voxime/internal/voice"
)

// console is the terminal editing UI. It implements the controller's Host
// and WarningDialog and the hint Display on top of a textsurface.Buffer.
type console struct {
	out io.Writer
	buf *textsurface.Buffer

	mu              sync.Mutex
	attached        bool
	fullscreen      bool
	recognizing     bool
	candidatesShown bool
	suggestions     []string
	dialog          *voice.WarningMessage
	lastHint        string
}

var (
	_ voice.Host          = (*console)(nil)
	_ voice.WarningDialog = (*console)(nil)
	_ hints.Display       = (*console)(nil)
)

func newConsole(out io.Writer, buf *textsurface.Buffer) *console {
	return &console{out: out, buf: buf, attached: true}
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Surface returns the buffer while a field is attached.
func (c *console) Surface() voice.TextSurface {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.attached {
		return nil
	}
	return c.buf
}

func (c *console) setAttached(v bool) {
	c.mu.Lock()
	c.attached = v
	c.mu.Unlock()
}

func (c *console) ShowSuggestions(s []string) {
	c.mu.Lock()
	c.suggestions = append([]string(nil), s...)
	c.mu.Unlock()
	var b strings.Builder
	for i, w := range s {
		fmt.Fprintf(&b, " [%d] %s", i, w)
	}
	c.printf("suggestions:%s", b.String())
}

func (c *console) ClearSuggestions() {
	c.mu.Lock()
	c.suggestions = nil
	c.mu.Unlock()
}

func (c *console) Suggestions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.suggestions...)
}

func (c *console) SetCandidatesViewShown(shown bool) {
	c.mu.Lock()
	c.candidatesShown = shown
	c.mu.Unlock()
}

func (c *console) SwitchToRecognitionView(bool) {
	c.mu.Lock()
	c.recognizing = true
	c.mu.Unlock()
	c.printf("listening... (type \"stop\" when done)")
}

func (c *console) SwitchToStandardView() {
	c.mu.Lock()
	was := c.recognizing
	c.recognizing = false
	c.mu.Unlock()
	if was {
		c.printf("done listening")
	}
}

func (c *console) Vibrate() { c.printf("*bzz*") }

func (c *console) Fullscreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fullscreen
}

// CapitalizeFirstWord is true at the start of the document or a sentence.
func (c *console) CapitalizeFirstWord() bool {
	s := c.buf.Snapshot()
	before := strings.TrimRightFunc(string([]rune(s.Text)[:s.Cursor]), unicode.IsSpace)
	if before == "" {
		return true
	}
	return strings.ContainsRune(".!?\n", []rune(before)[len([]rune(before))-1])
}

// Show implements voice.WarningDialog.
func (c *console) Show(msg voice.WarningMessage) {
	c.mu.Lock()
	c.dialog = &msg
	c.mu.Unlock()
	c.printf("== %s ==\n%s\n(answer with \"ok\" or \"cancel-dialog\")", msg.Title, msg.Body)
}

// Dismiss implements voice.WarningDialog.
func (c *console) Dismiss() {
	c.mu.Lock()
	c.dialog = nil
	c.mu.Unlock()
	c.printf("(warning dismissed)")
}

func (c *console) closeDialog() {
	c.mu.Lock()
	c.dialog = nil
	c.mu.Unlock()
}

// ShowHint implements hints.Display.
func (c *console) ShowHint(text string) {
	c.mu.Lock()
	c.lastHint = text
	c.mu.Unlock()
	c.printf("hint: %s", text)
}

// render prints the document with a caret at the cursor.
func (c *console) render(state string) {
	s := c.buf.Snapshot()
	r := []rune(s.Text)
	c.printf("%q  [%s]", string(r[:s.Cursor])+"|"+string(r[s.Cursor:]), state)
}

// silence is an endless PCM source of zeros paced at real time. Close ends it.
type silence struct {
	frame time.Duration
	done  chan struct{}
	once  sync.Once
}

func newSilence(frame time.Duration) *silence {
	return &silence{frame: frame, done: make(chan struct{})}
}

func (s *silence) Read(p []byte) (int, error) {
	t := time.NewTimer(s.frame)
	defer t.Stop()
	select {
	case <-s.done:
		return 0, io.EOF
	case <-t.C:
	}
	clear(p)
	return len(p), nil
}

func (s *silence) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
