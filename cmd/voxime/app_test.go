package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/voxime/internal/config"
	"github.com/MrWong99/voxime/internal/prefs"
	"github.com/MrWong99/voxime/internal/speech"
	"github.com/MrWong99/voxime/internal/taskqueue"
	"github.com/MrWong99/voxime/internal/textsurface"
	"github.com/MrWong99/voxime/internal/voice"
	"github.com/MrWong99/voxime/pkg/types"
)

// syncBuffer is a bytes.Buffer safe for the queue and test goroutines.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func newTestApp(t *testing.T, script map[string]any) (*app, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}

	provider, err := newScripted(script)
	if err != nil {
		t.Fatalf("newScripted: %v", err)
	}
	source := speech.AudioSourceFunc(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(make([]byte, 3200))), nil
	})
	rec := speech.New(provider, source, speech.WithProviderName("mock"))
	t.Cleanup(rec.Destroy)

	attrs := types.FieldAttributes{Package: "test", FieldID: "editor", InputType: types.InputText}
	buf := textsurface.New(attrs)
	cons := newConsole(out, buf)
	queue := taskqueue.New()

	ctrl, err := voice.New(voice.Config{
		Host:             cons,
		Queue:            queue,
		Recognizer:       rec,
		Dialog:           cons,
		Prefs:            prefs.NewMemStore(nil),
		SupportedLocales: []string{"en"},
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("voice.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = queue.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &app{
		out:     out,
		queue:   queue,
		ctrl:    ctrl,
		rec:     rec,
		buf:     buf,
		console: cons,
		field:   types.FieldContext{Locale: "en-US", Attributes: attrs},
	}, out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var homophones = map[string]any{"hypotheses": []any{"there", "their", "they're"}}

func TestApp_DictateAfterWarning(t *testing.T) {
	t.Parallel()
	a, out := newTestApp(t, homophones)
	ctx := context.Background()

	a.dispatch(ctx, "listen")
	if !strings.Contains(out.String(), `"ok" or "cancel-dialog"`) {
		t.Fatalf("warning dialog not shown, output:\n%s", out.String())
	}
	if a.buf.Text() != "" {
		t.Fatalf("text committed before the warning was confirmed: %q", a.buf.Text())
	}

	a.dispatch(ctx, "ok")
	waitFor(t, "dictated text", func() bool { return a.buf.Text() == "There" })
}

func TestApp_DeclineWarning(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, homophones)
	ctx := context.Background()

	a.dispatch(ctx, "listen")
	a.dispatch(ctx, "cancel-dialog")

	var state voice.State
	a.do(ctx, func() { state = a.ctrl.State() })
	if state != voice.Idle {
		t.Errorf("state = %v, want %v", state, voice.Idle)
	}
	if a.buf.Text() != "" {
		t.Errorf("text = %q, want empty", a.buf.Text())
	}
}

func TestApp_PickAlternate(t *testing.T) {
	t.Parallel()
	a, out := newTestApp(t, homophones)
	ctx := context.Background()

	a.dispatch(ctx, "listen")
	a.dispatch(ctx, "ok")
	waitFor(t, "dictated text", func() bool { return a.buf.Text() == "There" })

	a.dispatch(ctx, "touch")
	if got := a.console.Suggestions(); len(got) != 2 || got[0] != "Their" || got[1] != "They're" {
		t.Fatalf("suggestions = %q, want [Their They're]", got)
	}
	if !strings.Contains(out.String(), "[0] Their") {
		t.Errorf("suggestions not printed, output:\n%s", out.String())
	}

	a.dispatch(ctx, "pick 1")
	if got := a.buf.Text(); got != "They're" {
		t.Errorf("text = %q, want %q", got, "They're")
	}
	if got := a.console.Suggestions(); len(got) != 0 {
		t.Errorf("suggestions not cleared: %q", got)
	}

	// The replacement keeps offering the remaining and the original words.
	a.dispatch(ctx, "touch")
	if got := a.console.Suggestions(); len(got) != 2 || got[0] != "Their" || got[1] != "There" {
		t.Errorf("suggestions after pick = %q, want [Their There]", got)
	}
}

func TestApp_Revert(t *testing.T) {
	t.Parallel()
	a, out := newTestApp(t, homophones)
	ctx := context.Background()

	a.dispatch(ctx, "type hi")
	a.dispatch(ctx, "sep")
	a.dispatch(ctx, "listen")
	a.dispatch(ctx, "ok")
	waitFor(t, "dictated text", func() bool { return a.buf.Text() == "hi there" })

	a.dispatch(ctx, "revert")
	if got := a.buf.Text(); got != "hi " {
		t.Errorf("text after revert = %q, want %q", got, "hi ")
	}
	a.dispatch(ctx, "revert")
	if !strings.Contains(out.String(), "nothing to revert") {
		t.Errorf("second revert should report nothing to revert, output:\n%s", out.String())
	}
}

func TestApp_TypingEditsBuffer(t *testing.T) {
	t.Parallel()
	a, out := newTestApp(t, homophones)
	ctx := context.Background()

	a.dispatch(ctx, "type abc")
	a.dispatch(ctx, "sep")
	a.dispatch(ctx, "bs")
	a.dispatch(ctx, "bs")
	if got := a.buf.Text(); got != "ab" {
		t.Errorf("text = %q, want %q", got, "ab")
	}

	a.dispatch(ctx, "cursor 1")
	a.dispatch(ctx, "show")
	if !strings.Contains(out.String(), `"a|b"`) {
		t.Errorf("show output missing caret, got:\n%s", out.String())
	}
}

func TestApp_TouchWithoutWord(t *testing.T) {
	t.Parallel()
	a, out := newTestApp(t, homophones)
	ctx := context.Background()

	a.dispatch(ctx, "touch")
	a.dispatch(ctx, "pick 0")
	a.dispatch(ctx, "type hello")
	a.dispatch(ctx, "touch")

	got := out.String()
	for _, want := range []string{"touches no word", "no such alternate", `no alternates for "hello"`} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q, got:\n%s", want, got)
		}
	}
}

func TestApp_HideDetachesSurface(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, homophones)
	ctx := context.Background()

	a.dispatch(ctx, "hide")
	if s := a.console.Surface(); s != nil {
		t.Errorf("Surface() = %v after hide, want nil", s)
	}
	a.dispatch(ctx, "listen")
	if s := a.console.Surface(); s == nil {
		t.Error("Surface() = nil after listen, want the buffer")
	}
}

func TestApp_PasswordFieldOffersNoVoice(t *testing.T) {
	t.Parallel()
	a, out := newTestApp(t, homophones)
	a.field.Attributes.InputType = types.InputPassword

	a.dispatch(context.Background(), "listen")
	if !strings.Contains(out.String(), "not available for this field") {
		t.Errorf("expected refusal, got:\n%s", out.String())
	}
}

func TestApp_Dispatch(t *testing.T) {
	t.Parallel()
	a, out := newTestApp(t, homophones)
	ctx := context.Background()

	tests := []struct {
		line     string
		wantQuit bool
		wantOut  string
	}{
		{line: "", wantQuit: false},
		{line: "help", wantOut: "commands:"},
		{line: "frobnicate", wantOut: `unknown command "frobnicate"`},
		{line: "cursor x", wantOut: "cursor:"},
		{line: "pick x", wantOut: "pick:"},
		{line: "quit", wantQuit: true},
		{line: "  exit  ", wantQuit: true},
	}
	for _, tt := range tests {
		if got := a.dispatch(ctx, tt.line); got != tt.wantQuit {
			t.Errorf("dispatch(%q) = %v, want %v", tt.line, got, tt.wantQuit)
		}
		if tt.wantOut != "" && !strings.Contains(out.String(), tt.wantOut) {
			t.Errorf("dispatch(%q) output missing %q", tt.line, tt.wantOut)
		}
	}
}

func TestRepl_StopsOnQuitAndEOF(t *testing.T) {
	t.Parallel()
	a, out := newTestApp(t, homophones)

	if err := repl(context.Background(), strings.NewReader("type x\nquit\ntype y\n"), a); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if got := a.buf.Text(); got != "x" {
		t.Errorf("text = %q, want %q (commands after quit must not run)", got, "x")
	}
	if !strings.Contains(out.String(), `type "help"`) {
		t.Errorf("missing banner, got:\n%s", out.String())
	}

	if err := repl(context.Background(), strings.NewReader("type z"), a); err != nil {
		t.Fatalf("repl at EOF: %v", err)
	}
	if got := a.buf.Text(); got != "xz" {
		t.Errorf("text = %q, want %q", got, "xz")
	}
}

func TestApplyReload(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, homophones)

	old := &config.Config{}
	config.ApplyDefaults(old)
	next := &config.Config{}
	config.ApplyDefaults(next)
	next.Server.LogLevel = config.LogDebug
	next.Voice.SupportedLocales = []string{"de"}
	next.Voice.Denylist = []config.DenyEntry{{Package: "test", FieldID: "editor"}}

	level := new(slog.LevelVar)
	applyReload(config.Diff(old, next), next, level, a.queue, a.ctrl, a.rec)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	if !a.rec.IsFieldDenylisted(a.field) {
		t.Error("denylist was not applied to the recognizer")
	}

	var enabled bool
	a.do(context.Background(), func() {
		a.ctrl.LoadSettings(context.Background(), a.field)
		enabled = a.ctrl.VoiceButtonEnabled()
	})
	if enabled {
		t.Error("voice button enabled on a denylisted field")
	}
}
