package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/voxime/internal/speech"
	"github.com/MrWong99/voxime/internal/taskqueue"
	"github.com/MrWong99/voxime/internal/textsurface"
	"github.com/MrWong99/voxime/internal/voice"
	"github.com/MrWong99/voxime/pkg/types"
)

// separators end a word in the console document.
const separators = " .,;:!?\n\t"

const helpText = `commands:
  listen [swipe]   start dictation into the field
  ok               accept the first-use warning
  cancel-dialog    decline the first-use warning
  stop             finish speaking and deliver the result
  close            abort dictation
  type <text>      type text at the cursor
  sep <char>       type a separator (default: space)
  bs               backspace
  cursor <n>       move the cursor to rune offset n
  touch            show alternates for the word at the cursor
  pick <n>         replace the touched word with alternate n
  revert           remove the dictated text while it is highlighted
  hide             hide the keyboard (ends the editing session)
  show             print the document and session state
  quit             exit`

// app holds the running console session. Controller access happens only on
// the queue goroutine via do.
type app struct {
	out     io.Writer
	queue   *taskqueue.Queue
	ctrl    *voice.Controller
	rec     *speech.Recognizer
	buf     *textsurface.Buffer
	console *console
	field   types.FieldContext

	touched      string
	touchedStart int
	touchedEnd   int
}

// do runs fn on the controller goroutine and waits for it. It returns false
// when the queue is already closed.
func (a *app) do(ctx context.Context, fn func()) bool {
	done := make(chan struct{})
	if !a.queue.Post(func() { fn(); close(done) }) {
		return false
	}
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// dispatch executes one REPL line and reports whether the user asked to quit.
func (a *app) dispatch(ctx context.Context, line string) (quit bool) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "":
	case "help", "?":
		fmt.Fprintln(a.out, helpText)
	case "quit", "exit":
		return true
	case "listen":
		a.console.setAttached(true)
		a.do(ctx, func() {
			a.ctrl.ResetFlags(a.field.Attributes.InputType.IsPassword())
			a.ctrl.LoadSettings(ctx, a.field)
			if !a.ctrl.VoiceButtonEnabled() {
				fmt.Fprintln(a.out, "voice input is not available for this field")
				return
			}
			a.ctrl.StartListening(ctx, a.field, arg == "swipe", false)
		})
	case "ok":
		a.console.closeDialog()
		a.do(ctx, func() { a.ctrl.ConfirmWarning(ctx) })
	case "cancel-dialog":
		a.console.closeDialog()
		a.do(ctx, a.ctrl.DeclineWarning)
	case "stop":
		a.rec.StopListening()
	case "close":
		a.do(ctx, a.ctrl.HandleClose)
	case "type":
		for _, r := range arg {
			a.typeRune(ctx, r)
		}
	case "sep":
		r := ' '
		if arg != "" {
			r, _ = utf8.DecodeRuneInString(arg)
		}
		a.typeRune(ctx, r)
	case "bs":
		a.do(ctx, func() {
			a.ctrl.HandleBackspace()
			a.buf.Backspace()
		})
	case "cursor":
		n, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintf(a.out, "cursor: %v\n", err)
			return false
		}
		a.buf.SetCursor(n)
	case "touch":
		a.touch(ctx)
	case "pick":
		n, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintf(a.out, "pick: %v\n", err)
			return false
		}
		a.pick(ctx, n)
	case "revert":
		a.do(ctx, func() {
			if !a.ctrl.Revert() {
				fmt.Fprintln(a.out, "nothing to revert")
			}
		})
	case "hide":
		a.do(ctx, func() { a.ctrl.Teardown(false) })
		a.console.setAttached(false)
	case "show":
		a.do(ctx, func() { a.console.render(a.ctrl.String()) })
	default:
		fmt.Fprintf(a.out, "unknown command %q, try \"help\"\n", cmd)
	}
	return false
}

func (a *app) typeRune(ctx context.Context, r rune) {
	a.do(ctx, func() {
		if strings.ContainsRune(separators, r) {
			a.ctrl.HandleSeparator()
		} else {
			a.ctrl.HandleCharacter()
		}
		a.buf.CommitText(string(r))
	})
}

func (a *app) touch(ctx context.Context) {
	word, start, end, ok := a.buf.WordAtCursor(separators)
	if !ok {
		fmt.Fprintln(a.out, "the cursor touches no word")
		return
	}
	a.do(ctx, func() {
		if !a.ctrl.ApplyVoiceAlternatives(word) {
			fmt.Fprintf(a.out, "no alternates for %q\n", word)
			return
		}
		a.touched, a.touchedStart, a.touchedEnd = word, start, end
	})
}

func (a *app) pick(ctx context.Context, n int) {
	a.do(ctx, func() {
		suggestions := a.console.Suggestions()
		if a.touched == "" || n < 0 || n >= len(suggestions) {
			fmt.Fprintln(a.out, "no such alternate; use \"touch\" first")
			return
		}
		choice := suggestions[n]
		a.buf.ReplaceRange(a.touchedStart, a.touchedEnd, choice)
		a.ctrl.RememberReplacedWord(a.touched, choice)
		a.ctrl.LogSuggestionPicked(n, choice)
		a.console.ClearSuggestions()
		a.touched = ""
	})
}
