package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/voxime/pkg/provider/stt"
	"github.com/MrWong99/voxime/pkg/provider/stt/mock"
	"github.com/MrWong99/voxime/pkg/types"
)

// defaultScript is recognised when the mock provider has no script.
var defaultScript = [][]string{{"hello world", "hello word", "yellow world"}}

// scripted is an offline STT provider. Every stream yields the same finals,
// one per utterance, each carrying its hypotheses best-first.
type scripted struct {
	finals [][]string
}

var _ stt.Provider = (*scripted)(nil)

// newScripted reads the script from provider options. "utterances" is a list
// of hypothesis lists; "hypotheses" is shorthand for a single utterance.
func newScripted(opts map[string]any) (*scripted, error) {
	var finals [][]string
	if raw, ok := opts["utterances"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("mock: utterances must be a list, got %T", raw)
		}
		for i, u := range list {
			hyps, err := stringList(u)
			if err != nil {
				return nil, fmt.Errorf("mock: utterance %d: %w", i, err)
			}
			finals = append(finals, hyps)
		}
	}
	if raw, ok := opts["hypotheses"]; ok {
		hyps, err := stringList(raw)
		if err != nil {
			return nil, fmt.Errorf("mock: hypotheses: %w", err)
		}
		finals = append(finals, hyps)
	}
	if len(finals) == 0 {
		finals = defaultScript
	}
	return &scripted{finals: finals}, nil
}

func stringList(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("want a list of strings, got %T", v)
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("want a string, got %T", e)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no hypotheses")
	}
	return out, nil
}

// StartStream returns a session whose finals are already queued. They are
// read once the audio ends and the session closes.
func (s *scripted) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess := mock.NewSession()
	sess.FinalsCh = make(chan types.Transcript, len(s.finals))
	for _, hyps := range s.finals {
		n := len(hyps)
		if cfg.MaxAlternatives > 0 {
			n = min(n, cfg.MaxAlternatives)
		}
		t := types.Transcript{Text: hyps[0], IsFinal: true, Confidence: 1}
		for i, h := range hyps[:n] {
			t.Hypotheses = append(t.Hypotheses, types.Hypothesis{
				Text:       h,
				Confidence: 1 / float64(i+1),
			})
		}
		sess.FinalsCh <- t
	}
	return sess, nil
}
