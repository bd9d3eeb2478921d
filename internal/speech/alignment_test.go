package speech

import (
	"slices"
	"testing"

	"github.com/MrWong99/voxime/pkg/types"
)

func hyps(texts ...string) types.Transcript {
	t := types.Transcript{IsFinal: true}
	for _, s := range texts {
		t.Hypotheses = append(t.Hypotheses, types.Hypothesis{Text: s})
	}
	if len(texts) > 0 {
		t.Text = texts[0]
	}
	return t
}

func TestBuildResult_SingleFinalNBest(t *testing.T) {
	t.Parallel()
	res := BuildResult([]types.Transcript{hyps("hello world", "hello word", "yellow world")}, 0)

	wantCands := []string{"hello world", "hello word", "yellow world"}
	if !slices.Equal(res.Candidates, wantCands) {
		t.Fatalf("Candidates = %q, want %q", res.Candidates, wantCands)
	}
	if got := res.Alternatives["hello world"]; !slices.Equal(got, []string{"hello word", "yellow world"}) {
		t.Errorf("phrase alternatives = %q", got)
	}
	if got := res.Alternatives["world"]; !slices.Equal(got, []string{"word"}) {
		t.Errorf("alternatives[world] = %q, want [word]", got)
	}
	if got := res.Alternatives["hello"]; !slices.Equal(got, []string{"yellow"}) {
		t.Errorf("alternatives[hello] = %q, want [yellow]", got)
	}
}

func TestBuildResult_JoinsFinals(t *testing.T) {
	t.Parallel()
	res := BuildResult([]types.Transcript{
		hyps("I scream", "ice cream"),
		hyps("for you"),
		{Text: "   ", IsFinal: true},
	}, 0)

	want := []string{"I scream for you", "ice cream for you"}
	if !slices.Equal(res.Candidates, want) {
		t.Fatalf("Candidates = %q, want %q", res.Candidates, want)
	}
	if len(res.Alternatives) != 1 {
		t.Errorf("Alternatives = %v, want only the phrase entry (word counts differ)", res.Alternatives)
	}
}

func TestBuildResult_CapsAndDedups(t *testing.T) {
	t.Parallel()
	res := BuildResult([]types.Transcript{
		hyps("a b", "a c", "a d"),
		hyps("x"),
	}, 2)
	want := []string{"a b x", "a c x"}
	if !slices.Equal(res.Candidates, want) {
		t.Errorf("Candidates = %q, want %q", res.Candidates, want)
	}

	res = BuildResult([]types.Transcript{hyps("same", "same")}, 0)
	if !slices.Equal(res.Candidates, []string{"same"}) || res.Alternatives != nil {
		t.Errorf("duplicate hypotheses: got %+v", res)
	}
}

func TestBuildResult_TextWithoutHypotheses(t *testing.T) {
	t.Parallel()
	res := BuildResult([]types.Transcript{{Text: " plain ", IsFinal: true}}, 0)
	if !slices.Equal(res.Candidates, []string{"plain"}) {
		t.Errorf("Candidates = %q", res.Candidates)
	}
}

func TestBuildResult_Empty(t *testing.T) {
	t.Parallel()
	res := BuildResult(nil, 3)
	if _, ok := res.Best(); ok {
		t.Errorf("Best() ok for empty input: %+v", res)
	}
}

func TestBuildResult_RanksWordsBySound(t *testing.T) {
	t.Parallel()
	res := BuildResult([]types.Transcript{hyps("a night out", "a kite out", "a knight out")}, 0)

	got := res.Alternatives["night"]
	want := []string{"knight", "kite"}
	if !slices.Equal(got, want) {
		t.Errorf("alternatives[night] = %q, want %q", got, want)
	}
}

func TestBuildResult_TrimsPunctuationFromWords(t *testing.T) {
	t.Parallel()
	res := BuildResult([]types.Transcript{hyps("see you there.", "see you their.")}, 0)
	if got := res.Alternatives["there"]; !slices.Equal(got, []string{"their"}) {
		t.Errorf("alternatives[there] = %q, want [their]", got)
	}
}
