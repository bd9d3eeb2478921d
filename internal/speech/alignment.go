package speech

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/voxime/pkg/types"
)

// BuildResult turns the final transcripts of one utterance into a
// [types.VoiceResult].
//
// Candidate i joins hypothesis i of every final, falling back to the best
// hypothesis for finals with a shorter n-best list. maxAlternatives caps the
// number of candidates; zero means no cap. The alternatives map carries the
// whole best phrase mapped to the other candidates and, where a candidate has
// the same word count as the best one, each differing word mapped to its
// replacements ordered by how alike they sound.
func BuildResult(finals []types.Transcript, maxAlternatives int) types.VoiceResult {
	var utterances [][]string
	width := 0
	for _, f := range finals {
		var hyps []string
		for _, h := range f.Hypotheses {
			if t := strings.TrimSpace(h.Text); t != "" {
				hyps = append(hyps, t)
			}
		}
		if len(hyps) == 0 {
			if t := strings.TrimSpace(f.Text); t != "" {
				hyps = []string{t}
			}
		}
		if len(hyps) == 0 {
			continue
		}
		utterances = append(utterances, hyps)
		width = max(width, len(hyps))
	}
	if len(utterances) == 0 {
		return types.VoiceResult{}
	}
	if maxAlternatives > 0 {
		width = min(width, maxAlternatives)
	}

	candidates := make([]string, 0, width)
	parts := make([]string, len(utterances))
	for i := range width {
		for j, u := range utterances {
			if i < len(u) {
				parts[j] = u[i]
			} else {
				parts[j] = u[0]
			}
		}
		if c := strings.Join(parts, " "); !slices.Contains(candidates, c) {
			candidates = append(candidates, c)
		}
	}

	res := types.VoiceResult{Candidates: candidates}
	if len(candidates) < 2 {
		return res
	}
	res.Alternatives = alignWords(candidates[0], candidates[1:])
	res.Alternatives[candidates[0]] = slices.Clone(candidates[1:])
	return res
}

// alignWords compares other against best position by position and collects
// the differing words. Candidates with a different word count are skipped.
func alignWords(best string, others []string) map[string][]string {
	out := make(map[string][]string)
	bw := strings.Fields(best)
	if len(bw) < 2 {
		return out
	}
	for _, o := range others {
		ow := strings.Fields(o)
		if len(ow) != len(bw) {
			continue
		}
		for i := range bw {
			b, w := trimWord(bw[i]), trimWord(ow[i])
			if b == "" || w == "" || b == w || slices.Contains(out[b], w) {
				continue
			}
			out[b] = append(out[b], w)
		}
	}
	for b, list := range out {
		rankBySound(b, list)
	}
	return out
}

func trimWord(w string) string {
	return strings.TrimFunc(w, unicode.IsPunct)
}

// rankBySound orders alts by similarity to word: a shared Double Metaphone
// code first, then Jaro-Winkler. Ties keep recognizer order.
func rankBySound(word string, alts []string) {
	slices.SortStableFunc(alts, func(x, y string) int {
		return cmp.Compare(soundScore(word, y), soundScore(word, x))
	})
}

func soundScore(a, b string) float64 {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	score := matchr.JaroWinkler(la, lb, false)
	if sharesMetaphone(la, lb) {
		score++
	}
	return score
}

func sharesMetaphone(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}
