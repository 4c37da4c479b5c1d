package eval

import (
	"math/rand"

	"github.com/kho/mozolm"
)

// MaxRandGenLen is spec.md §5's max_rand_gen_len: additional
// codepoints allowed per RandGen call beyond the prefix length.
const MaxRandGenLen = 128

// RandGen implements spec.md §4.9: walks h from prefix, repeatedly
// drawing a symbol by sampling the current distribution (inverse CDF
// against a uniform threshold from rng), until an empty-string draw, a
// failed extraction, or the length cap (128 + len(prefix) codepoints)
// is reached. The returned string is prefix followed by the generated
// continuation and, on a non-clean stop, one of the two literal
// sentinels spec.md §4.9 names.
func RandGen(h *mozolm.Hub, prefix string, rng *rand.Rand) string {
	s := h.ContextState(prefix, -1)
	maxLen := MaxRandGenLen + len([]rune(prefix))

	out := []rune(prefix)
	for n := len([]rune(prefix)); n < maxLen; n++ {
		var scores mozolm.LMScores
		if !h.ExtractScores(s, &scores) {
			return string(out) + "(subsequent generation failed)"
		}
		sym, ok := sampleSymbol(&scores, rng.Float64())
		if !ok {
			return string(out) + "(subsequent generation failed)"
		}
		if sym == "" {
			return string(out)
		}
		c := []rune(sym)[0]
		h.UpdateCounts(s, []rune{c}, 1)
		s = h.NextState(s, c)
		out = append(out, c)
	}
	return string(out) + "(reached_length_limit)"
}

// sampleSymbol draws a symbol from scores by inverse CDF against
// threshold (spec.md §4.9's "uniform threshold in [0, 1)"), returning
// false if scores has no symbols at all.
func sampleSymbol(scores *mozolm.LMScores, threshold float64) (string, bool) {
	if len(scores.Symbols) == 0 {
		return "", false
	}
	var cum float64
	for i, sym := range scores.Symbols {
		cum += scores.Probabilities[i]
		if threshold < cum {
			return sym, true
		}
	}
	return scores.Symbols[len(scores.Symbols)-1], true
}
