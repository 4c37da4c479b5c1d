// Package eval implements the corpus-driving tools of spec.md §4.8 and
// §4.9: cross-entropy evaluation and random text generation, both
// driven through a *mozolm.Hub the same way the RPC server is.
package eval

import (
	"math"

	"github.com/kho/mozolm"
)

// NumCodepoints is spec.md §5's num_codepoints: the size of the
// uniform distribution cross-entropy mixes against.
const NumCodepoints = 143859

// MixEpsilon is spec.md §5's mix_epsilon.
const MixEpsilon = 1e-8

// CrossEntropyResult is the summary spec.md §4.8 step 4 emits.
type CrossEntropyResult struct {
	TotalChars        int
	OOVCount          int
	AverageBitsPerChar float64
}

// CrossEntropy runs spec.md §4.8 over lines: for each line, walks the
// hub from its start state one codepoint at a time (including a
// trailing end-of-string symbol), mixes the model's probability for
// the observed symbol with a uniform-over-codepoints distribution,
// accumulates bits, counts out-of-vocabulary symbols (those the
// model's distribution omits), and updates the model with what it
// observed before advancing -- mirroring the RPC server's own
// extract-then-update-then-advance sequencing (spec.md §6).
func CrossEntropy(h *mozolm.Hub, lines []string) CrossEntropyResult {
	var result CrossEntropyResult
	for _, line := range lines {
		symbols := append([]rune(line), 0)
		s := 0
		for i, c := range symbols {
			sym := string(c)
			if i == len(symbols)-1 {
				sym = "" // end-of-string marker, spec.md §4.8 step 1
			}
			var scores mozolm.LMScores
			if !h.ExtractScores(s, &scores) {
				break
			}
			p, found := lookupProb(&scores, sym)
			if !found {
				result.OOVCount++
			}
			mixed := MixEpsilon/NumCodepoints + (1-MixEpsilon)*p
			result.AverageBitsPerChar += -math.Log2(mixed)
			result.TotalChars++
			if sym == "" {
				break
			}
			h.UpdateCounts(s, []rune{c}, 1)
			s = h.NextState(s, c)
		}
	}
	if result.TotalChars > 0 {
		result.AverageBitsPerChar /= float64(result.TotalChars)
	}
	return result
}

func lookupProb(scores *mozolm.LMScores, sym string) (float64, bool) {
	for i, s := range scores.Symbols {
		if s == sym {
			return scores.Probabilities[i], true
		}
	}
	return 0, false
}
