package mozolm

import (
	"fmt"
	"sort"
)

// Hypothesis is one ranked (symbol, probability) pair.
type Hypothesis struct {
	Symbol      string
	Probability float64
}

// GetTopHypotheses implements spec.md §4.6: ranks scores' symbols by
// probability descending, breaking ties by symbol ascending for a
// deterministic order, then truncates to topN when topN > 0.
func GetTopHypotheses(scores *LMScores, topN int) ([]Hypothesis, error) {
	if len(scores.Probabilities) != len(scores.Symbols) {
		return nil, fmt.Errorf("mozolm: scores has %d probabilities but %d symbols", len(scores.Probabilities), len(scores.Symbols))
	}
	n := len(scores.Symbols)
	if n == 0 && topN == 0 {
		return nil, fmt.Errorf("mozolm: no candidates to select top %d from", topN)
	}
	if topN > n {
		return nil, fmt.Errorf("mozolm: top_n %d exceeds %d candidates", topN, n)
	}
	hyps := make([]Hypothesis, n)
	for i, sym := range scores.Symbols {
		hyps[i] = Hypothesis{Symbol: sym, Probability: scores.Probabilities[i]}
	}
	sort.Slice(hyps, func(i, j int) bool {
		if hyps[i].Probability != hyps[j].Probability {
			return hyps[i].Probability > hyps[j].Probability
		}
		return hyps[i].Symbol < hyps[j].Symbol
	})
	if topN > 0 {
		hyps = hyps[:topN]
	}
	return hyps, nil
}
