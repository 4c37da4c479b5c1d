package mozolm

import "github.com/kho/mozolm/wfst"

// SoftmaxRenormalize renormalizes scores.Probabilities in place so
// they sum to 1, via wfst's Kahan-compensated negative-log-domain
// renormalization (spec.md §4.7).
func SoftmaxRenormalize(scores *LMScores) {
	ws := make([]wfst.Weight, len(scores.Probabilities))
	for i, p := range scores.Probabilities {
		ws[i] = wfst.NegLog(p)
	}
	wfst.SoftmaxRenormalize(ws)
	for i, w := range ws {
		scores.Probabilities[i] = wfst.Prob(w)
	}
}
