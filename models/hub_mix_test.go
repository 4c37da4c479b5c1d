package models

import (
	"math"
	"testing"

	"github.com/kho/mozolm"
	"github.com/kho/mozolm/wfst"
)

// TestHubBayesianTwoModelMix is spec.md's hub Bayesian two-model mix
// scenario: a 3-outcome PPM over {a, b, </s>} and a 2-outcome PPM over
// {a, </s>}, both max_order 2 and dynamic, mixed with equal priors and
// bayesian_history_length 2.
func TestHubBayesianTwoModelMix(t *testing.T) {
	syms1 := wfst.NewSymbolTable("<eps>")
	syms1.Add("a")
	syms1.Add("b")
	m1 := NewPPMFromVocab(syms1, 2, DefaultPPMAlpha, DefaultPPMBeta, false, DefaultPPMMaxCacheSize)

	syms2 := wfst.NewSymbolTable("<eps>")
	syms2.Add("a")
	m2 := NewPPMFromVocab(syms2, 2, DefaultPPMAlpha, DefaultPPMBeta, false, DefaultPPMMaxCacheSize)

	hub, err := mozolm.NewHub(
		[]mozolm.LanguageModel{m1, m2},
		[]wfst.Weight{0, 0},
		mozolm.MixtureInterpolation, 2, 0,
	)
	if err != nil {
		t.Fatal(err)
	}

	if !hub.UpdateCounts(0, []rune{'a'}, 1) {
		t.Fatal("UpdateCounts failed")
	}
	dest := hub.NextState(0, 'a')

	var scores mozolm.LMScores
	if !hub.ExtractScores(dest, &scores) {
		t.Fatal("ExtractScores failed")
	}
	want := map[string]float64{"": 0.3, "a": 0.6, "b": 0.1}
	if len(scores.Symbols) != len(want) {
		t.Fatalf("got %d symbols, want %d: %v", len(scores.Symbols), len(want), scores.Symbols)
	}
	for i, sym := range scores.Symbols {
		wp, ok := want[sym]
		if !ok {
			t.Fatalf("unexpected symbol %q", sym)
		}
		if math.Abs(scores.Probabilities[i]-wp) > 1e-3 {
			t.Errorf("P(%q) = %g, want %g", sym, scores.Probabilities[i], wp)
		}
	}
}
