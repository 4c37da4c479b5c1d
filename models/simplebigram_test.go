package models

import (
	"math"
	"testing"

	"github.com/kho/mozolm"
)

func TestSimpleBigramUniformDefault(t *testing.T) {
	m := NewDefaultSimpleBigram()
	var scores mozolm.LMScores
	if !m.ExtractScores(m.StartState(), &scores) {
		t.Fatal("ExtractScores failed")
	}
	if len(scores.Symbols) != 28 {
		t.Fatalf("got %d symbols, want 28", len(scores.Symbols))
	}
	want := 1.0 / 28.0
	for i, p := range scores.Probabilities {
		if math.Abs(p-want) > 1e-6 {
			t.Errorf("symbol %q: prob = %g, want %g", scores.Symbols[i], p, want)
		}
	}
	if scores.Symbols[0] != "" {
		t.Errorf("symbol 0 = %q, want end-of-string sentinel", scores.Symbols[0])
	}
}

func TestSimpleBigramUpdateCounts(t *testing.T) {
	m := NewDefaultSimpleBigram()
	s := m.NextState(m.StartState(), 'a')
	if s < 0 {
		t.Fatal("NextState('a') returned -1")
	}
	if !m.UpdateCounts(s, []rune{'b'}, 5) {
		t.Fatal("UpdateCounts failed")
	}
	var scores mozolm.LMScores
	if !m.ExtractScores(s, &scores) {
		t.Fatal("ExtractScores failed")
	}
	bIdx := m.index['b']
	// Default row starts at 1 per cell with 28 cells; adding 5 to one
	// cell makes it 6 out of a 33-total row.
	want := 6.0 / 33.0
	if math.Abs(scores.Probabilities[bIdx]-want) > 1e-9 {
		t.Errorf("P(b|a) = %g, want %g", scores.Probabilities[bIdx], want)
	}
}

func TestSimpleBigramUpdateCountsRejectsNonPositive(t *testing.T) {
	m := NewDefaultSimpleBigram()
	if m.UpdateCounts(m.StartState(), []rune{'a'}, 0) {
		t.Error("UpdateCounts with count 0 should fail")
	}
}
