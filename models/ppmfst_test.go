package models

import (
	"math"
	"testing"

	"github.com/kho/mozolm"
)

// scorePPMSequence walks seq ("" entries mean end-of-string) from p's
// start state exactly the way eval.CrossEntropy drives a hub, returning
// the negative-log-probability observed at each step.
func scorePPMSequence(t *testing.T, p *PPM, seq []string) []float64 {
	t.Helper()
	s := p.StartState()
	var negLogs []float64
	for _, sym := range seq {
		var scores mozolm.LMScores
		if !p.ExtractScores(s, &scores) {
			t.Fatalf("ExtractScores failed at state %d", s)
		}
		found := false
		for i, sy := range scores.Symbols {
			if sy == sym {
				negLogs = append(negLogs, -math.Log(scores.Probabilities[i]))
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("symbol %q not found in extracted scores at state %d", sym, s)
		}
		if sym == "" {
			break
		}
		c := []rune(sym)[0]
		p.UpdateCounts(s, []rune{c}, 1)
		s = p.NextState(s, c)
	}
	return negLogs
}

func TestPPMStaticHandCalculated(t *testing.T) {
	p, err := NewPPMFromCorpus([]string{"abaab", "aabab"}, nil, 3, 0.5, 0.75, true, DefaultPPMMaxCacheSize)
	if err != nil {
		t.Fatal(err)
	}
	got := scorePPMSequence(t, p, []string{"b", "a", "b", ""})
	want := []float64{
		-math.Log(0.125),
		-math.Log(0.5),
		-math.Log(0.5),
		-math.Log(0.411111111111),
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-5 {
			t.Errorf("step %d: neg-log-prob = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestPPMDynamicUpdate(t *testing.T) {
	p, err := NewPPMFromCorpus([]string{"abaab", "aabab"}, nil, 3, 0.5, 0.75, false, DefaultPPMMaxCacheSize)
	if err != nil {
		t.Fatal(err)
	}
	got := scorePPMSequence(t, p, []string{"b", "a", "b", ""})
	want := []float64{
		-math.Log(0.125),
		-math.Log(0.455555555556),
		-math.Log(0.524242424242),
		-math.Log(0.365961),
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-5 {
			t.Errorf("step %d: neg-log-prob = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestPPMStaticUpdateCountsIsNoop(t *testing.T) {
	p, err := NewPPMFromCorpus([]string{"abaab", "aabab"}, nil, 3, 0.5, 0.75, true, DefaultPPMMaxCacheSize)
	if err != nil {
		t.Fatal(err)
	}
	if !p.UpdateCounts(p.StartState(), []rune{'a'}, 1) {
		t.Error("static UpdateCounts should report success without mutating anything")
	}
	if !p.IsStatic() {
		t.Error("IsStatic should report true for a static model")
	}
}
