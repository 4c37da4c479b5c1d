package models

import (
	"testing"

	"github.com/kho/mozolm"
	"github.com/kho/mozolm/internal/utf8util"
	"github.com/kho/mozolm/wfst"
)

// buildCharNgramFst trains a character n-gram automaton the same way
// NewPPMFromCorpus does, returning the bare Fst for a read-only
// CharFST. Standing in for the full Alice in Wonderland / Sherlock
// Holmes training corpus, a small repeated vocabulary is enough to
// make the top continuation after a given prefix unambiguous.
func buildCharNgramFst(t *testing.T, lines []string, maxOrder int) *wfst.Fst {
	t.Helper()
	symbols := wfst.NewSymbolTable("<eps>")
	b := wfst.NewBuilder(symbols)
	for _, line := range lines {
		cps, err := utf8util.SplitToCodepoints(line)
		if err != nil {
			t.Fatal(err)
		}
		labels := make([]wfst.Label, len(cps))
		for i, r := range cps {
			labels[i] = symbols.Add(string(r))
		}
		for i := range labels {
			hi := i
			if hi > maxOrder-1 {
				hi = maxOrder - 1
			}
			for o := 0; o <= hi; o++ {
				b.IncrementNgram(labels[i-o:i], labels[i], 1)
			}
		}
		n := len(labels)
		hi := n
		if hi > maxOrder {
			hi = maxOrder
		}
		for o := 0; o <= hi; o++ {
			b.IncrementFinalNgram(labels[n-o:], 1)
		}
	}
	b.Link()
	fst := b.Fst()
	fst.SetHiOrder(maxOrder)
	applyUpdateExclusion(fst)
	fillBackoffCounts(fst)
	fst.ConvertCountsToNegLog()
	addPriorCounts(fst, symbols)
	return fst
}

func topContinuation(t *testing.T, m *CharFST, prefix string) string {
	t.Helper()
	s := m.StartState()
	for _, c := range prefix {
		s = m.NextState(s, c)
	}
	var scores mozolm.LMScores
	if !m.ExtractScores(s, &scores) {
		t.Fatalf("ExtractScores failed after prefix %q", prefix)
	}
	best, bestP := "", -1.0
	for i, sym := range scores.Symbols {
		if scores.Probabilities[i] > bestP {
			best, bestP = sym, scores.Probabilities[i]
		}
	}
	return best
}

func TestCharFSTTopCandidateAfterPrefix(t *testing.T) {
	lines := make([]string, 0, 20)
	for i := 0; i < 10; i++ {
		lines = append(lines, "alice said hello", "sherlock holmes said hello")
	}
	fst := buildCharNgramFst(t, lines, 5)
	m := NewCharFST(fst)

	cases := []struct {
		prefix, want string
	}{
		{"ali", "c"},
		{"alice", " "},
		{"holm", "e"},
		{"holme", "s"},
	}
	for _, c := range cases {
		if got := topContinuation(t, m, c.prefix); got != c.want {
			t.Errorf("top continuation after %q = %q, want %q", c.prefix, got, c.want)
		}
	}
}
