package wfst

import (
	"math"
	"strings"
	"testing"
)

func TestSemiringRoundTrip(t *testing.T) {
	for _, p := range []float64{1, 0.5, 0.1, 0.001, 1e-9} {
		w := NegLog(p)
		got := Prob(w)
		if math.Abs(got-p) > 1e-9 {
			t.Errorf("Prob(NegLog(%g)) = %g, want %g", p, got, p)
		}
	}
	if Prob(Zero) != 0 {
		t.Errorf("Prob(Zero) = %g, want 0", Prob(Zero))
	}
	if NegLog(0) != Zero {
		t.Errorf("NegLog(0) = %v, want Zero", NegLog(0))
	}
}

func TestNegLogSum(t *testing.T) {
	a, b := NegLog(0.3), NegLog(0.4)
	got := Prob(NegLogSum(a, b))
	if math.Abs(got-0.7) > 1e-9 {
		t.Errorf("NegLogSum(0.3, 0.4) prob = %g, want 0.7", got)
	}
	if NegLogSum(Zero, a) != a {
		t.Errorf("NegLogSum(Zero, a) = %v, want %v", NegLogSum(Zero, a), a)
	}
}

func TestNegLogDiff(t *testing.T) {
	a, b := NegLog(0.7), NegLog(0.3)
	got := Prob(NegLogDiff(a, b))
	if math.Abs(got-0.4) > 1e-9 {
		t.Errorf("NegLogDiff(0.7,0.3) prob = %g, want 0.4", got)
	}
	if NegLogDiff(a, Zero) != a {
		t.Errorf("NegLogDiff(a, Zero) = %v, want %v", NegLogDiff(a, Zero), a)
	}
}

func TestSafeNegLogDiffPanicsBeyondTolerance(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for out-of-tolerance SafeNegLogDiff")
		}
	}()
	SafeNegLogDiff(NegLog(0.3), NegLog(0.7))
}

func TestSafeNegLogDiffToleratesNoise(t *testing.T) {
	a := NegLog(0.3)
	b := a - Weight(1e-9)
	if got := SafeNegLogDiff(a, b); got != Zero && Prob(got) > 1e-6 {
		t.Errorf("SafeNegLogDiff with noise = %v, want ~Zero", got)
	}
}

func TestSoftmaxRenormalize(t *testing.T) {
	ws := []Weight{NegLog(0.2), NegLog(0.2), NegLog(0.2)}
	SoftmaxRenormalize(ws)
	var total float64
	for _, w := range ws {
		total += Prob(w)
	}
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("renormalized total = %g, want 1", total)
	}
}

func TestSymbolTable(t *testing.T) {
	tab := NewSymbolTable("<eps>")
	a := tab.Add("a")
	b := tab.Add("b")
	if a == b {
		t.Errorf("distinct symbols got same label")
	}
	if tab.Find("<eps>") != Epsilon {
		t.Errorf("epsilon not at label 0")
	}
	if tab.FindSymbol(a) != "a" {
		t.Errorf("FindSymbol(%d) = %q, want %q", a, tab.FindSymbol(a), "a")
	}
	if tab.Find("nope") != NoLabel {
		t.Errorf("Find of absent symbol did not return NoLabel")
	}

	data, err := tab.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var tab2 SymbolTable
	if err := tab2.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if tab2.Find("a") != a || tab2.Find("b") != b {
		t.Errorf("round-tripped table lost symbols")
	}
}

func TestArcMapBasic(t *testing.T) {
	m := newArcMap()
	for i := Label(0); i < 20; i++ {
		a := m.FindOrInsert(i)
		a.NextState = StateId(i + 1)
		a.Weight = NegLog(1.0 / float64(i+1))
	}
	if m.Size() != 20 {
		t.Fatalf("Size() = %d, want 20", m.Size())
	}
	for i := Label(0); i < 20; i++ {
		a := m.Find(i)
		if a == nil || a.NextState != StateId(i+1) {
			t.Errorf("Find(%d) = %v, want NextState %d", i, a, i+1)
		}
	}
	if m.Find(999) != nil {
		t.Errorf("Find of absent label returned non-nil")
	}
	labels := m.Labels()
	for i, l := range labels {
		if l != Label(i) {
			t.Errorf("Labels()[%d] = %d, want sorted order", i, l)
			break
		}
	}
}

func buildTrigramFst(t *testing.T) (*Fst, *SymbolTable) {
	t.Helper()
	syms := NewSymbolTable("<eps>")
	bos := syms.Add("<s>")
	eos := syms.Add("</s>")
	the := syms.Add("the")
	cat := syms.Add("cat")
	sat := syms.Add("sat")

	b := NewBuilder(syms)
	b.AddNgram(nil, bos, NegLog(1), NegLog(0.5))
	b.AddNgram(nil, the, NegLog(0.4), NegLog(0.3))
	b.AddNgram(nil, cat, NegLog(0.3), NegLog(0.2))
	b.AddNgram(nil, sat, NegLog(0.2), NegLog(0.1))
	b.AddNgram(nil, eos, NegLog(0.1), Zero)

	b.AddNgram([]Label{bos}, the, NegLog(0.9), NegLog(0.1))
	b.AddNgram([]Label{the}, cat, NegLog(0.8), NegLog(0.2))
	b.AddNgram([]Label{cat}, sat, NegLog(0.7), NegLog(0.3))
	b.AddNgram([]Label{sat}, eos, NegLog(0.6), Zero)

	b.AddNgram([]Label{bos, the}, cat, NegLog(0.95), Zero)
	b.AddNgram([]Label{the, cat}, sat, NegLog(0.9), Zero)
	b.AddNgram([]Label{cat, sat}, eos, NegLog(0.85), Zero)

	b.Link()
	return b.fst, syms
}

func TestBuilderLinkTopology(t *testing.T) {
	fst, _ := buildTrigramFst(t)
	if err := fst.CheckTopology(); err != nil {
		t.Errorf("CheckTopology: %v", err)
	}
	if fst.UnigramState() != fst.Start() {
		t.Errorf("UnigramState() = %d, want start state %d", fst.UnigramState(), fst.Start())
	}
}

func TestBuilderLinkBackoffChain(t *testing.T) {
	fst, syms := buildTrigramFst(t)
	bos, the := syms.Find("<s>"), syms.Find("the")

	bosState, ok := fst.FindArc(fst.Start(), bos)
	if !ok {
		t.Fatal("no arc for <s> from start state")
	}
	theState, ok := fst.FindArc(bosState.NextState, the)
	if !ok {
		t.Fatal("no arc for the from <s> state")
	}
	bo, _ := fst.GetBackoff(theState.NextState)
	if bo == NoState {
		t.Errorf("bigram state (<s>,the) has unresolved backoff")
	}
}

func TestFstIncrementArcAndFinal(t *testing.T) {
	syms := NewSymbolTable("<eps>")
	a := syms.Add("a")
	f := New(syms)
	s := f.Start()
	f.IncrementArc(s, a, f.AddState(), One)
	f.IncrementArc(s, a, NoState, One)
	arc, ok := f.FindArc(s, a)
	if !ok {
		t.Fatal("arc not found after IncrementArc")
	}
	if got := Prob(arc.Weight); math.Abs(got-2) > 1e-9 {
		t.Errorf("count after two increments = %g, want 2", got)
	}
	f.IncrementFinal(s, NegLog(0.5))
	f.IncrementFinal(s, NegLog(0.5))
	if got := Prob(f.Final(s)); math.Abs(got-1) > 1e-9 {
		t.Errorf("final after two increments = %g, want 1", got)
	}
}

func TestFstGobRoundTrip(t *testing.T) {
	fst, _ := buildTrigramFst(t)
	data, err := fst.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var got Fst
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got.NumStates() != fst.NumStates() {
		t.Errorf("round-tripped NumStates = %d, want %d", got.NumStates(), fst.NumStates())
	}
	for p := StateId(0); int(p) < fst.NumStates(); p++ {
		if got.NumArcs(p) != fst.NumArcs(p) {
			t.Errorf("state %d: round-tripped NumArcs = %d, want %d", p, got.NumArcs(p), fst.NumArcs(p))
		}
	}
}

func TestReadARPA(t *testing.T) {
	const arpa = `\data\
ngram 1=3
ngram 2=2

\1-grams:
-1.0 <s>
-0.5 a
-0.3 </s>

\2-grams:
-0.2 <s> a
-0.1 a </s>

\end\
`
	syms := NewSymbolTable("<eps>")
	fst, err := ReadARPA(strings.NewReader(arpa), syms)
	if err != nil {
		t.Fatalf("ReadARPA: %v", err)
	}
	if err := fst.CheckTopology(); err != nil {
		t.Errorf("CheckTopology: %v", err)
	}
	if fst.HiOrder() != 2 {
		t.Errorf("HiOrder() = %d, want 2", fst.HiOrder())
	}
	a := syms.Find("a")
	if a == NoLabel {
		t.Fatal("symbol 'a' not added")
	}
	if _, ok := fst.FindArc(fst.Start(), a); !ok {
		t.Errorf("no unigram arc for 'a'")
	}
}
