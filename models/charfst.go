package models

import (
	"github.com/kho/mozolm"
	"github.com/kho/mozolm/wfst"
)

// CharFST is the read-only character n-gram model of spec.md §4.4,
// served directly from a wfst.Fst with backoff-chain traversal.
type CharFST struct {
	fst *wfst.Fst
	// labelOf records, for each state, one incoming arc label that
	// reaches it (last write wins when several arcs target the same
	// state), used only to answer StateSym; the underlying FST itself
	// has no notion of "the" label that led to a state, since several
	// arcs (from ARPA-style state sharing) may target the same state.
	labelOf []rune
}

var _ mozolm.LanguageModel = (*CharFST)(nil)

// NewCharFST wraps an already-built wfst.Fst.
func NewCharFST(fst *wfst.Fst) *CharFST {
	m := &CharFST{fst: fst, labelOf: make([]rune, fst.NumStates())}
	syms := fst.Symbols()
	for i := range m.labelOf {
		m.labelOf[i] = -1
	}
	for p := wfst.StateId(0); int(p) < fst.NumStates(); p++ {
		for _, l := range fst.ArcLabels(p) {
			a, _ := fst.FindArc(p, l)
			if r := []rune(syms.FindSymbol(l)); len(r) == 1 {
				m.labelOf[a.NextState] = r[0]
			}
		}
	}
	return m
}

// ReadCharFST loads a gob-encoded Fst from modelPath; when the Fst's
// symbol table is empty (only epsilon) and vocabPath is non-empty, it
// attaches the sibling vocabulary file's symbols instead (spec.md §6
// "Persisted formats").
func ReadCharFST(modelPath, vocabPath string) (*CharFST, error) {
	fst, err := wfst.ReadFstFile(modelPath)
	if err != nil {
		return nil, err
	}
	if fst.Symbols().NumSymbols() <= 1 && vocabPath != "" {
		syms, err := readVocabFile(vocabPath)
		if err != nil {
			return nil, err
		}
		if err := fst.AttachSymbols(syms); err != nil {
			return nil, err
		}
	}
	return NewCharFST(fst), nil
}

func (m *CharFST) StartState() wfst.StateId { return m.fst.Start() }

func (m *CharFST) StateSym(s wfst.StateId) rune {
	if int(s) < 0 || int(s) >= len(m.labelOf) {
		return -1
	}
	return m.labelOf[s]
}

// NextState traverses the arc labeled c from s, falling back along
// backoff arcs until either an arc is found or the backoff chain ends
// at the unigram state (spec.md §4.4). An unrecognized codepoint
// resets to the start state, per the engine-wide convention of
// spec.md §6.
func (m *CharFST) NextState(s wfst.StateId, c rune) wfst.StateId {
	l := m.fst.Symbols().Find(string(c))
	if l == wfst.NoLabel {
		return m.fst.Start()
	}
	p := s
	for {
		if a, ok := m.fst.FindArc(p, l); ok {
			return a.NextState
		}
		if p == m.fst.UnigramState() {
			return m.fst.UnigramState()
		}
		bo, _ := m.fst.GetBackoff(p)
		if bo == wfst.NoState {
			return m.fst.UnigramState()
		}
		p = bo
	}
}

// finalCost walks the backoff chain from s collecting the first final
// weight found, Times-composed with the accumulated backoff weight
// (spec.md §4.4's FinalCostInState).
func (m *CharFST) finalCost(s wfst.StateId) wfst.Weight {
	p, acc := s, wfst.One
	for {
		if f := m.fst.Final(p); f != wfst.Zero {
			return wfst.Times(acc, f)
		}
		if p == m.fst.UnigramState() {
			return wfst.Zero
		}
		bo, bw := m.fst.GetBackoff(p)
		if bo == wfst.NoState {
			return wfst.Zero
		}
		acc = wfst.Times(acc, bw)
		p = bo
	}
}

// labelCost walks the backoff chain from s Times-composing backoff
// weights until an explicit l-labeled arc is found, returning Zero if
// none exists anywhere along the chain (spec.md §4.4's
// LabelCostInState).
func (m *CharFST) labelCost(s wfst.StateId, l wfst.Label) wfst.Weight {
	p, acc := s, wfst.One
	for {
		if a, ok := m.fst.FindArc(p, l); ok {
			return wfst.Times(acc, a.Weight)
		}
		if p == m.fst.UnigramState() {
			return wfst.Zero
		}
		bo, bw := m.fst.GetBackoff(p)
		if bo == wfst.NoState {
			return wfst.Zero
		}
		acc = wfst.Times(acc, bw)
		p = bo
	}
}

// ExtractScores emits one probability per vocabulary symbol, symbol 0
// from finalCost and the rest from labelCost, softmax-renormalized
// (spec.md §4.4).
func (m *CharFST) ExtractScores(s wfst.StateId, out *mozolm.LMScores) bool {
	syms := m.fst.Symbols().Symbols()
	n := len(syms)
	ws := make([]wfst.Weight, n)
	ws[0] = m.finalCost(s)
	for i := 1; i < n; i++ {
		ws[i] = m.labelCost(s, wfst.Label(i))
	}
	wfst.SoftmaxRenormalize(ws)
	out.Symbols = make([]string, n)
	out.Probabilities = make([]float64, n)
	for i, w := range ws {
		if i == 0 {
			out.Symbols[i] = ""
		} else {
			out.Symbols[i] = syms[i]
		}
		out.Probabilities[i] = wfst.Prob(w)
	}
	out.Normalization = 1
	return true
}

// SymScore returns c's label cost at s (spec.md §4.4).
func (m *CharFST) SymScore(s wfst.StateId, c rune) wfst.Weight {
	l := m.fst.Symbols().Find(string(c))
	if l == wfst.NoLabel {
		return wfst.Zero
	}
	return m.labelCost(s, l)
}

// UpdateCounts is a no-op returning ok: the character FST model is
// read-only (spec.md §4.4).
func (m *CharFST) UpdateCounts(wfst.StateId, []rune, int) bool { return true }

func (m *CharFST) IsStatic() bool { return true }
