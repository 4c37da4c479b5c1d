package wfst

import "fmt"

// state holds one Fst state's outgoing arcs plus its backoff and final
// weight, generalizing kho-fslm's model.go state{BackOffState,
// BackOffWeight} record (there, backoff was the only per-state field
// since lexical transitions lived in a separate global map keyed by
// (state, word); here they live alongside it in arcs for locality).
type state struct {
	arcs         *arcMap
	final        Weight
	backoffState StateId
	backoffWeight Weight
}

// Fst is a mutable weighted finite-state transducer over Label-indexed
// arcs in the negative-log semiring, with an explicit backoff edge per
// state (spec.md's "Backoff arc" glossary entry). State 0 is always the
// start state. It plays the role spec.md §6 assigns to an external WFST
// library: see DESIGN.md for why it is implemented here.
type Fst struct {
	states  []state
	symbols *SymbolTable
	hiOrder int
}

// New creates an Fst with a single start state (StateId 0, no backoff)
// and the given symbol table (ownership transferred to the Fst).
func New(symbols *SymbolTable) *Fst {
	f := &Fst{symbols: symbols}
	f.AddState()
	f.states[0].backoffState = NoState
	return f
}

func (f *Fst) Start() StateId { return 0 }

func (f *Fst) NumStates() int { return len(f.states) }

func (f *Fst) Symbols() *SymbolTable { return f.symbols }

// AttachSymbols replaces f's symbol table, for the case spec.md §6
// describes where a persisted Fst carries no symbol table and a
// sibling vocabulary file must supply one. It fails if the supplied
// table's size does not match the table the Fst was built against,
// since arc labels are otherwise meaningless.
func (f *Fst) AttachSymbols(symbols *SymbolTable) error {
	if f.symbols != nil && f.symbols.NumSymbols() > 1 && f.symbols.NumSymbols() != symbols.NumSymbols() {
		return fmt.Errorf("wfst: vocabulary has %d symbols, model expects %d", symbols.NumSymbols(), f.symbols.NumSymbols())
	}
	f.symbols = symbols
	return nil
}

// HiOrder is the highest n-gram order the model was built or configured
// with (spec.md's external-library HiOrder()); it is metadata recorded
// by the builder/trainer, not derived from the graph.
func (f *Fst) HiOrder() int        { return f.hiOrder }
func (f *Fst) SetHiOrder(order int) { f.hiOrder = order }

// AddState appends a new state with no arcs, Zero final weight and an
// unset backoff (NoState), returning its index.
func (f *Fst) AddState() StateId {
	s := StateId(len(f.states))
	f.states = append(f.states, state{arcs: newArcMap(), final: Zero, backoffState: NoState, backoffWeight: Zero})
	return s
}

// UnigramState returns the unique state whose backoff is NoState other
// than one reachable only via backing off from itself; by convention
// this is the first such state found scanning from 0, which is state 0
// for every Fst this package builds (the unigram/root context).
func (f *Fst) UnigramState() StateId {
	for i, s := range f.states {
		if s.backoffState == NoState {
			return StateId(i)
		}
	}
	return NoState
}

// GetBackoff returns the backoff state and weight for p; the start/root
// state returns (NoState, Zero).
func (f *Fst) GetBackoff(p StateId) (StateId, Weight) {
	s := &f.states[p]
	return s.backoffState, s.backoffWeight
}

// SetBackoff sets the backoff state and weight for p.
func (f *Fst) SetBackoff(p StateId, q StateId, w Weight) {
	f.states[p].backoffState = q
	f.states[p].backoffWeight = w
}

// Final returns the final weight of p (Zero, i.e. not final, unless set).
func (f *Fst) Final(p StateId) Weight { return f.states[p].final }

// SetFinal sets the final weight of p.
func (f *Fst) SetFinal(p StateId, w Weight) { f.states[p].final = w }

// FindArc returns the arc labeled l out of p, and whether it exists.
func (f *Fst) FindArc(p StateId, l Label) (Arc, bool) {
	a := f.states[p].arcs.Find(l)
	if a == nil {
		return Arc{}, false
	}
	return *a, true
}

// SetArc creates or overwrites the arc labeled l out of p.
func (f *Fst) SetArc(p StateId, l Label, next StateId, w Weight) {
	a := f.states[p].arcs.FindOrInsert(l)
	a.NextState, a.Weight = next, w
}

// IncrementArc adds delta (in count space, i.e. NegLogSum(w, -log(delta)))
// to the arc labeled l out of p, creating it (pointing at next) first if
// absent. This is the core primitive behind PPM's dynamic count updates
// (spec.md §4.2.2): counts live as -log(count) the same way probabilities
// live as -log(prob), so "increment by one" is NegLogSum(w, One).
func (f *Fst) IncrementArc(p StateId, l Label, next StateId, delta Weight) {
	a := f.states[p].arcs.FindOrInsert(l)
	if a.NextState == NoState {
		a.NextState = next
	}
	a.Weight = NegLogSum(a.Weight, delta)
}

// IncrementFinal adds delta to the final weight of p the same way
// IncrementArc does for an arc.
func (f *Fst) IncrementFinal(p StateId, delta Weight) {
	f.states[p].final = NegLogSum(f.states[p].final, delta)
}

// IncrementArcLinear adds delta directly to the arc's Weight field
// (plain addition, not NegLogSum), for callers accumulating raw
// counts before converting them to the negative-log semiring (see
// models.PPM's from-corpus construction and ConvertCountsToNegLog).
func (f *Fst) IncrementArcLinear(p StateId, l Label, next StateId, delta float64) {
	a := f.states[p].arcs.FindOrInsert(l)
	if a.NextState == NoState {
		a.NextState = next
	}
	if a.Weight == Zero {
		a.Weight = 0
	}
	a.Weight += Weight(delta)
}

// IncrementFinalLinear adds delta directly to p's final weight field,
// treating an unset (Zero) final as 0 counts rather than +Inf.
func (f *Fst) IncrementFinalLinear(p StateId, delta float64) {
	s := &f.states[p]
	if s.final == Zero {
		s.final = 0
	}
	s.final += Weight(delta)
}

// ConvertCountsToNegLog replaces every state's raw-count arc and
// final weights (accumulated via IncrementArcLinear/
// IncrementFinalLinear) with their negative logs, and every state's
// backoff weight likewise -- used once after raw-count construction
// (and any update-exclusion pass) completes.
func (f *Fst) ConvertCountsToNegLog() {
	for i := range f.states {
		s := &f.states[i]
		for _, l := range s.arcs.Labels() {
			a := s.arcs.Find(l)
			a.Weight = NegLog(float64(a.Weight))
		}
		if s.final != Zero {
			s.final = NegLog(float64(s.final))
		}
		if s.backoffWeight != Zero {
			s.backoffWeight = NegLog(float64(s.backoffWeight))
		}
	}
}

// NumArcs returns the number of outgoing (non-backoff) arcs of p.
func (f *Fst) NumArcs(p StateId) int { return f.states[p].arcs.Size() }

// Arcs returns a channel of (label, arc) pairs outgoing from p, in
// unspecified order (use ArcLabels for deterministic order).
func (f *Fst) Arcs(p StateId) chan ArcEntry { return f.states[p].arcs.Range() }

// ArcLabels returns the sorted labels of p's outgoing arcs.
func (f *Fst) ArcLabels(p StateId) []Label { return f.states[p].arcs.Labels() }

// CheckTopology verifies that every state's backoff chain terminates at
// a state with no backoff (NoState) within NumStates steps, and that no
// arc points at an out-of-range state. It is the Go stand-in for the
// external library's CheckTopology().
func (f *Fst) CheckTopology() error {
	for p := range f.states {
		steps := 0
		cur := StateId(p)
		for {
			bo, _ := f.GetBackoff(cur)
			if bo == NoState {
				break
			}
			cur = bo
			steps++
			if steps > len(f.states) {
				return fmt.Errorf("wfst: backoff chain from state %d does not terminate", p)
			}
		}
		for l := range f.Arcs(StateId(p)) {
			if l.Arc.NextState != NoState && (int(l.Arc.NextState) < 0 || int(l.Arc.NextState) >= len(f.states)) {
				return fmt.Errorf("wfst: state %d has arc to out-of-range state %d", p, l.Arc.NextState)
			}
		}
	}
	return nil
}

// CheckNormalization verifies that, for state p, the probability mass
// of its outgoing arc labels (as reported by probOf) plus its final
// weight sums to 1 within tolerance; no backed-off mass is added.
// probOf must return the negative-log probability (not a raw count) a
// caller's model associates with symbol l at state p, e.g. a char-FST's
// LabelCostInState; it is supplied by the caller because only the
// owning model knows how to interpret Weight (probability vs. raw PPM
// count).
func (f *Fst) CheckNormalization(p StateId, probOf func(StateId, Label) Weight, tolerance float64) error {
	var total float64
	for _, l := range f.ArcLabels(p) {
		total += Prob(probOf(p, l))
	}
	total += Prob(f.Final(p))
	if total < 1-tolerance || total > 1+tolerance {
		return fmt.Errorf("wfst: state %d's probabilities sum to %g, not 1", p, total)
	}
	return nil
}
