package mozolm

import (
	"fmt"
	"sort"

	"github.com/golang/glog"
	"github.com/kho/mozolm/wfst"
)

// MixtureType selects how the hub composes its component models'
// distributions, spec.md §4.1 "Configuration".
type MixtureType int

const (
	MixtureNone MixtureType = iota
	MixtureInterpolation
)

// DefaultMaxHubStates is substituted for any configured
// maximum_maintained_states below 10, spec.md §4.1 "Configuration".
const DefaultMaxHubStates = 10000

// Hub is the language-model hub of spec.md §4.1: it holds several
// component models, maintains a bounded arena of hub states
// composing their per-model states, mixes their outputs (fixed or
// Bayesian-history-weighted interpolation), and evicts old states by
// round-robin overwrite once the arena is full. State references
// throughout are integer indices into states, never pointers,
// mirroring the teacher's StateId convention (spec.md §9 "Ownership
// graph").
type Hub struct {
	models      []LanguageModel
	mixture     MixtureType
	baseWeights []wfst.Weight // normalized negative-log priors; nil unless INTERPOLATION with >=2 models
	historyLen  int
	maxStates   int

	states      []*HubState
	lastCreated int
}

// NewHub constructs a Hub over models with the given mixture
// configuration. priors are negative-log prior weights, one per model,
// consulted only when mixture is MixtureInterpolation and
// len(models) > 1; maxStates below 10 is replaced by
// DefaultMaxHubStates.
func NewHub(models []LanguageModel, priors []wfst.Weight, mixture MixtureType, historyLen, maxStates int) (*Hub, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("mozolm: hub requires at least one component model")
	}
	if maxStates < 10 {
		maxStates = DefaultMaxHubStates
	}
	h := &Hub{models: models, mixture: mixture, historyLen: historyLen, maxStates: maxStates}
	if mixture == MixtureInterpolation && len(models) > 1 {
		if len(priors) != len(models) {
			return nil, fmt.Errorf("mozolm: hub got %d priors for %d models", len(priors), len(models))
		}
		z := priors[0]
		for _, p := range priors[1:] {
			z = wfst.NegLogSum(z, p)
		}
		h.baseWeights = make([]wfst.Weight, len(models))
		for i, p := range priors {
			h.baseWeights[i] = p - z
		}
	}
	h.states = []*HubState{{}}
	h.resetStartState()
	return h, nil
}

// NumStates returns the number of hub states currently in the arena.
func (h *Hub) NumStates() int { return len(h.states) }

// ModelStates returns a copy of hub state s's per-model state vector.
func (h *Hub) ModelStates(s int) []wfst.StateId {
	return append([]wfst.StateId(nil), h.states[s].ModelStates...)
}

// StateSym returns the codepoint label of hub state s, or -1 if s is
// out of range (spec.md §4.1 "state_sym").
func (h *Hub) StateSym(s int) rune {
	if s < 0 || s >= len(h.states) {
		return -1
	}
	return h.states[s].Sym
}

// NextState returns the hub state reached from s on codepoint c,
// creating it if this is the first transition through it (spec.md
// §4.1 "next_state"). s out of range resets to the start state.
func (h *Hub) NextState(s int, c rune) int {
	if s < 0 || s >= len(h.states) {
		s = 0
	}
	hs := h.states[s]
	if next, ok := hs.NextStates[c]; ok {
		return next
	}
	next := make([]wfst.StateId, len(h.models))
	for i, m := range h.models {
		next[i] = m.NextState(hs.ModelStates[i], c)
	}
	return h.assignNewHubState(next, s, c)
}

// ContextState walks text's codepoints left to right through
// NextState, starting at init (or the start state when init < 0),
// resetting to the start state whenever a step fails (spec.md §4.1
// "context_state").
func (h *Hub) ContextState(text string, init int) int {
	s := init
	if s < 0 {
		s = 0
	}
	for _, c := range text {
		next := h.NextState(s, c)
		if next < 0 {
			s = 0
			continue
		}
		s = next
	}
	return s
}

// ExtractScores fills out with the distribution at hub state s
// (spec.md §4.1 "extract_scores"): a single effective model
// delegates directly, otherwise component distributions are mixed in
// the negative-log domain using Bayesian-history weights.
func (h *Hub) ExtractScores(s int, out *LMScores) bool {
	if s < 0 || s >= len(h.states) {
		glog.Errorf("mozolm: hub ExtractScores: state %d out of range", s)
		return false
	}
	hs := h.states[s]
	if h.mixture == MixtureNone || len(h.models) == 1 {
		return h.models[0].ExtractScores(hs.ModelStates[0], out)
	}

	weights := h.bayesianWeights(hs)
	sums := make(map[string]wfst.Weight)
	var mixedNorm float64
	var comp LMScores
	for i, m := range h.models {
		comp.Symbols, comp.Probabilities = nil, nil
		if !m.ExtractScores(hs.ModelStates[i], &comp) {
			glog.Errorf("mozolm: hub ExtractScores: component %d failed at state %d", i, hs.ModelStates[i])
			return false
		}
		mixedNorm += comp.Normalization * wfst.Prob(weights[i])
		for j, sym := range comp.Symbols {
			term := wfst.Times(wfst.NegLog(comp.Probabilities[j]), weights[i])
			if cur, ok := sums[sym]; ok {
				sums[sym] = wfst.NegLogSum(cur, term)
			} else {
				sums[sym] = term
			}
		}
	}

	symbols := make([]string, 0, len(sums))
	for sym := range sums {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	ws := make([]wfst.Weight, len(symbols))
	for i, sym := range symbols {
		ws[i] = sums[sym]
	}
	wfst.SoftmaxRenormalize(ws)

	out.Symbols = symbols
	out.Probabilities = make([]float64, len(ws))
	for i, w := range ws {
		out.Probabilities[i] = wfst.Prob(w)
	}
	out.Normalization = mixedNorm
	return true
}

// UpdateCounts applies count observations of codepoints starting at
// hub state s (spec.md §4.1 "update_counts"): walks forward creating
// missing states, refreshes Bayesian history from pre-update
// distributions, updates every component, then verifies/repairs the
// per-model state cache along the path.
func (h *Hub) UpdateCounts(s int, codepoints []rune, count int) bool {
	if s < 0 || s >= len(h.states) {
		s = 0
	}
	if count <= 0 {
		glog.Errorf("mozolm: hub UpdateCounts: non-positive count %d", count)
		return false
	}

	path := make([]int, len(codepoints)+1)
	path[0] = s
	cur := s
	for i, c := range codepoints {
		cur = h.NextState(cur, c)
		path[i+1] = cur
	}

	if h.historyLen > 0 {
		for _, p := range path[:len(path)-1] {
			hs := h.states[p]
			for _, next := range hs.NextStates {
				h.refreshHistory(hs, h.states[next])
			}
		}
	}

	hs0 := h.states[s]
	for i, m := range h.models {
		if !m.UpdateCounts(hs0.ModelStates[i], codepoints, count) {
			glog.Errorf("mozolm: hub UpdateCounts: component %d failed", i)
			return false
		}
	}

	cur = s
	for _, c := range codepoints {
		next := h.NextState(cur, c)
		if !h.verifyOrCorrectModelStates(cur, next, c) {
			return false
		}
		cur = next
	}
	return true
}

// bayesianWeights computes the effective mixture weights at hs
// (spec.md §4.1.1): base priors plus the cached history sum, then
// renormalized so the implied probabilities sum to 1.
func (h *Hub) bayesianWeights(hs *HubState) []wfst.Weight {
	n := len(h.models)
	w := make([]wfst.Weight, n)
	for i := range w {
		if h.baseWeights != nil {
			w[i] = h.baseWeights[i]
		}
		if h.historyLen > 0 {
			w[i] = wfst.Times(w[i], hs.HistorySum[i])
		}
	}
	if n < 2 {
		return w
	}
	z := w[0]
	for _, wi := range w[1:] {
		z = wfst.NegLogSum(z, wi)
	}
	for i := range w {
		w[i] -= z
	}
	return w
}

// refreshHistory recomputes child's Bayesian-history vector from
// parent, using parent's current (pre-update, when called from
// UpdateCounts) per-model states to score child.Sym (spec.md §4.1.1).
func (h *Hub) refreshHistory(parent, child *HubState) {
	for i, m := range h.models {
		child.History[i][0] = m.SymScore(parent.ModelStates[i], child.Sym)
		copy(child.History[i][1:], parent.History[i][:h.historyLen-1])
		var sum wfst.Weight
		for _, b := range child.History[i] {
			sum = wfst.Times(sum, b)
		}
		child.HistorySum[i] = sum
	}
}

// initHistory sets up a freshly assigned hub state's history vectors.
// When prev < 0 (the start state), every entry is the neutral weight
// One, giving no net effect on bayesianWeights. Otherwise it delegates
// to refreshHistory using prev's state.
func (h *Hub) initHistory(hs *HubState, prev int) {
	if h.historyLen == 0 {
		return
	}
	hs.History = make([][]wfst.Weight, len(h.models))
	hs.HistorySum = make([]wfst.Weight, len(h.models))
	for i := range h.models {
		hs.History[i] = make([]wfst.Weight, h.historyLen)
	}
	if prev < 0 {
		for i := range h.models {
			for j := range hs.History[i] {
				hs.History[i][j] = wfst.One
			}
			hs.HistorySum[i] = wfst.One
		}
		return
	}
	h.refreshHistory(h.states[prev], hs)
}

// assignNewHubState implements spec.md §4.1.2: appends a new slot
// while under capacity, otherwise advances the round-robin pointer
// and clears stale back-references from whatever the overwritten
// slot used to point to. Fail-soft per spec.md §9's open question:
// there is no failure path left once models have already produced
// their next states, so this always succeeds.
func (h *Hub) assignNewHubState(modelStates []wfst.StateId, prev int, sym rune) int {
	var idx int
	if len(h.states) < h.maxStates {
		idx = len(h.states)
		h.states = append(h.states, &HubState{})
	} else {
		h.lastCreated++
		if h.lastCreated >= h.maxStates {
			h.lastCreated = 1
			h.resetStartState()
		}
		idx = h.lastCreated
		old := h.states[idx]
		for _, next := range old.NextStates {
			h.states[next].PrevState = -1
		}
	}
	hs := h.states[idx]
	hs.ModelStates = modelStates
	hs.PrevState = prev
	hs.Sym = sym
	hs.NextStates = make(map[rune]int)
	h.initHistory(hs, prev)
	if prev >= 0 {
		h.states[prev].NextStates[sym] = idx
	}
	return idx
}

// resetStartState (re)initializes slot 0 to the component models'
// start states, used both at construction and whenever the
// round-robin pointer wraps (spec.md §4.1.2).
func (h *Hub) resetStartState() {
	hs := h.states[0]
	hs.ModelStates = make([]wfst.StateId, len(h.models))
	for i, m := range h.models {
		hs.ModelStates[i] = m.StartState()
	}
	hs.PrevState = -1
	hs.Sym = 0
	hs.NextStates = make(map[rune]int)
	h.initHistory(hs, -1)
}

// verifyOrCorrectModelStates compares hub state cur's cached
// per-model states against what the (now updated) components would
// produce stepping from prev on c, overwriting the cache with the
// fresh values. A mismatch in cur's own prev_state/sym bookkeeping is
// fatal (spec.md §4.1 "update_counts" step 4).
func (h *Hub) verifyOrCorrectModelStates(prev, cur int, c rune) bool {
	prevHS, curHS := h.states[prev], h.states[cur]
	if curHS.PrevState != prev || curHS.Sym != c {
		glog.Errorf("mozolm: hub verify: hub state %d has inconsistent prev_state/sym", cur)
		return false
	}
	for i, m := range h.models {
		curHS.ModelStates[i] = m.NextState(prevHS.ModelStates[i], c)
	}
	return true
}
