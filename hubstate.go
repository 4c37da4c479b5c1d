package mozolm

import "github.com/kho/mozolm/wfst"

// HubState is a composite state in the hub indexing simultaneous
// component-model states plus bookkeeping (spec.md §3 "Hub state").
type HubState struct {
	// ModelStates holds one per-model state index per component model,
	// in the hub's configured model order.
	ModelStates []wfst.StateId
	// PrevState is the hub-state index that produced this one via
	// NextState, or -1 if this is the start state or its back-reference
	// was cleared by an arena overwrite.
	PrevState int
	// Sym is the codepoint label on the incoming transition, or 0 for
	// the start state.
	Sym rune
	// NextStates maps a codepoint to the child hub-state index reached
	// by transitioning on it, memoizing Hub.NextState.
	NextStates map[rune]int
	// History holds, per component model, a ring of the last
	// bayesian_history_length negative-log probabilities the model
	// assigned along the path that produced this state (index 0 is the
	// most recent). Nil when history length is 0.
	History [][]wfst.Weight
	// HistorySum is the precomputed per-model Times-accumulation (i.e.
	// plain sum in log space) of History[i], cached so
	// bayesianWeights need not re-fold it every ExtractScores call.
	HistorySum []wfst.Weight
}
