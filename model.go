package mozolm

import "github.com/kho/mozolm/wfst"

// LanguageModel is the capability set every model variant (simple
// bigram, character FST, word FST, PPM-as-FST — all in package
// models) implements, matching spec.md §3's abstract language model.
// `Read` is left to each variant's own constructor (storage shape
// varies too much per variant to share one signature usefully, as
// the teacher's own Hashed/Sorted constructors already show).
type LanguageModel interface {
	// StartState returns the model's initial state.
	StartState() wfst.StateId
	// StateSym returns a codepoint label that leads to s, or -1 if the
	// model records none for s (always so when s is out of range).
	// Which label is reported, and whether the start state has one,
	// is variant-specific.
	StateSym(s wfst.StateId) rune
	// NextState advances from s on codepoint c. The state returned for
	// a codepoint the model does not recognize is variant-specific.
	NextState(s wfst.StateId, c rune) wfst.StateId
	// ExtractScores fills out with the distribution at s, returning
	// false on failure; the variants do not log, the Hub does.
	ExtractScores(s wfst.StateId, out *LMScores) bool
	// SymScore returns the negative-log-probability of c at s.
	SymScore(s wfst.StateId, c rune) wfst.Weight
	// UpdateCounts applies count observations of codepoints starting
	// at s, returning false on failure (not logged here). A no-op
	// returning true for a static or read-only model.
	UpdateCounts(s wfst.StateId, codepoints []rune, count int) bool
	// IsStatic reports whether UpdateCounts ever mutates the model.
	IsStatic() bool
}

// ContextState walks text's codepoints left to right through m,
// starting at init (or m.StartState() when init < 0), and returns
// the resulting state. Implemented once here and reused by every
// variant, mirroring spec.md §3's "default walks from start_state"
// behavior and the teacher's free-function-over-interface pattern
// (basic.go's Graphviz(IterableModel, ...)).
func ContextState(m LanguageModel, text string, init wfst.StateId) wfst.StateId {
	s := init
	if s < 0 {
		s = m.StartState()
	}
	for _, c := range text {
		s = m.NextState(s, c)
	}
	return s
}
