// Package wfst implements the minimal weighted finite-state transducer
// primitives that spec.md treats as an external collaborator (normally
// provided by a library such as OpenFst): states and labeled weighted
// arcs in the negative-log semiring, a symbol table, and a backoff view
// over n-gram-shaped automata. See DESIGN.md for why this is implemented
// in-repo rather than imported.
//
// The design generalizes kho-fslm's hand-rolled, word-indexed n-gram
// transducer (Hashed/Sorted/Builder/probing buckets) from a fixed word
// vocabulary to an arbitrary Label alphabet, so the same engine backs
// character n-grams, word n-grams, and PPM counts.
package wfst

// Label identifies an arc's input symbol. Label 0 is reserved by
// convention for epsilon/end-of-string (see SymbolTable).
type Label int32

// NoLabel marks an empty bucket slot; it is never a valid symbol index.
const NoLabel Label = -1

// Epsilon is the reserved end-of-string / backoff-arc label.
const Epsilon Label = 0

// StateId identifies a state in an Fst. States are referenced by index,
// never by pointer, so the arena stays compact (mirrors kho-fslm's
// StateId convention throughout model.go/hashed.go/sorted.go).
type StateId int32

// NoState is an invalid state index, used e.g. as "no backoff" for the
// unigram state.
const NoState StateId = -1

// Weight represents -log(x) for some non-negative real x. Depending on
// the model, x may be a probability (character/word FST arcs) or a raw
// count (PPM arcs prior to being read as a probability by the model's
// own formulas) -- NegLogSum/NegLogDiff/Times are valid either way, since
// they are just stable arithmetic on non-negative reals carried in
// log space.
type Weight float64
