package wfst

// Builder incrementally constructs a backoff automaton from n-gram
// entries, generalizing kho-fslm's builder.go from word.Id contexts
// over a fixed vocabulary to arbitrary Label sequences over any
// SymbolTable. Unlike the teacher, which accumulates into its own
// state/transition arrays and only produces a Hashed/Sorted model at
// the end, Builder writes directly into an *Fst (already hash-backed
// via arcMap), so there is no separate Dump step -- Link finalizes
// backoff pointers in place and Fst is ready to use.
type Builder struct {
	fst      *Fst
	resolved []bool
	bow      []Weight
}

// NewBuilder creates a Builder over a fresh Fst using symbols, whose
// start state (0) is the unigram/root context.
func NewBuilder(symbols *SymbolTable) *Builder {
	return &Builder{
		fst:      New(symbols),
		resolved: []bool{true},
		bow:      []Weight{Zero},
	}
}

// Fst returns the automaton under construction. Valid at any point,
// but backoff pointers are only meaningful after Link.
func (b *Builder) Fst() *Fst { return b.fst }

func (b *Builder) newState() StateId {
	s := b.fst.AddState()
	b.resolved = append(b.resolved, false)
	b.bow = append(b.bow, Zero)
	return s
}

func (b *Builder) findNextState(p StateId, l Label) StateId {
	if a, ok := b.fst.FindArc(p, l); ok && a.NextState != NoState {
		return a.NextState
	}
	q := b.newState()
	b.fst.SetArc(p, l, q, Zero)
	return q
}

func (b *Builder) findState(p StateId, context []Label) StateId {
	for _, l := range context {
		p = b.findNextState(p, l)
	}
	return p
}

// AddNgram records that, in context (a label sequence, possibly
// empty), label occurs with the given arc weight, and the state
// reached by (context, label) backs off with backoffWeight. The order
// n-grams are added in does not matter. Context and label must come
// from the Builder's symbol table (NoLabel is invalid).
func (b *Builder) AddNgram(context []Label, label Label, weight, backoffWeight Weight) {
	p := b.findState(b.fst.Start(), context)
	q := b.findNextState(p, label)
	b.bow[q] = backoffWeight
	b.fst.SetArc(p, label, q, weight)
}

// IncrementNgram adds delta -- a raw count, not a neg-log weight -- to
// the count of label following context, creating any missing context
// or label states the same way AddNgram does. Unlike AddNgram it
// accumulates rather than overwrites, for callers building a raw
// n-gram count Fst (e.g. models.PPM's from-corpus construction) before
// converting counts to the negative-log semiring with
// Fst.ConvertCountsToNegLog.
func (b *Builder) IncrementNgram(context []Label, label Label, delta float64) {
	p := b.findState(b.fst.Start(), context)
	q := b.findNextState(p, label)
	b.fst.IncrementArcLinear(p, label, q, delta)
}

// IncrementFinalNgram adds delta to the raw final count of the state
// reached by context.
func (b *Builder) IncrementFinalNgram(context []Label, delta float64) {
	p := b.findState(b.fst.Start(), context)
	b.fst.IncrementFinalLinear(p, delta)
}

// Link computes every state's backoff target by walking the lowest
// state along its would-be backoff chain that has at least one
// lexical transition, mirroring kho-fslm's Builder.link/linkTransition.
// Must be called once after all AddNgram calls and before the Fst is
// used for scoring; AddNgram after Link produces undefined backoff
// pointers for any newly created states.
func (b *Builder) Link() {
	start := b.fst.Start()
	for _, l := range b.fst.ArcLabels(start) {
		a, _ := b.fst.FindArc(start, l)
		if a.NextState != NoState {
			b.fst.SetBackoff(a.NextState, start, b.bow[a.NextState])
			b.resolved[a.NextState] = true
		}
	}
	for p := int(start) + 1; p < b.fst.NumStates(); p++ {
		for _, l := range b.fst.ArcLabels(StateId(p)) {
			a, _ := b.fst.FindArc(StateId(p), l)
			if a.NextState != NoState && !b.resolved[a.NextState] {
				b.linkTransition(StateId(p), l, a.NextState)
			}
		}
	}
}

// linkTransition resolves q's backoff pointer, recursing up p's own
// backoff chain to find the nearest state with an l-labeled arc. q
// must not be the start state. Returns q's resolved (state, weight)
// pair. When the nearest such state qBack itself has no outgoing
// arcs, q backs off one step further (to qBack's own backoff target),
// and qBack's skipped backoff weight is folded (Times, i.e. added in
// log space) into q's.
func (b *Builder) linkTransition(p StateId, l Label, q StateId) (StateId, Weight) {
	if b.resolved[q] {
		s, _ := b.fst.GetBackoff(q)
		return s, b.bow[q]
	}
	start := b.fst.Start()
	pBack, _ := b.fst.GetBackoff(p)
	aBack, ok := b.fst.FindArc(pBack, l)
	for !ok && pBack != start {
		pBack, _ = b.fst.GetBackoff(pBack)
		aBack, ok = b.fst.FindArc(pBack, l)
	}
	var backState StateId
	var backWeight Weight
	if ok {
		qBack := aBack.NextState
		qBackBack, w := b.linkTransition(pBack, l, qBack)
		if b.fst.NumArcs(qBack) == 0 {
			backState = qBackBack
			backWeight = Times(b.bow[q], w)
		} else {
			backState = qBack
			backWeight = b.bow[q]
		}
	} else {
		backState = start
		backWeight = b.bow[q]
	}
	b.fst.SetBackoff(q, backState, backWeight)
	b.resolved[q] = true
	return backState, backWeight
}
