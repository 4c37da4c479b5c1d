package models

import (
	"fmt"

	"github.com/kho/mozolm"
	"github.com/kho/mozolm/internal/utf8util"
	"github.com/kho/mozolm/wfst"
)

// Defaults from spec.md §4.2.
const (
	DefaultPPMMaxOrder     = 4
	DefaultPPMAlpha        = 0.5
	DefaultPPMBeta         = 0.75
	DefaultPPMMaxCacheSize = 2000
)

// ppmCacheEntry is the per-state cache record of spec.md §4.2.1:
// origin[l] names the state an l-labeled arc's count actually lives
// on (s itself, or an ancestor along the backoff chain), destination
// is where following l leads, negLogProbs is the blended probability
// vector, and normalization is D, the log-domain denominator.
type ppmCacheEntry struct {
	origin        []wfst.StateId
	destination   []wfst.StateId
	negLogProbs   []wfst.Weight
	normalization wfst.Weight
	lastUpdated   int64
	lastAccessed  int64
}

// PPM is the blended-PPM-as-FST model of spec.md §4.2: a Prediction by
// Partial Match language model (Steinruecken-Ghahramani-MacKay 2015)
// with update-exclusion (Moffat 1990), counts held on the arcs of a
// backoff wfst.Fst where each state is a history.
//
// state 0 doubles as both the start state and the unigram (empty
// history, order 0) state: every Fst this package's Builder produces
// already has that shape (the start state carries no backoff), so
// spec.md's separate order-1 "start state" base case collapses into
// the order-0 unigram case here. See DESIGN.md.
type PPM struct {
	fst          *wfst.Fst
	alpha, beta  float64
	maxOrder     int
	static       bool
	maxCacheSize int

	labelOf     []rune
	stateOrders []int // non-nil only when !static

	cache map[wfst.StateId]*ppmCacheEntry
	clock int64
}

var _ mozolm.LanguageModel = (*PPM)(nil)

func newPPM(fst *wfst.Fst, alpha, beta float64, maxOrder int, static bool, maxCacheSize int) *PPM {
	if maxCacheSize < maxOrder+1 {
		maxCacheSize = maxOrder + 1
	}
	p := &PPM{
		fst: fst, alpha: alpha, beta: beta, maxOrder: maxOrder,
		static: static, maxCacheSize: maxCacheSize,
		cache: make(map[wfst.StateId]*ppmCacheEntry),
	}
	p.buildLabelIndex()
	if !static {
		p.computeStateOrders()
	}
	return p
}

func (p *PPM) buildLabelIndex() {
	p.labelOf = make([]rune, p.fst.NumStates())
	for i := range p.labelOf {
		p.labelOf[i] = -1
	}
	syms := p.fst.Symbols()
	for s := 0; s < p.fst.NumStates(); s++ {
		for _, l := range p.fst.ArcLabels(wfst.StateId(s)) {
			a, _ := p.fst.FindArc(wfst.StateId(s), l)
			if r := []rune(syms.FindSymbol(l)); len(r) == 1 {
				p.labelOf[a.NextState] = r[0]
			}
		}
	}
}

// addPriorCounts adds Laplace +1 smoothing to every vocabulary symbol
// at the unigram state, inserting a unigram arc (looping back to the
// unigram state itself) for any symbol that lacked one entirely, per
// spec.md §4.2 "Initialization paths". IncrementArc's FindOrInsert
// does the "insert or bump" uniformly: a fresh arc starts at Zero and
// NegLogSum(Zero, One) == One, exactly a single prior count.
func addPriorCounts(fst *wfst.Fst, symbols *wfst.SymbolTable) {
	u := fst.UnigramState()
	for l := wfst.Label(1); int(l) < symbols.NumSymbols(); l++ {
		fst.IncrementArc(u, l, u, wfst.One)
	}
	fst.IncrementFinal(u, wfst.One)
}

// applyUpdateExclusion implements spec.md's update-exclusion pass:
// states that serve as someone else's backoff target lose their
// directly observed counts, which are replaced by a count of how many
// longer histories continue with each symbol -- this is what makes
// PPM's backed-off mass represent "distinct continuations" rather
// than raw frequency. When a backoff-target state gains a
// continuation arc it never had directly, that arc's destination is
// set to the same state the longer-history arc it was derived from
// already points to; this only affects which state the engine lands
// on after stepping through an exclusion-introduced arc; it does not
// change the counts or probabilities update-exclusion computes.
func applyUpdateExclusion(fst *wfst.Fst) {
	n := fst.NumStates()
	origFinal := make([]bool, n)
	for s := 0; s < n; s++ {
		origFinal[s] = fst.Final(wfst.StateId(s)) != wfst.Zero
	}
	isTarget := make([]bool, n)
	for s := 0; s < n; s++ {
		bo, _ := fst.GetBackoff(wfst.StateId(s))
		if bo != wfst.NoState {
			isTarget[bo] = true
		}
	}
	for s := 0; s < n; s++ {
		if !isTarget[s] {
			continue
		}
		p := wfst.StateId(s)
		for _, l := range fst.ArcLabels(p) {
			a, _ := fst.FindArc(p, l)
			fst.SetArc(p, l, a.NextState, 0)
		}
		fst.SetFinal(p, 0)
	}
	for s := 0; s < n; s++ {
		p := wfst.StateId(s)
		bo, _ := fst.GetBackoff(p)
		if bo == wfst.NoState {
			continue
		}
		for _, l := range fst.ArcLabels(p) {
			a, _ := fst.FindArc(p, l)
			if existing, ok := fst.FindArc(bo, l); ok {
				fst.SetArc(bo, l, existing.NextState, existing.Weight+1)
			} else {
				fst.SetArc(bo, l, a.NextState, 1)
			}
		}
		if origFinal[s] {
			fst.SetFinal(bo, fst.Final(bo)+1)
		}
	}
}

// fillBackoffCounts sums each state's own (post-update-exclusion) raw
// arc and final counts into its backoff weight field -- spec.md's "sum
// per-state counts into the epsilon (backoff) arc weight" -- so that
// GetBackoff(s) subsequently reports c(s), the total count of history
// s, exactly what the cache-fill formula's D and gamma need.
func fillBackoffCounts(fst *wfst.Fst) {
	n := fst.NumStates()
	for s := 0; s < n; s++ {
		p := wfst.StateId(s)
		bo, _ := fst.GetBackoff(p)
		if bo == wfst.NoState {
			continue
		}
		var total wfst.Weight
		for _, l := range fst.ArcLabels(p) {
			a, _ := fst.FindArc(p, l)
			total += a.Weight
		}
		if f := fst.Final(p); f != wfst.Zero {
			total += f
		}
		fst.SetBackoff(p, bo, total)
	}
}

// NewPPMFromCorpus builds a PPM model from a text corpus (spec.md
// §4.2 "From text corpus"): counts every n-gram up to maxOrder,
// materializes them as raw counts on an Fst, applies update-exclusion,
// converts to the negative-log semiring, and adds prior counts.
// symbols may already carry a fixed vocabulary (the "from vocabulary +
// text" path) or start out with only epsilon, growing as the corpus
// is scanned.
func NewPPMFromCorpus(lines []string, symbols *wfst.SymbolTable, maxOrder int, alpha, beta float64, static bool, maxCacheSize int) (*PPM, error) {
	if symbols == nil {
		symbols = wfst.NewSymbolTable("<eps>")
	}
	b := wfst.NewBuilder(symbols)
	for _, line := range lines {
		cps, err := utf8util.SplitToCodepoints(line)
		if err != nil {
			return nil, fmt.Errorf("mozolm: ppm corpus line: %w", err)
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
	return newPPM(fst, alpha, beta, maxOrder, static, maxCacheSize), nil
}

// NewPPMFromVocabAndCorpus is spec.md's "from vocabulary + text" path:
// symbols should already hold the full vocabulary before this call, so
// that addPriorCounts (invoked by NewPPMFromCorpus) ensures a unigram
// arc for every vocabulary symbol, including ones absent from the
// corpus.
func NewPPMFromVocabAndCorpus(lines []string, symbols *wfst.SymbolTable, maxOrder int, alpha, beta float64, static bool, maxCacheSize int) (*PPM, error) {
	return NewPPMFromCorpus(lines, symbols, maxOrder, alpha, beta, static, maxCacheSize)
}

// NewPPMFromVocab constructs a trivial single-state (start-and-unigram)
// PPM model from a vocabulary alone, with Laplace-only unigram counts
// (spec.md §4.2 "From vocabulary file only").
func NewPPMFromVocab(symbols *wfst.SymbolTable, maxOrder int, alpha, beta float64, static bool, maxCacheSize int) *PPM {
	b := wfst.NewBuilder(symbols)
	fst := b.Fst()
	fst.SetHiOrder(maxOrder)
	addPriorCounts(fst, symbols)
	return newPPM(fst, alpha, beta, maxOrder, static, maxCacheSize)
}

// NewPPMFromFST wraps an already-built, already-trained Fst (spec.md
// §4.2 "From FST file: load directly; no update-exclusion step"):
// its arcs are assumed to already hold negative-log counts and need no
// further prior-count adjustment.
func NewPPMFromFST(fst *wfst.Fst, maxOrder int, alpha, beta float64, static bool, maxCacheSize int) *PPM {
	return newPPM(fst, alpha, beta, maxOrder, static, maxCacheSize)
}

// ReadPPMFromFST loads a gob-encoded Fst from modelPath, attaching a
// sibling vocabulary file when the Fst carries no symbol table of its
// own (spec.md §6 "Persisted formats").
func ReadPPMFromFST(modelPath, vocabPath string, maxOrder int, alpha, beta float64, static bool, maxCacheSize int) (*PPM, error) {
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
	return NewPPMFromFST(fst, maxOrder, alpha, beta, static, maxCacheSize), nil
}

// Fst returns the underlying automaton, for callers that persist a
// trained model (e.g. cmd/mozolm-train) rather than serve it directly.
func (p *PPM) Fst() *wfst.Fst { return p.fst }

func (p *PPM) StartState() wfst.StateId { return p.fst.Start() }

func (p *PPM) StateSym(s wfst.StateId) rune {
	if int(s) < 0 || int(s) >= len(p.labelOf) {
		return -1
	}
	return p.labelOf[s]
}

// NextState traverses the arc labeled c, falling back through the
// backoff chain until the arc is found or the chain ends at the
// unigram state, matching the character-FST model's traversal
// (spec.md §4.4, reused here since §4.2 does not redefine it).
func (p *PPM) NextState(s wfst.StateId, c rune) wfst.StateId {
	l := p.fst.Symbols().Find(string(c))
	if l == wfst.NoLabel {
		return p.fst.Start()
	}
	cur := s
	for {
		if a, ok := p.fst.FindArc(cur, l); ok {
			return a.NextState
		}
		bo, _ := p.fst.GetBackoff(cur)
		if bo == wfst.NoState {
			return p.fst.UnigramState()
		}
		cur = bo
	}
}

func (p *PPM) countDistinct(s wfst.StateId) int {
	n := p.fst.NumArcs(s)
	if p.fst.Final(s) != wfst.Zero {
		n++
	}
	return n
}

// totalCount returns c(s), the total count of history s: its own
// backoff weight for any non-unigram state (populated by
// fillBackoffCounts/update_model), or the sum of its own arc and final
// counts for the unigram state, which has no backoff weight of its
// own to read.
func (p *PPM) totalCount(s wfst.StateId) wfst.Weight {
	bo, bw := p.fst.GetBackoff(s)
	if bo != wfst.NoState {
		return bw
	}
	total := wfst.Zero
	for _, l := range p.fst.ArcLabels(s) {
		a, _ := p.fst.FindArc(s, l)
		total = wfst.NegLogSum(total, a.Weight)
	}
	if f := p.fst.Final(s); f != wfst.Zero {
		total = wfst.NegLogSum(total, f)
	}
	return total
}

func (p *PPM) rawOrder(s wfst.StateId) int {
	n, cur := 0, s
	for {
		bo, _ := p.fst.GetBackoff(cur)
		if bo == wfst.NoState {
			return n
		}
		cur = bo
		n++
	}
}

func (p *PPM) order(s wfst.StateId) int {
	if p.stateOrders != nil && int(s) < len(p.stateOrders) {
		return p.stateOrders[s]
	}
	return p.rawOrder(s)
}

func (p *PPM) computeStateOrders() {
	orders := make([]int, p.fst.NumStates())
	for s := range orders {
		orders[s] = p.rawOrder(wfst.StateId(s))
	}
	p.stateOrders = orders
}

func (p *PPM) evictIfNeeded(exclude wfst.StateId) {
	for len(p.cache) >= p.maxCacheSize {
		victim, oldest, found := wfst.StateId(-1), int64(0), false
		for s, e := range p.cache {
			if s == exclude {
				continue
			}
			if !found || e.lastAccessed < oldest {
				victim, oldest, found = s, e.lastAccessed, true
			}
		}
		if !found {
			return
		}
		delete(p.cache, victim)
	}
}

// ensureCache returns s's up-to-date cache entry, recursing up the
// backoff chain first and refilling whenever the backoff's entry was
// updated more recently than s's own (spec.md §4.2.1).
func (p *PPM) ensureCache(s wfst.StateId) *ppmCacheEntry {
	bo, _ := p.fst.GetBackoff(s)
	var be *ppmCacheEntry
	if bo != wfst.NoState {
		be = p.ensureCache(bo)
	}
	if e, ok := p.cache[s]; ok && (be == nil || be.lastUpdated <= e.lastUpdated) {
		p.clock++
		e.lastAccessed = p.clock
		return e
	}
	return p.fillCache(s, be)
}

func (p *PPM) fillCache(s wfst.StateId, be *ppmCacheEntry) *ppmCacheEntry {
	n := p.fst.Symbols().NumSymbols()
	ne := &ppmCacheEntry{
		origin:      make([]wfst.StateId, n),
		destination: make([]wfst.StateId, n),
		negLogProbs: make([]wfst.Weight, n),
	}
	d := wfst.NegLogSum(p.totalCount(s), wfst.NegLog(p.alpha))
	if be == nil {
		for i := range ne.negLogProbs {
			ne.origin[i], ne.destination[i] = wfst.NoState, wfst.NoState
			ne.negLogProbs[i] = wfst.Zero
		}
	} else {
		copy(ne.origin, be.origin)
		copy(ne.destination, be.destination)
		u := p.countDistinct(s)
		gamma := wfst.NegLogSum(wfst.NegLog(float64(u)*p.beta), wfst.NegLog(p.alpha)) - d
		for i := range ne.negLogProbs {
			ne.negLogProbs[i] = wfst.Times(be.negLogProbs[i], gamma)
		}
	}
	setProb := func(l wfst.Label, count wfst.Weight) {
		ne.origin[l] = s
		var prob wfst.Weight
		if be == nil {
			prob = count - d
		} else {
			prob = wfst.SafeNegLogDiff(count, wfst.NegLog(p.beta)) - d
			prob = wfst.NegLogSum(prob, ne.negLogProbs[l])
		}
		ne.negLogProbs[l] = prob
	}
	for _, l := range p.fst.ArcLabels(s) {
		a, _ := p.fst.FindArc(s, l)
		ne.destination[l] = a.NextState
		setProb(l, a.Weight)
	}
	if fw := p.fst.Final(s); fw != wfst.Zero {
		ne.destination[0] = s
		setProb(0, fw)
	}
	wfst.SoftmaxRenormalize(ne.negLogProbs)
	ne.normalization = d
	p.clock++
	ne.lastUpdated, ne.lastAccessed = p.clock, p.clock
	p.evictIfNeeded(s)
	p.cache[s] = ne
	return ne
}

// ExtractScores fills out from s's cache (spec.md §4.2 "Probability
// extraction with cache").
func (p *PPM) ExtractScores(s wfst.StateId, out *mozolm.LMScores) bool {
	if int(s) < 0 || int(s) >= p.fst.NumStates() {
		return false
	}
	e := p.ensureCache(s)
	syms := p.fst.Symbols().Symbols()
	out.Symbols = make([]string, len(syms))
	out.Probabilities = make([]float64, len(syms))
	for i, sym := range syms {
		if i == 0 {
			out.Symbols[i] = ""
		} else {
			out.Symbols[i] = sym
		}
		out.Probabilities[i] = wfst.Prob(e.negLogProbs[i])
	}
	out.Normalization = wfst.Prob(e.normalization)
	return true
}

func (p *PPM) SymScore(s wfst.StateId, c rune) wfst.Weight {
	l := p.fst.Symbols().Find(string(c))
	if l == wfst.NoLabel {
		return wfst.Zero
	}
	e := p.ensureCache(s)
	if int(l) >= len(e.negLogProbs) {
		return wfst.Zero
	}
	return e.negLogProbs[l]
}

func (p *PPM) IsStatic() bool { return p.static }

// splitState creates a fresh state backing off to oldDest with a
// single observation so far, preserving oldDest as the shared,
// max-order-capped node that several longer histories now back off
// to, per spec.md §4.2.2.
func (p *PPM) splitState(oldDest wfst.StateId) wfst.StateId {
	ns := p.fst.AddState()
	p.fst.SetBackoff(ns, oldDest, wfst.One)
	p.growAux(ns)
	return ns
}

func (p *PPM) growAux(ns wfst.StateId) {
	for len(p.labelOf) <= int(ns) {
		p.labelOf = append(p.labelOf, -1)
	}
	if p.stateOrders != nil {
		for len(p.stateOrders) <= int(ns) {
			p.stateOrders = append(p.stateOrders, 0)
		}
		bo, _ := p.fst.GetBackoff(ns)
		p.stateOrders[ns] = p.order(bo) + 1
	}
}

// updateModel is spec.md §4.2.2's update_model: increments s's own
// total count unless it had no observed continuations, recurses into
// the backoff chain when highestFound lies further up it, then either
// bumps an existing arc/final cost at s or borrows/splits one from the
// backoff state's cache.
func (p *PPM) updateModel(s, highestFound wfst.StateId, sym wfst.Label) wfst.StateId {
	bo, bw := p.fst.GetBackoff(s)
	if p.countDistinct(s) > 0 {
		p.fst.SetBackoff(s, bo, wfst.NegLogSum(bw, wfst.One))
	}
	if bo != wfst.NoState && highestFound != s {
		p.updateModel(bo, highestFound, sym)
	}
	var dest wfst.StateId
	switch {
	case sym == wfst.Epsilon:
		p.fst.IncrementFinal(s, wfst.One)
		dest = s
	case highestFound == s:
		a, _ := p.fst.FindArc(s, sym)
		if p.order(s)+1 > p.maxOrder {
			dest = p.splitState(a.NextState)
			p.fst.SetArc(s, sym, dest, wfst.One)
		} else {
			p.fst.IncrementArc(s, sym, a.NextState, wfst.One)
			dest = a.NextState
		}
	default:
		e := p.ensureCache(bo)
		boDest := e.destination[sym]
		if p.order(s)+1 > p.maxOrder {
			dest = p.splitState(boDest)
		} else {
			dest = boDest
		}
		p.fst.SetArc(s, sym, dest, wfst.One)
	}
	delete(p.cache, s)
	return dest
}

// UpdateCounts applies count observations of codepoints starting at s
// (spec.md §4.2.2): skipped (successfully) for a static model, or
// rejected for a non-positive count; otherwise walks each codepoint,
// resolving the highest-found state from the cache before calling
// update_model, applying count-1 extra increments directly at s, then
// advancing via next_state.
func (p *PPM) UpdateCounts(s wfst.StateId, codepoints []rune, count int) bool {
	if p.static {
		return true
	}
	if count <= 0 {
		return false
	}
	cur := s
	for _, c := range codepoints {
		l := p.fst.Symbols().Find(string(c))
		if l == wfst.NoLabel {
			cur = p.StartState()
			continue
		}
		e := p.ensureCache(cur)
		highest := e.origin[l]
		if highest == wfst.NoState {
			highest = cur
		}
		p.updateModel(cur, highest, l)
		for i := 1; i < count; i++ {
			p.updateModel(cur, cur, l)
		}
		cur = p.NextState(cur, c)
	}
	return true
}

// GetNegLogProbs is spec.md §4.2.3's GetNegLogProbs: walks symIndices
// from the start state, reading neg_log_prob from the cache at each
// step and (unless static) learning from what it sees as it goes.
func (p *PPM) GetNegLogProbs(symIndices []wfst.Label) (wfst.Weight, error) {
	s := p.fst.Start()
	var total wfst.Weight
	for _, sym := range symIndices {
		e := p.ensureCache(s)
		if int(sym) < 0 || int(sym) >= len(e.negLogProbs) {
			return 0, fmt.Errorf("mozolm: symbol index %d out of range", sym)
		}
		total = wfst.Times(total, e.negLogProbs[sym])
		if !p.static {
			highest := e.origin[sym]
			if highest == wfst.NoState {
				highest = s
			}
			p.updateModel(s, highest, sym)
		}
		next := e.destination[sym]
		if next == wfst.NoState {
			next = s
		}
		s = next
	}
	return total, nil
}
