package models

import (
	"fmt"
	"sort"

	"github.com/kho/mozolm"
	"github.com/kho/mozolm/wfst"
)

// DefaultWordFSTMaxCacheSize is spec.md §4.3.1's default cache size.
const DefaultWordFSTMaxCacheSize = 2000

// implicitState is spec.md §4.3's "mid-word" state: having consumed a
// prefix of length prefixLen from explicit (word-history) state
// explicit, narrowed to the lexicographic range [begin, end].
type implicitState struct {
	explicit  wfst.StateId
	prefixLen int
	begin, end int
}

type implicitKey struct {
	explicit  wfst.StateId
	prefixLen int
	begin     int
}

// wordCacheEntry holds, per explicit state, the cumulative negative-log
// probability over all vocabulary positions in lexicographic order
// (spec.md §4.3.1), so any lexicographic range's probability mass is a
// single SafeNegLogDiff.
type wordCacheEntry struct {
	cumulative   []wfst.Weight
	lastAccessed int64
}

// WordFST serves a character distribution from a word-level n-gram
// Fst (spec.md §4.3): between word boundaries it walks a trie implicit
// in the lexicographic sort of the vocabulary, transitioning back to a
// word-history Fst state on a space.
type WordFST struct {
	fst *wfst.Fst

	order               []wfst.Label // lexicographic position -> label
	pos                 []int        // label -> lexicographic position, -1 if none
	prevCommonPrefixLen []int        // indexed by lexicographic position
	firstChars          []rune
	firstCharEnds       []int

	oovState      wfst.StateId
	implicits     []implicitState
	implicitIndex map[implicitKey]wfst.StateId

	maxCacheSize int
	cache        map[wfst.StateId]*wordCacheEntry
	clock        int64
}

var _ mozolm.LanguageModel = (*WordFST)(nil)

// NewWordFST builds the lexicographic index structures of spec.md
// §4.3 over fst's symbol table and wraps fst as a character-serving
// model. The out-of-vocabulary symbol, if the table has one named
// "<unk>", sorts last regardless of spelling.
func NewWordFST(fst *wfst.Fst, maxCacheSize int) *WordFST {
	syms := fst.Symbols()
	n := syms.NumSymbols()
	unk := syms.Find("<unk>")

	type entry struct {
		label wfst.Label
		s     string
	}
	entries := make([]entry, 0, n)
	for l := wfst.Label(1); int(l) < n; l++ {
		if l == unk {
			continue
		}
		entries = append(entries, entry{l, syms.FindSymbol(l)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].s < entries[j].s })
	if unk != wfst.NoLabel {
		entries = append(entries, entry{unk, syms.FindSymbol(unk)})
	}

	w := &WordFST{
		fst: fst, maxCacheSize: maxCacheSize,
		cache:         make(map[wfst.StateId]*wordCacheEntry),
		implicitIndex: make(map[implicitKey]wfst.StateId),
	}
	w.order = make([]wfst.Label, len(entries)+1)
	w.pos = make([]int, n)
	for i := range w.pos {
		w.pos[i] = -1
	}
	w.prevCommonPrefixLen = make([]int, len(entries)+1)
	w.order[0] = wfst.Epsilon
	w.pos[wfst.Epsilon] = 0
	for i, e := range entries {
		p := i + 1
		w.order[p] = e.label
		w.pos[e.label] = p
		if i > 0 {
			w.prevCommonPrefixLen[p] = commonPrefixLen(entries[i-1].s, e.s)
		}
	}
	for p := 1; p < len(w.order); p++ {
		s := syms.FindSymbol(w.order[p])
		if s == "" {
			continue
		}
		r := []rune(s)[0]
		if len(w.firstChars) == 0 || w.firstChars[len(w.firstChars)-1] != r {
			w.firstChars = append(w.firstChars, r)
			w.firstCharEnds = append(w.firstCharEnds, p)
		} else {
			w.firstCharEnds[len(w.firstCharEnds)-1] = p
		}
	}
	w.oovState = w.newImplicitState(wfst.NoState, 1, -1, -1)
	return w
}

// ReadWordFST loads a gob-encoded word n-gram Fst from modelPath,
// attaching a sibling vocabulary file when the Fst's own symbol table
// is empty; fails if both are absent (spec.md §4.3 "Initialization").
func ReadWordFST(modelPath, vocabPath string, maxCacheSize int) (*WordFST, error) {
	fst, err := wfst.ReadFstFile(modelPath)
	if err != nil {
		return nil, err
	}
	if fst.Symbols().NumSymbols() <= 1 {
		if vocabPath == "" {
			return nil, fmt.Errorf("mozolm: word FST has no symbol table and no vocabulary file was supplied")
		}
		syms, err := readVocabFile(vocabPath)
		if err != nil {
			return nil, err
		}
		if err := fst.AttachSymbols(syms); err != nil {
			return nil, err
		}
	}
	return NewWordFST(fst, maxCacheSize), nil
}

func commonPrefixLen(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	i := 0
	for i < n && ra[i] == rb[i] {
		i++
	}
	return i
}

func (w *WordFST) isImplicit(s wfst.StateId) bool { return int(s) >= w.fst.NumStates() }

func (w *WordFST) implicit(s wfst.StateId) implicitState {
	return w.implicits[int(s)-w.fst.NumStates()]
}

func (w *WordFST) newImplicitState(explicit wfst.StateId, prefixLen, begin, end int) wfst.StateId {
	key := implicitKey{explicit, prefixLen, begin}
	if id, ok := w.implicitIndex[key]; ok {
		return id
	}
	id := wfst.StateId(w.fst.NumStates() + len(w.implicits))
	w.implicits = append(w.implicits, implicitState{explicit, prefixLen, begin, end})
	w.implicitIndex[key] = id
	return id
}

func (w *WordFST) firstCharRange(c rune) (begin, end int, ok bool) {
	idx := sort.Search(len(w.firstChars), func(i int) bool { return w.firstChars[i] >= c })
	if idx >= len(w.firstChars) || w.firstChars[idx] != c {
		return 0, 0, false
	}
	begin = 1
	if idx > 0 {
		begin = w.firstCharEnds[idx-1] + 1
	}
	return begin, w.firstCharEnds[idx], true
}

func (w *WordFST) StartState() wfst.StateId { return w.fst.Start() }

// StateSym answers -1 for explicit (word-history) states, since no
// single codepoint leads to one; implicit states are always reached by
// a specific codepoint, but that value is not retained once the range
// narrows, so -1 is returned there too (unlike CharFST, which reports
// the label of the last arc recorded into a state).
func (w *WordFST) StateSym(s wfst.StateId) rune { return -1 }

// nextModelState traverses the word arc labeled l from s, falling back
// through the backoff chain the same way CharFST.NextState does.
func (w *WordFST) nextModelState(s wfst.StateId, l wfst.Label) wfst.StateId {
	cur := s
	for {
		if a, ok := w.fst.FindArc(cur, l); ok {
			return a.NextState
		}
		if cur == w.fst.UnigramState() {
			return w.fst.UnigramState()
		}
		bo, _ := w.fst.GetBackoff(cur)
		if bo == wfst.NoState {
			return w.fst.UnigramState()
		}
		cur = bo
	}
}

// NextState implements spec.md §4.3's next_state.
func (w *WordFST) NextState(s wfst.StateId, c rune) wfst.StateId {
	if !w.isImplicit(s) {
		begin, end, ok := w.firstCharRange(c)
		if !ok {
			return w.oovState
		}
		return w.newImplicitState(s, 1, begin, end)
	}
	st := w.implicit(s)
	if c == ' ' {
		if s == w.oovState {
			return w.fst.UnigramState()
		}
		firstWord := w.fst.Symbols().FindSymbol(w.order[st.begin])
		if st.prefixLen != len([]rune(firstWord)) {
			return w.fst.UnigramState()
		}
		return w.nextModelState(st.explicit, w.order[st.begin])
	}
	subBegin, subEnd := -1, -1
	for i := st.begin; i <= st.end; i++ {
		runes := []rune(w.fst.Symbols().FindSymbol(w.order[i]))
		if st.prefixLen >= len(runes) {
			if subBegin != -1 {
				break
			}
			continue
		}
		if runes[st.prefixLen] == c {
			if subBegin == -1 {
				subBegin = i
			}
			subEnd = i
		} else if subBegin != -1 {
			break
		}
	}
	if subBegin == -1 {
		return w.oovState
	}
	return w.newImplicitState(st.explicit, st.prefixLen+1, subBegin, subEnd)
}

func (w *WordFST) evictIfNeeded() {
	limit := w.maxCacheSize
	if floor := w.fst.HiOrder() + 1; limit < floor {
		limit = floor
	}
	for len(w.cache) >= limit {
		victim, oldest, found := wfst.StateId(-1), int64(0), false
		for s, e := range w.cache {
			if !found || e.lastAccessed < oldest {
				victim, oldest, found = s, e.lastAccessed, true
			}
		}
		if !found {
			return
		}
		delete(w.cache, victim)
	}
}

// ensureCache fills and caches explicit state s's cumulative
// probability vector (spec.md §4.3.1).
func (w *WordFST) ensureCache(s wfst.StateId) *wordCacheEntry {
	if e, ok := w.cache[s]; ok {
		w.clock++
		e.lastAccessed = w.clock
		return e
	}
	bo, _ := w.fst.GetBackoff(s)
	var be *wordCacheEntry
	if bo != wfst.NoState {
		be = w.ensureCache(bo)
	}
	n := len(w.order)
	flat := make([]wfst.Weight, n)
	if be == nil {
		for i := range flat {
			flat[i] = wfst.Zero
		}
	} else {
		// be's vector is already cumulative; recover the flat
		// per-position mass before overwriting this state's own arcs.
		prev := wfst.Zero
		for i, cum := range be.cumulative {
			if i == 0 {
				flat[i] = cum
			} else {
				flat[i] = wfst.SafeNegLogDiff(cum, prev)
			}
			prev = cum
		}
	}
	for _, l := range w.fst.ArcLabels(s) {
		a, _ := w.fst.FindArc(s, l)
		if p := w.pos[l]; p >= 0 {
			flat[p] = a.Weight
		}
	}
	if fw := w.fst.Final(s); fw != wfst.Zero {
		flat[0] = fw
	}
	ne := &wordCacheEntry{cumulative: make([]wfst.Weight, n)}
	cum := wfst.Zero
	for i, fv := range flat {
		cum = wfst.NegLogSum(cum, fv)
		ne.cumulative[i] = cum
	}
	w.clock++
	ne.lastAccessed = w.clock
	w.evictIfNeeded()
	w.cache[s] = ne
	return ne
}

func (w *WordFST) explicitStateOf(s wfst.StateId) wfst.StateId {
	if s == w.oovState {
		return w.fst.UnigramState()
	}
	if !w.isImplicit(s) {
		return s
	}
	return w.implicit(s).explicit
}

// finalCost walks the backoff chain from s collecting the first final
// weight found, Times-composed with accumulated backoff weight,
// matching CharFST.finalCost.
func (w *WordFST) finalCost(s wfst.StateId) wfst.Weight {
	p, acc := s, wfst.One
	for {
		if f := w.fst.Final(p); f != wfst.Zero {
			return wfst.Times(acc, f)
		}
		if p == w.fst.UnigramState() {
			return wfst.Zero
		}
		bo, bw := w.fst.GetBackoff(p)
		if bo == wfst.NoState {
			return wfst.Zero
		}
		acc = wfst.Times(acc, bw)
		p = bo
	}
}

type charBucket struct {
	char       rune
	begin, end int
}

// nextCharEnds is spec.md §4.3's GetNextCharEnds: the ordered list of
// distinct next characters available from s, each with the
// lexicographic range it covers.
func (w *WordFST) nextCharEnds(s wfst.StateId) []charBucket {
	if s == w.oovState {
		return w.nextCharEnds(w.fst.UnigramState())
	}
	if !w.isImplicit(s) {
		buckets := make([]charBucket, len(w.firstChars))
		for i, c := range w.firstChars {
			begin := 1
			if i > 0 {
				begin = w.firstCharEnds[i-1] + 1
			}
			buckets[i] = charBucket{c, begin, w.firstCharEnds[i]}
		}
		return buckets
	}
	st := w.implicit(s)
	var buckets []charBucket
	charAt := func(pos int) rune {
		runes := []rune(w.fst.Symbols().FindSymbol(w.order[pos]))
		if st.prefixLen >= len(runes) {
			return ' '
		}
		return runes[st.prefixLen]
	}
	i := st.begin
	for i <= st.end {
		c := charAt(i)
		j := i
		for j+1 <= st.end && charAt(j+1) == c {
			j++
		}
		buckets = append(buckets, charBucket{c, i, j})
		i = j + 1
	}
	return buckets
}

// ExtractScores implements spec.md §4.3's extract_scores: per
// character bucket, the cumulative-neg-log-prob difference across the
// bucket's lexicographic positions; a word-boundary (space) bucket
// splits its mass between end-of-string and literal space using the
// next word-FST state's backed-off final cost; the current state's own
// final cost, if any, contributes a separate end-of-string term.
func (w *WordFST) ExtractScores(s wfst.StateId, out *mozolm.LMScores) bool {
	explicit := w.explicitStateOf(s)
	entry := w.ensureCache(explicit)
	priorOf := func(pos int) wfst.Weight {
		if pos <= 0 {
			return wfst.Zero
		}
		return entry.cumulative[pos-1]
	}

	merged := make(map[string]wfst.Weight)
	add := func(sym string, w2 wfst.Weight) {
		if cur, ok := merged[sym]; ok {
			merged[sym] = wfst.NegLogSum(cur, w2)
		} else {
			merged[sym] = w2
		}
	}

	for _, b := range w.nextCharEnds(s) {
		mass := wfst.SafeNegLogDiff(entry.cumulative[b.end], priorOf(b.begin))
		if b.char != ' ' {
			add(string(b.char), mass)
			continue
		}
		dest := w.nextModelState(explicit, w.order[b.end])
		fc := wfst.Prob(w.finalCost(dest))
		total := wfst.Prob(mass)
		eos := total * fc
		rest := total - eos
		add("", wfst.NegLog(eos))
		add(" ", wfst.NegLog(rest))
	}
	if !w.isImplicit(s) {
		if fw := w.fst.Final(explicit); fw != wfst.Zero {
			add("", fw)
		}
	}

	symbols := make([]string, 0, len(merged))
	for sym := range merged {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	ws := make([]wfst.Weight, len(symbols))
	for i, sym := range symbols {
		ws[i] = merged[sym]
	}
	wfst.SoftmaxRenormalize(ws)
	out.Symbols = symbols
	out.Probabilities = make([]float64, len(ws))
	for i, wv := range ws {
		out.Probabilities[i] = wfst.Prob(wv)
	}
	out.Normalization = 1
	return true
}

// SymScore looks c up in ExtractScores's output; word-FST queries are
// driven through extract_scores in practice, so this trades some
// recomputation for not duplicating the bucket-split logic.
func (w *WordFST) SymScore(s wfst.StateId, c rune) wfst.Weight {
	var out mozolm.LMScores
	if !w.ExtractScores(s, &out) {
		return wfst.Zero
	}
	key := string(c)
	for i, sym := range out.Symbols {
		if sym == key {
			return wfst.NegLog(out.Probabilities[i])
		}
	}
	return wfst.Zero
}

// UpdateCounts is a no-op returning ok: the word-FST model is read-only
// (spec.md §4.3 does not define dynamic updates for it, unlike PPM).
func (w *WordFST) UpdateCounts(wfst.StateId, []rune, int) bool { return true }

func (w *WordFST) IsStatic() bool { return true }
