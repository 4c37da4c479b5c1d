// Package models implements the four LanguageModel variants of
// spec.md §4: simple bigram, character FST, word FST, and PPM-as-FST.
package models

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/kho/mozolm"
	"github.com/kho/mozolm/wfst"
)

// defaultBigramAlphabet is spec.md §4.5's default 28-symbol alphabet:
// the end-of-string sentinel, ASCII space, and lowercase a-z.
var defaultBigramAlphabet = append([]rune{0}, []rune(" abcdefghijklmnopqrstuvwxyz")...)

// SimpleBigram is the dense V×V bigram model of spec.md §4.5. A
// state is itself a vocabulary index: the previous symbol observed.
// Symbol index 0 is the end-of-string/start-of-string sentinel,
// emitted in LMScores as the empty string.
type SimpleBigram struct {
	symbols []rune
	index   map[rune]int

	normMu sync.RWMutex
	matMu  sync.RWMutex
	counts [][]float64
	totals []float64
}

var _ mozolm.LanguageModel = (*SimpleBigram)(nil)

// NewDefaultSimpleBigram builds the uniform 28-symbol model of
// spec.md's "concrete end-to-end scenario" 1: every cell starts at 1
// (Laplace smoothing baked into the matrix itself, per spec.md §4.5).
func NewDefaultSimpleBigram() *SimpleBigram {
	return newUniformSimpleBigram(defaultBigramAlphabet)
}

func newUniformSimpleBigram(alphabet []rune) *SimpleBigram {
	m := &SimpleBigram{
		symbols: append([]rune(nil), alphabet...),
		index:   make(map[rune]int, len(alphabet)),
	}
	for i, r := range alphabet {
		m.index[r] = i
	}
	v := len(alphabet)
	m.counts = make([][]float64, v)
	m.totals = make([]float64, v)
	for i := range m.counts {
		row := make([]float64, v)
		for j := range row {
			row[j] = 1
		}
		m.counts[i] = row
		m.totals[i] = float64(v)
	}
	return m
}

// ReadSimpleBigram loads a dense bigram matrix from rowsPath (one
// strictly increasing codepoint per line) and matrixPath (V
// whitespace-separated integers per line), per spec.md §6 "Persisted
// formats". An empty rowsPath yields the default uniform alphabet.
func ReadSimpleBigram(rowsPath, matrixPath string) (*SimpleBigram, error) {
	if rowsPath == "" {
		return NewDefaultSimpleBigram(), nil
	}
	alphabet, err := readRows(rowsPath)
	if err != nil {
		return nil, err
	}
	m := &SimpleBigram{
		symbols: alphabet,
		index:   make(map[rune]int, len(alphabet)),
	}
	for i, r := range alphabet {
		m.index[r] = i
	}
	counts, totals, err := readMatrix(matrixPath, len(alphabet))
	if err != nil {
		return nil, err
	}
	m.counts, m.totals = counts, totals
	return m, nil
}

func readRows(path string) ([]rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mozolm: opening rows file: %w", err)
	}
	defer f.Close()
	var rows []rune
	s := bufio.NewScanner(f)
	prev := -1
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("mozolm: malformed rows file: %w", err)
		}
		if n <= prev {
			return nil, fmt.Errorf("mozolm: rows file not strictly increasing at codepoint %d", n)
		}
		prev = n
		rows = append(rows, rune(n))
	}
	return rows, s.Err()
}

func readMatrix(path string, v int) ([][]float64, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("mozolm: opening matrix file: %w", err)
	}
	defer f.Close()
	counts := make([][]float64, 0, v)
	totals := make([]float64, 0, v)
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), 1<<20)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != v {
			return nil, nil, fmt.Errorf("mozolm: matrix row has %d entries, want %d", len(fields), v)
		}
		row := make([]float64, v)
		var total float64
		for i, field := range fields {
			c, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("mozolm: malformed matrix entry: %w", err)
			}
			row[i] = c
			total += c
		}
		counts = append(counts, row)
		totals = append(totals, total)
	}
	if err := s.Err(); err != nil {
		return nil, nil, err
	}
	if len(counts) != v {
		return nil, nil, fmt.Errorf("mozolm: matrix has %d rows, want %d", len(counts), v)
	}
	return counts, totals, nil
}

func (m *SimpleBigram) StartState() wfst.StateId { return 0 }

func (m *SimpleBigram) StateSym(s wfst.StateId) rune {
	if s <= 0 || int(s) >= len(m.symbols) {
		return -1
	}
	return m.symbols[s]
}

// NextState returns the vocabulary index for codepoint c, or -1 if c
// is not in the alphabet (spec.md §4.5).
func (m *SimpleBigram) NextState(s wfst.StateId, c rune) wfst.StateId {
	if idx, ok := m.index[c]; ok {
		return wfst.StateId(idx)
	}
	return -1
}

// ExtractScores emits row[s][i]/totals[s] for every vocabulary index
// i (spec.md §4.5).
func (m *SimpleBigram) ExtractScores(s wfst.StateId, out *mozolm.LMScores) bool {
	row := int(s)
	if row < 0 || row >= len(m.counts) {
		return false
	}
	m.matMu.RLock()
	m.normMu.RLock()
	defer m.matMu.RUnlock()
	defer m.normMu.RUnlock()

	out.Symbols = make([]string, len(m.symbols))
	out.Probabilities = make([]float64, len(m.symbols))
	total := m.totals[row]
	for i, r := range m.symbols {
		if i == 0 {
			out.Symbols[i] = ""
		} else {
			out.Symbols[i] = string(r)
		}
		out.Probabilities[i] = m.counts[row][i] / total
	}
	out.Normalization = 1
	return true
}

// SymScore returns the negative-log-probability of c at s, falling
// back to state 0 when s or c's vocabulary index is out of range
// (spec.md §4.5).
func (m *SimpleBigram) SymScore(s wfst.StateId, c rune) wfst.Weight {
	row := int(s)
	if row < 0 || row >= len(m.counts) {
		row = 0
	}
	idx, ok := m.index[c]
	if !ok {
		row, idx = 0, 0
	}
	m.matMu.RLock()
	m.normMu.RLock()
	defer m.matMu.RUnlock()
	defer m.normMu.RUnlock()
	return wfst.NegLog(m.counts[row][idx] / m.totals[row])
}

// UpdateCounts increments row[s][next] and the row total by count for
// each codepoint, under an exclusive lock; an unknown codepoint
// advances to state 0 without incrementing anything (spec.md §4.5).
func (m *SimpleBigram) UpdateCounts(s wfst.StateId, codepoints []rune, count int) bool {
	if count <= 0 {
		return false
	}
	m.matMu.Lock()
	m.normMu.Lock()
	defer m.matMu.Unlock()
	defer m.normMu.Unlock()

	row := int(s)
	if row < 0 || row >= len(m.counts) {
		row = 0
	}
	for _, c := range codepoints {
		idx, ok := m.index[c]
		if !ok {
			row = 0
			continue
		}
		m.counts[row][idx] += float64(count)
		m.totals[row] += float64(count)
		row = idx
	}
	return true
}

func (m *SimpleBigram) IsStatic() bool { return false }
