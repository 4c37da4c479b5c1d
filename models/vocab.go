package models

import (
	"bufio"
	"fmt"
	"os"

	"github.com/kho/mozolm/wfst"
)

// readVocabFile reads a sibling vocabulary file (one symbol per line)
// into a fresh SymbolTable with epsilon at label 0, per spec.md §6
// "when the symbol table is absent, a sibling vocabulary file ... can
// be supplied".
func readVocabFile(path string) (*wfst.SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mozolm: opening vocabulary file: %w", err)
	}
	defer f.Close()
	syms := wfst.NewSymbolTable("<eps>")
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		syms.Add(line)
	}
	return syms, s.Err()
}

// VocabFromCorpus builds a SymbolTable from every distinct codepoint
// occurring in lines, plus a literal space (word boundaries always
// count even on a corpus line that happens to omit one), for training
// a PPM-as-FST or char-FST model directly off a text corpus (spec.md
// §6 "Persisted formats" names no vocabulary-discovery procedure, so
// this one is this package's own, grounded on readVocabFile's
// epsilon-at-0 convention).
func VocabFromCorpus(lines []string) *wfst.SymbolTable {
	syms := wfst.NewSymbolTable("<eps>")
	syms.Add(" ")
	for _, line := range lines {
		for _, c := range line {
			if syms.Find(string(c)) == wfst.NoLabel {
				syms.Add(string(c))
			}
		}
	}
	return syms
}
