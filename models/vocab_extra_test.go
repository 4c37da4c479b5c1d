package models

import (
	"testing"

	"github.com/kho/mozolm/wfst"
)

func TestVocabFromCorpusIncludesSpaceAndCodepoints(t *testing.T) {
	syms := VocabFromCorpus([]string{"ab", "bc"})
	for _, want := range []string{" ", "a", "b", "c"} {
		if syms.Find(want) == wfst.NoLabel {
			t.Errorf("vocabulary missing symbol %q", want)
		}
	}
	// a, b, c, space, plus epsilon at 0
	if got, want := syms.NumSymbols(), 5; got != want {
		t.Errorf("NumSymbols() = %d, want %d", got, want)
	}
}

func TestVocabFromCorpusDedupesRepeatedCodepoints(t *testing.T) {
	syms := VocabFromCorpus([]string{"aaa", "aaa"})
	if got, want := syms.NumSymbols(), 3; got != want { // epsilon, space, a
		t.Errorf("NumSymbols() = %d, want %d", got, want)
	}
}
