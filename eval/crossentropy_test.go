package eval

import (
	"math"
	"testing"

	"github.com/kho/mozolm"
	"github.com/kho/mozolm/models"
)

func newBigramHub(t *testing.T) *mozolm.Hub {
	t.Helper()
	m := models.NewDefaultSimpleBigram()
	hub, err := mozolm.NewHub([]mozolm.LanguageModel{m}, nil, mozolm.MixtureNone, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return hub
}

func TestCrossEntropyCountsCharsAndEndOfString(t *testing.T) {
	hub := newBigramHub(t)
	lines := []string{"ab", "ba"}
	result := CrossEntropy(hub, lines)

	wantChars := 0
	for _, l := range lines {
		wantChars += len([]rune(l)) + 1 // + end-of-string marker
	}
	if result.TotalChars != wantChars {
		t.Errorf("TotalChars = %d, want %d", result.TotalChars, wantChars)
	}
	if result.OOVCount != 0 {
		t.Errorf("OOVCount = %d, want 0 (every symbol is in the default alphabet)", result.OOVCount)
	}
	if result.AverageBitsPerChar <= 0 || math.IsNaN(result.AverageBitsPerChar) || math.IsInf(result.AverageBitsPerChar, 0) {
		t.Errorf("AverageBitsPerChar = %g, want a small positive finite value", result.AverageBitsPerChar)
	}
}

func TestCrossEntropyCountsOOV(t *testing.T) {
	hub := newBigramHub(t)
	result := CrossEntropy(hub, []string{"a1"})
	if result.OOVCount != 1 {
		t.Errorf("OOVCount = %d, want 1 (digit '1' is outside the default alphabet)", result.OOVCount)
	}
}

func TestCrossEntropyEmptyInput(t *testing.T) {
	hub := newBigramHub(t)
	result := CrossEntropy(hub, nil)
	if result.TotalChars != 0 || result.AverageBitsPerChar != 0 {
		t.Errorf("got %+v, want zero value for empty input", result)
	}
}
