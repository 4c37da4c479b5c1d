package mozolm

import (
	"reflect"
	"testing"
)

func TestGetTopHypothesesOrdersByProbabilityThenSymbol(t *testing.T) {
	scores := &LMScores{
		Symbols:       []string{"a", "b", "c", "d"},
		Probabilities: []float64{0.1, 0.4, 0.4, 0.1},
	}
	got, err := GetTopHypotheses(scores, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []Hypothesis{
		{"b", 0.4}, {"c", 0.4}, {"a", 0.1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGetTopHypothesesZeroMeansAll(t *testing.T) {
	scores := &LMScores{Symbols: []string{"a", "b"}, Probabilities: []float64{0.5, 0.5}}
	got, err := GetTopHypotheses(scores, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d hypotheses, want 2", len(got))
	}
}

func TestGetTopHypothesesRejectsMismatchedLengths(t *testing.T) {
	scores := &LMScores{Symbols: []string{"a", "b"}, Probabilities: []float64{0.5}}
	if _, err := GetTopHypotheses(scores, 1); err == nil {
		t.Error("expected an error for mismatched symbol/probability lengths")
	}
}

func TestGetTopHypothesesRejectsTopNTooLarge(t *testing.T) {
	scores := &LMScores{Symbols: []string{"a"}, Probabilities: []float64{1}}
	if _, err := GetTopHypotheses(scores, 2); err == nil {
		t.Error("expected an error when top_n exceeds the candidate count")
	}
}
