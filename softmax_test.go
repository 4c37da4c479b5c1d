package mozolm

import (
	"math"
	"testing"
)

func TestSoftmaxRenormalizeSumsToOne(t *testing.T) {
	scores := &LMScores{Probabilities: []float64{0.2, 0.3, 0.1}}
	SoftmaxRenormalize(scores)
	var sum float64
	for _, p := range scores.Probabilities {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("sum = %g, want 1", sum)
	}
}

func TestSoftmaxRenormalizeIsIdempotentOnAlreadyNormalizedInput(t *testing.T) {
	scores := &LMScores{Probabilities: []float64{0.25, 0.25, 0.25, 0.25}}
	SoftmaxRenormalize(scores)
	for _, p := range scores.Probabilities {
		if math.Abs(p-0.25) > 1e-9 {
			t.Errorf("probability = %g, want 0.25", p)
		}
	}
}
