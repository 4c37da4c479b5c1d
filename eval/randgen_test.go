package eval

import (
	"math/rand"
	"strings"
	"testing"
)

func TestRandGenPreservesPrefix(t *testing.T) {
	hub := newBigramHub(t)
	rng := rand.New(rand.NewSource(1))
	out := RandGen(hub, "ab", rng)
	if !strings.HasPrefix(out, "ab") {
		t.Errorf("RandGen output %q does not start with prefix %q", out, "ab")
	}
}

func TestRandGenRespectsLengthCap(t *testing.T) {
	hub := newBigramHub(t)
	// Whether a seeded run ends on end-of-string or on the length cap,
	// the generated text never exceeds the prefix plus MaxRandGenLen.
	rng := rand.New(rand.NewSource(2))
	out := RandGen(hub, "a", rng)
	runes := []rune(strings.TrimSuffix(strings.TrimSuffix(out, "(reached_length_limit)"), "(subsequent generation failed)"))
	if len(runes) > len([]rune("a"))+MaxRandGenLen {
		t.Errorf("generated %d codepoints, want at most %d", len(runes), len([]rune("a"))+MaxRandGenLen)
	}
}
