package mozolm

import (
	"testing"

	"github.com/kho/mozolm/wfst"
)

// counterModel is a minimal LanguageModel stub: state is simply a
// monotonically increasing counter of codepoints consumed, used to
// exercise Hub bookkeeping without depending on package models.
type counterModel struct{}

func (counterModel) StartState() wfst.StateId                { return 0 }
func (counterModel) StateSym(wfst.StateId) rune               { return -1 }
func (counterModel) NextState(s wfst.StateId, c rune) wfst.StateId { return s + 1 }
func (counterModel) SymScore(wfst.StateId, rune) wfst.Weight  { return wfst.NegLog(0.5) }
func (counterModel) UpdateCounts(wfst.StateId, []rune, int) bool { return true }
func (counterModel) IsStatic() bool                           { return true }

func (counterModel) ExtractScores(s wfst.StateId, out *LMScores) bool {
	out.Symbols = []string{"", "a"}
	out.Probabilities = []float64{0.5, 0.5}
	out.Normalization = 1
	return true
}

func TestHubSingleModelDelegatesDirectly(t *testing.T) {
	hub, err := NewHub([]LanguageModel{counterModel{}}, nil, MixtureNone, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	var scores LMScores
	if !hub.ExtractScores(0, &scores) {
		t.Fatal("ExtractScores failed")
	}
	if len(scores.Symbols) != 2 {
		t.Fatalf("got %d symbols, want 2", len(scores.Symbols))
	}
}

func TestHubNextStateMemoizesAndSetsPrevSym(t *testing.T) {
	hub, err := NewHub([]LanguageModel{counterModel{}}, nil, MixtureNone, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	s1 := hub.NextState(0, 'a')
	s2 := hub.NextState(0, 'a')
	if s1 != s2 {
		t.Errorf("NextState(0, 'a') not memoized: got %d then %d", s1, s2)
	}
	if hub.StateSym(s1) != 'a' {
		t.Errorf("StateSym(%d) = %c, want 'a'", s1, hub.StateSym(s1))
	}
	if len(hub.ModelStates(s1)) != 1 {
		t.Errorf("ModelStates length = %d, want 1 (one component model)", len(hub.ModelStates(s1)))
	}
	if hub.states[s1].PrevState != 0 {
		t.Errorf("PrevState of %d = %d, want 0", s1, hub.states[s1].PrevState)
	}
}

func TestHubArenaEvictsRoundRobinOnceFull(t *testing.T) {
	hub, err := NewHub([]LanguageModel{counterModel{}}, nil, MixtureNone, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	s := 0
	for i := 0; i < 40; i++ {
		s = hub.NextState(s, rune('a'+i%26))
	}
	if hub.NumStates() > 10 {
		t.Errorf("NumStates() = %d, want at most 10 (arena cap)", hub.NumStates())
	}
}

func TestHubContextStateWalksWholeString(t *testing.T) {
	hub, err := NewHub([]LanguageModel{counterModel{}}, nil, MixtureNone, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	s := hub.ContextState("abc", -1)
	if hub.StateSym(s) != 'c' {
		t.Errorf("StateSym after \"abc\" = %c, want 'c'", hub.StateSym(s))
	}
}

func TestNewHubRejectsNoModels(t *testing.T) {
	if _, err := NewHub(nil, nil, MixtureNone, 0, 0); err == nil {
		t.Error("expected an error constructing a hub with no component models")
	}
}
