package storage

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kho/mozolm"
)

func writeConfig(t *testing.T, yamlBody string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadModelHubConfigRejectsEmptyModelList(t *testing.T) {
	path := writeConfig(t, "mixture_type: NONE\n")
	if _, err := LoadModelHubConfig(path); err == nil {
		t.Error("expected an error for a config with no models")
	}
}

func TestBuildHubDefaultBigram(t *testing.T) {
	path := writeConfig(t, "models:\n  - type: SIMPLE_CHAR_BIGRAM\nmixture_type: NONE\n")
	cfg, err := LoadModelHubConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	hub, err := BuildHub(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var scores mozolm.LMScores
	if !hub.ExtractScores(0, &scores) {
		t.Fatal("ExtractScores failed")
	}
	if len(scores.Symbols) != 28 {
		t.Fatalf("got %d symbols, want 28", len(scores.Symbols))
	}
	want := 1.0 / 28.0
	for i, p := range scores.Probabilities {
		if math.Abs(p-want) > 1e-6 {
			t.Errorf("symbol %q: prob = %g, want %g", scores.Symbols[i], p, want)
		}
	}
}

func TestBuildModelRejectsUnknownType(t *testing.T) {
	d := &ModelStorageDescriptor{Type: "BOGUS"}
	if _, err := BuildModel(d); err == nil {
		t.Error("expected an error for an unknown model type")
	}
}

func TestBuildModelPPMRequiresFST(t *testing.T) {
	d := &ModelStorageDescriptor{Type: PPMAsFST}
	if _, err := BuildModel(d); err == nil {
		t.Error("expected an error when ppm_options.model_is_fst is unset")
	}
}
