// Package storage implements spec.md §6's model storage descriptor
// and hub configuration: a YAML document naming one or more
// component models and how the hub should mix them, and the loader
// that turns it into a running *mozolm.Hub.
package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kho/mozolm"
	"github.com/kho/mozolm/models"
	"github.com/kho/mozolm/wfst"
)

// ModelType enumerates spec.md §6's four component model kinds.
type ModelType string

const (
	SimpleCharBigram ModelType = "SIMPLE_CHAR_BIGRAM"
	CharNgramFST     ModelType = "CHAR_NGRAM_FST"
	PPMAsFST         ModelType = "PPM_AS_FST"
	WordNgramFST     ModelType = "WORD_NGRAM_FST"
)

// PPMOptions is spec.md §6's ppm_options block, consulted only when
// Type is PPMAsFST.
type PPMOptions struct {
	MaxOrder     int     `yaml:"max_order"`
	Alpha        float64 `yaml:"alpha"`
	Beta         float64 `yaml:"beta"`
	StaticModel  bool    `yaml:"static_model"`
	MaxCacheSize int     `yaml:"max_cache_size"`
	ModelIsFST   bool    `yaml:"model_is_fst"`
}

// NgramWordFSTOptions is spec.md §6's ngram_word_fst_options block,
// consulted only when Type is WordNgramFST.
type NgramWordFSTOptions struct {
	MaxCacheSize int `yaml:"max_cache_size"`
}

// ModelStorageDescriptor is spec.md §6's "Model storage descriptor":
// one component model's on-disk form plus its construction options.
type ModelStorageDescriptor struct {
	Type                ModelType           `yaml:"type"`
	ModelFile           string              `yaml:"model_file"`
	VocabularyFile      string              `yaml:"vocabulary_file"`
	RowsFile            string              `yaml:"rows_file"`
	PPMOptions          PPMOptions          `yaml:"ppm_options"`
	NgramWordFSTOptions NgramWordFSTOptions `yaml:"ngram_word_fst_options"`
	// Weight is the optional log-domain prior of spec.md §6, used by
	// the hub only under Bayesian-interpolation mixture; an absent
	// weight counts as 0 (probability 1 before normalization).
	Weight *float64 `yaml:"weight"`
}

// ModelHubConfig is the top-level YAML document: the hub's mixture
// configuration plus one descriptor per component model (spec.md §4.1
// "Configuration").
type ModelHubConfig struct {
	Models                []ModelStorageDescriptor `yaml:"models"`
	MixtureType           string                    `yaml:"mixture_type"`
	BayesianHistoryLength int                       `yaml:"bayesian_history_length"`
	MaxHubStates          int                       `yaml:"max_hub_states"`
}

// LoadModelHubConfig reads and parses a YAML hub config file.
func LoadModelHubConfig(path string) (*ModelHubConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mozolm: reading hub config: %w", err)
	}
	var cfg ModelHubConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("mozolm: parsing hub config: %w", err)
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("mozolm: hub config names no models")
	}
	return &cfg, nil
}

// BuildModel constructs the LanguageModel named by d, reading whatever
// files it names (spec.md §6 "Persisted formats").
func BuildModel(d *ModelStorageDescriptor) (mozolm.LanguageModel, error) {
	switch d.Type {
	case SimpleCharBigram:
		if d.ModelFile == "" {
			return models.NewDefaultSimpleBigram(), nil
		}
		return models.ReadSimpleBigram(d.RowsFile, d.ModelFile)
	case CharNgramFST:
		return models.ReadCharFST(d.ModelFile, d.VocabularyFile)
	case WordNgramFST:
		maxCache := d.NgramWordFSTOptions.MaxCacheSize
		if maxCache <= 0 {
			maxCache = models.DefaultWordFSTMaxCacheSize
		}
		return models.ReadWordFST(d.ModelFile, d.VocabularyFile, maxCache)
	case PPMAsFST:
		opt := d.PPMOptions
		maxOrder := opt.MaxOrder
		if maxOrder <= 0 {
			maxOrder = models.DefaultPPMMaxOrder
		}
		alpha := opt.Alpha
		if alpha <= 0 {
			alpha = models.DefaultPPMAlpha
		}
		beta := opt.Beta
		if beta <= 0 {
			beta = models.DefaultPPMBeta
		}
		maxCache := opt.MaxCacheSize
		if maxCache <= 0 {
			maxCache = models.DefaultPPMMaxCacheSize
		}
		if !opt.ModelIsFST {
			return nil, fmt.Errorf("mozolm: PPM_AS_FST descriptor requires model_is_fst (training from a raw corpus belongs to mozolm-train, not hub loading)")
		}
		return models.ReadPPMFromFST(d.ModelFile, d.VocabularyFile, maxOrder, alpha, beta, opt.StaticModel, maxCache)
	default:
		return nil, fmt.Errorf("mozolm: unknown model type %q", d.Type)
	}
}

// BuildHub constructs a *mozolm.Hub from cfg, building each component
// model via BuildModel.
func BuildHub(cfg *ModelHubConfig) (*mozolm.Hub, error) {
	modelList := make([]mozolm.LanguageModel, len(cfg.Models))
	priors := make([]wfst.Weight, len(cfg.Models))
	haveWeights := false
	for i := range cfg.Models {
		m, err := BuildModel(&cfg.Models[i])
		if err != nil {
			return nil, fmt.Errorf("mozolm: building model %d: %w", i, err)
		}
		modelList[i] = m
		if w := cfg.Models[i].Weight; w != nil {
			priors[i] = wfst.Weight(-*w)
			haveWeights = true
		} else {
			priors[i] = wfst.One
		}
	}
	mixture := mozolm.MixtureNone
	if cfg.MixtureType == "INTERPOLATION" || haveWeights {
		mixture = mozolm.MixtureInterpolation
	}
	return mozolm.NewHub(modelList, priors, mixture, cfg.BayesianHistoryLength, cfg.MaxHubStates)
}
