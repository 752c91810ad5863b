// Package config loads catalogue and solver defaults from a YAML document
// using a viper/yaml.v3 round-trip: an outer {kind, def} envelope
// unmarshalled loosely by viper, then re-marshalled into a concrete struct
// so viper's own (rather idiosyncratic) decoding quirks never leak into the
// rest of the module.
package config

import (
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/2-07665/ww-echo-policy-calculator/internal/apperrors"
)

// outerDocument is a kind tag plus an untyped payload, letting one file
// format host several config kinds later without a breaking change.
type outerDocument struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// BuffGridOverride lets an operator replace or extend a catalogue buff's
// value grid without touching Go source.
type BuffGridOverride struct {
	ID     string  `yaml:"id"`
	Values []int   `yaml:"values"`
	Counts []int64 `yaml:"counts"`
}

// CatalogueConfig is the on-disk, human-editable half of the domain
// catalogue: value-grid overrides, default weights, default cost schedule,
// and default refund ratio. The rest of the catalogue (buff identity,
// display labels, max values) is compiled in and loaded once at startup.
type CatalogueConfig struct {
	BuffGridOverrides []BuffGridOverride `yaml:"buffGridOverrides"`
	DefaultWeights    map[string]float64 `yaml:"defaultWeights"`
	DefaultTarget     float64            `yaml:"defaultTargetScore"`
	DefaultRefund     float64            `yaml:"defaultExpRefundRatio"`
	DefaultScorer     string             `yaml:"defaultScorerType"`
	DefaultCostWeights struct {
		Echo   float64 `yaml:"wEcho"`
		Tuner  float64 `yaml:"wTuner"`
		Exp    float64 `yaml:"wExp"`
	} `yaml:"defaultCostWeights"`
	// UserCounts holds per-buff, per-value observed roll counts (keyed by
	// buff id, then value) for the optional empirical-count blend. It is only
	// loaded: catalog.New does not apply it, and the commands do not pass it
	// to catalog.Catalogue.WithUserCounts.
	UserCounts map[string]map[int]uint64 `yaml:"userCounts"`
}

// FromYAML reads a catalogue config document from path.
func FromYAML(path string) (*CatalogueConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(filepath.Base(path))
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))

	if err := vp.ReadInConfig(); err != nil {
		return nil, apperrors.Wrap(err, "reading catalogue config")
	}

	outer := &outerDocument{}
	if err := vp.Unmarshal(outer); err != nil {
		return nil, apperrors.Wrap(err, "unmarshalling catalogue config envelope")
	}

	raw, err := yaml.Marshal(outer.Def)
	if err != nil {
		return nil, apperrors.Wrap(err, "re-marshalling catalogue config payload")
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, apperrors.Wrap(err, "unmarshalling catalogue config payload")
	}
	return cfg, nil
}

// Default returns the built-in defaults used when no config file is present.
func Default() *CatalogueConfig {
	cfg := &CatalogueConfig{
		DefaultTarget: 60,
		DefaultRefund: 0.5,
		DefaultScorer: "linear",
	}
	cfg.DefaultCostWeights.Echo = 1
	cfg.DefaultCostWeights.Tuner = 1
	cfg.DefaultCostWeights.Exp = 0.001
	return cfg
}
