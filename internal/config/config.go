// Package config loads and validates study definitions.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Reference design constants, used when a study file leaves the
// corresponding field unset.
const (
	DefaultSubjects     = 100
	DefaultItems        = 20
	DefaultReplications = 100
	DefaultSeed         = 42
)

// StudyConfig represents a complete simulation study definition.
type StudyConfig struct {
	Name         string            `yaml:"name" json:"name"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	Design       Design            `yaml:"design" json:"design"`
	Seed         uint64            `yaml:"seed" json:"seed"`
	Replications int               `yaml:"replications" json:"replications"`
	Execution    Execution         `yaml:"execution,omitempty" json:"execution,omitempty"`
	Estimators   []EstimatorConfig `yaml:"estimators" json:"estimators"`
}

// Design fixes the crossed sample sizes.
type Design struct {
	Subjects int `yaml:"subjects" json:"subjects"`
	Items    int `yaml:"items" json:"items"`
}

// Execution controls replication behavior.
type Execution struct {
	Workers     int    `yaml:"workers,omitempty" json:"workers,omitempty"`
	OnFailure   string `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`
	MaxAttempts int    `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
}

// EstimatorConfig selects a fitting backend and its options.
type EstimatorConfig struct {
	Kind       string         `yaml:"type" json:"kind"`
	Identifier string         `yaml:"name,omitempty" json:"identifier,omitempty"`
	Parameters map[string]any `yaml:"config,omitempty" json:"parameters,omitempty"`
}

// Default returns the reference study configuration: a fully crossed
// 100×20 design replicated 100 times under a fixed seed, fit with both
// backends.
func Default() *StudyConfig {
	return &StudyConfig{
		Name:         "reference-study",
		Design:       Design{Subjects: DefaultSubjects, Items: DefaultItems},
		Seed:         DefaultSeed,
		Replications: DefaultReplications,
		Execution:    Execution{Workers: 1, OnFailure: "abort", MaxAttempts: 3},
		Estimators: []EstimatorConfig{
			{Kind: "rasch", Identifier: "rasch-mml"},
			{Kind: "mixed", Identifier: "glmm-agq"},
		},
	}
}

// Load loads a study config from a YAML file.
func Load(path string) (*StudyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg StudyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *StudyConfig) applyDefaults() {
	if c.Design.Subjects == 0 {
		c.Design.Subjects = DefaultSubjects
	}
	if c.Design.Items == 0 {
		c.Design.Items = DefaultItems
	}
	if c.Replications == 0 {
		c.Replications = DefaultReplications
	}
	if c.Execution.Workers == 0 {
		c.Execution.Workers = 1
	}
	if c.Execution.OnFailure == "" {
		c.Execution.OnFailure = "abort"
	}
	if c.Execution.MaxAttempts == 0 {
		c.Execution.MaxAttempts = 3
	}
}

// Validate checks that the study is well-formed.
func (c *StudyConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("study name is required")
	}
	if c.Design.Subjects < 2 {
		return fmt.Errorf("design.subjects must be at least 2, got %d", c.Design.Subjects)
	}
	if c.Design.Items < 2 {
		return fmt.Errorf("design.items must be at least 2, got %d", c.Design.Items)
	}
	if c.Replications < 1 {
		return fmt.Errorf("replications must be at least 1, got %d", c.Replications)
	}
	if c.Execution.Workers < 1 {
		return fmt.Errorf("execution.workers must be at least 1, got %d", c.Execution.Workers)
	}
	switch c.Execution.OnFailure {
	case "abort", "skip", "retry":
	default:
		return fmt.Errorf("execution.on_failure must be abort, skip or retry, got %q", c.Execution.OnFailure)
	}
	if c.Execution.MaxAttempts < 1 {
		return fmt.Errorf("execution.max_attempts must be at least 1, got %d", c.Execution.MaxAttempts)
	}
	if len(c.Estimators) == 0 {
		return fmt.Errorf("at least one estimator is required")
	}
	for i, e := range c.Estimators {
		switch e.Kind {
		case "rasch", "mixed":
		default:
			return fmt.Errorf("estimators[%d].type must be rasch or mixed, got %q", i, e.Kind)
		}
	}
	return nil
}
