// Package application loads evaluation configurations and runs the
// recursive attribute evaluation over documents.
package application

import (
	"github.com/ahrav/docgavel/infrastructure/compare"
	"github.com/ahrav/docgavel/internal/domain"
)

// EvaluationConfig represents the complete YAML configuration for an
// evaluation run: the defaults applied to unconfigured attributes, the
// optional semantic judge settings and the attribute trees of each document
// class.
type EvaluationConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning format (e.g., "1.0.0").
	Version string `yaml:"version" validate:"required,semver"`

	// Defaults supplies the method and threshold for attributes that do not
	// set their own.
	Defaults DefaultsConfig `yaml:"defaults"`

	// Semantic configures the model-backed judge. It is only consulted when
	// an attribute resolves to SEMANTIC.
	Semantic *compare.SemanticConfig `yaml:"semantic,omitempty"`

	// Budget caps the judge calls made during one run.
	Budget BudgetConfig `yaml:"budget,omitempty"`

	// Classes lists the document classes this configuration can evaluate.
	Classes []ClassConfig `yaml:"classes" validate:"required,min=1,dive"`
}

// DefaultsConfig is the YAML form of domain.Settings. Tags are kept as
// strings so that any casing accepted by domain.ParseMethod can be used.
type DefaultsConfig struct {
	Method       string   `yaml:"method,omitempty" validate:"omitempty,evalmethod"`
	Threshold    *float64 `yaml:"threshold,omitempty" validate:"omitempty,min=0,max=1"`
	Comparator   string   `yaml:"comparator_type,omitempty" validate:"omitempty,comparator"`
	ListStrategy string   `yaml:"list_strategy,omitempty" validate:"omitempty,oneof=index set"`
}

// Settings overlays the configured values on domain.DefaultSettings.
func (d DefaultsConfig) Settings() domain.Settings {
	s := domain.DefaultSettings()
	if m, ok := domain.ParseMethod(d.Method); ok {
		s.Method = m
	}
	if d.Threshold != nil {
		s.Threshold = *d.Threshold
	}
	if c, ok := domain.ParseComparatorType(d.Comparator); ok {
		s.Comparator = c
	}
	if d.ListStrategy != "" {
		s.ListStrategy = domain.ListStrategy(d.ListStrategy)
	}
	return s
}

// BudgetConfig limits judge usage. Zero values mean unlimited.
type BudgetConfig struct {
	MaxTokens int64 `yaml:"max_tokens,omitempty" validate:"min=0"`
	MaxCalls  int64 `yaml:"max_calls,omitempty" validate:"min=0"`
}

// ClassConfig is the attribute tree of one document class.
type ClassConfig struct {
	// Name identifies the class and is passed to the judge as context.
	Name string `yaml:"name" validate:"required,max=255"`

	Description string `yaml:"description,omitempty" validate:"max=2000"`

	// Attributes are the top-level attributes of a section of this class.
	Attributes []domain.AttributeSpec `yaml:"attributes" validate:"required,min=1,dive"`
}

// Class returns the class with the given name.
func (c *EvaluationConfig) Class(name string) (ClassConfig, bool) {
	for _, cls := range c.Classes {
		if cls.Name == name {
			return cls, true
		}
	}
	return ClassConfig{}, false
}

// ClassNames returns the configured class names in declaration order.
func (c *EvaluationConfig) ClassNames() []string {
	names := make([]string, 0, len(c.Classes))
	for _, cls := range c.Classes {
		names = append(names, cls.Name)
	}
	return names
}

// SemanticConfig returns the configured judge settings, with unset prompt
// fields filled from compare.DefaultSemanticConfig.
func (c *EvaluationConfig) SemanticConfig() compare.SemanticConfig {
	def := compare.DefaultSemanticConfig()
	if c.Semantic == nil {
		return def
	}
	cfg := *c.Semantic
	if cfg.ModelID == "" {
		cfg.ModelID = def.ModelID
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = def.PromptTemplate
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	return cfg
}
