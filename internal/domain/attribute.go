// Package domain contains pure, dependency-light models for the extraction
// evaluation engine: attribute specifications, the value algebra used to walk
// expected and actual trees, evaluation results and the metrics computed over
// them.
package domain

import (
	"strings"
)

// AttributeType describes the shape of an attribute in a specification tree.
type AttributeType string

// Supported attribute shapes.
const (
	// AttributeSimple is a scalar leaf compared with a single strategy call.
	AttributeSimple AttributeType = "simple"
	// AttributeGroup is a named set of child attributes.
	AttributeGroup AttributeType = "group"
	// AttributeList is a repeated item described by an item template.
	AttributeList AttributeType = "list"
)

// Method identifies a comparison strategy. The set of methods is closed;
// every value returned by Methods has a handler in the dispatcher.
type Method string

// Comparison strategies.
const (
	// MethodExact compares normalized text for equality.
	MethodExact Method = "EXACT"
	// MethodNumericExact parses both sides as numbers and compares them.
	MethodNumericExact Method = "NUMERIC_EXACT"
	// MethodFuzzy scores edit-distance similarity against a threshold.
	MethodFuzzy Method = "FUZZY"
	// MethodHungarian matches two unordered lists with an optimal assignment.
	MethodHungarian Method = "HUNGARIAN"
	// MethodSemantic delegates the decision to an injected judge.
	MethodSemantic Method = "SEMANTIC"
	// MethodBERT is an alias that degrades to fuzzy scoring when no
	// embedding backend is wired in.
	MethodBERT Method = "BERT"
)

var methods = []Method{
	MethodExact,
	MethodNumericExact,
	MethodFuzzy,
	MethodHungarian,
	MethodSemantic,
	MethodBERT,
}

// Methods returns every supported comparison method.
func Methods() []Method {
	out := make([]Method, len(methods))
	copy(out, methods)
	return out
}

// ParseMethod resolves a configured method tag. Matching ignores case,
// surrounding whitespace and the choice of '-' or '_' as separator.
// "NUMERIC" is accepted as shorthand for NUMERIC_EXACT.
func ParseMethod(s string) (Method, bool) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	tag = strings.ReplaceAll(tag, "-", "_")
	if tag == "NUMERIC" {
		return MethodNumericExact, true
	}
	for _, m := range methods {
		if string(m) == tag {
			return m, true
		}
	}
	return "", false
}

// UsesThreshold reports whether the method consumes the attribute threshold.
func (m Method) UsesThreshold() bool {
	switch m {
	case MethodFuzzy, MethodSemantic, MethodBERT:
		return true
	default:
		return false
	}
}

// ComparatorType selects the leaf comparison used inside a HUNGARIAN match.
type ComparatorType string

// Leaf comparators for list matching.
const (
	// ComparatorExact prefers numeric equality and falls back to normalized text.
	ComparatorExact ComparatorType = "EXACT"
	// ComparatorNumeric requires numeric equality when both sides parse.
	ComparatorNumeric ComparatorType = "NUMERIC"
	// ComparatorFuzzy accepts pairs whose fuzzy score meets the threshold.
	ComparatorFuzzy ComparatorType = "FUZZY"
)

// ParseComparatorType resolves a configured comparator tag. An empty tag
// resolves to ComparatorExact.
func ParseComparatorType(s string) (ComparatorType, bool) {
	tag := strings.ToUpper(strings.TrimSpace(s))
	switch tag {
	case "", string(ComparatorExact):
		return ComparatorExact, true
	case string(ComparatorNumeric), "NUMERIC_EXACT":
		return ComparatorNumeric, true
	case string(ComparatorFuzzy):
		return ComparatorFuzzy, true
	default:
		return "", false
	}
}

// ListStrategy selects how list attributes are compared.
type ListStrategy string

// List comparison strategies.
const (
	// ListIndex compares expected[i] with actual[i] through the item template.
	ListIndex ListStrategy = "index"
	// ListSet compares the whole list as one HUNGARIAN match on composite keys.
	ListSet ListStrategy = "set"
)

// AttributeSpec describes one attribute of a document class. Group attributes
// carry Children; list attributes carry an item template in Items.
type AttributeSpec struct {
	// Name is the key looked up in the expected and actual trees.
	Name string `yaml:"name" json:"name" validate:"required,max=255"`

	// Description is passed to the semantic judge as context.
	Description string `yaml:"description,omitempty" json:"description,omitempty" validate:"max=2000"`

	// Type is the attribute shape. When empty it is inferred from Items and
	// Children.
	Type AttributeType `yaml:"type,omitempty" json:"type,omitempty" validate:"omitempty,oneof=simple group list"`

	// Method is the raw comparison tag. Unknown tags fall back to EXACT at
	// evaluation time.
	Method string `yaml:"method,omitempty" json:"method,omitempty"`

	// Threshold overrides the default threshold when set.
	Threshold *float64 `yaml:"threshold,omitempty" json:"threshold,omitempty" validate:"omitempty,min=0,max=1"`

	// Comparator selects the leaf comparator used by HUNGARIAN matching.
	Comparator string `yaml:"comparator_type,omitempty" json:"comparator_type,omitempty" validate:"omitempty,oneof=EXACT NUMERIC NUMERIC_EXACT FUZZY exact numeric numeric_exact fuzzy"`

	// ListStrategy selects index-aligned or set-based list comparison.
	ListStrategy ListStrategy `yaml:"list_strategy,omitempty" json:"list_strategy,omitempty" validate:"omitempty,oneof=index set"`

	// Children are the members of a group attribute.
	Children []AttributeSpec `yaml:"children,omitempty" json:"children,omitempty" validate:"dive"`

	// Items is the item template of a list attribute.
	Items []AttributeSpec `yaml:"items,omitempty" json:"items,omitempty" validate:"dive"`
}

// ResolvedType returns the declared type, or the type implied by the
// presence of Items or Children.
func (a AttributeSpec) ResolvedType() AttributeType {
	if a.Type != "" {
		return a.Type
	}
	switch {
	case len(a.Items) > 0:
		return AttributeList
	case len(a.Children) > 0:
		return AttributeGroup
	default:
		return AttributeSimple
	}
}

// ResolveMethod returns the attribute's method. Attributes without a method
// use the settings default. The boolean is false when a configured tag was
// not recognized and the EXACT fallback was applied.
func (a AttributeSpec) ResolveMethod(s Settings) (Method, bool) {
	if strings.TrimSpace(a.Method) == "" {
		return s.Method, true
	}
	if m, ok := ParseMethod(a.Method); ok {
		return m, true
	}
	return MethodExact, false
}

// ResolveThreshold returns the attribute threshold or the settings default.
func (a AttributeSpec) ResolveThreshold(s Settings) float64 {
	if a.Threshold != nil {
		return *a.Threshold
	}
	return s.Threshold
}

// ResolveComparator returns the HUNGARIAN leaf comparator for the attribute.
// Unknown tags resolve to the settings default.
func (a AttributeSpec) ResolveComparator(s Settings) ComparatorType {
	if strings.TrimSpace(a.Comparator) == "" {
		return s.Comparator
	}
	if c, ok := ParseComparatorType(a.Comparator); ok {
		return c
	}
	return s.Comparator
}

// ResolveListStrategy returns the list strategy for a list attribute. A list
// configured with method HUNGARIAN is always compared as a set.
func (a AttributeSpec) ResolveListStrategy(s Settings) ListStrategy {
	if m, ok := ParseMethod(a.Method); ok && m == MethodHungarian {
		return ListSet
	}
	if a.ListStrategy != "" {
		return a.ListStrategy
	}
	return s.ListStrategy
}

// Settings holds the evaluation defaults applied to attributes that do not
// configure their own. Settings is a value type and is never mutated by the
// evaluator, so one value can be shared across concurrent evaluations.
type Settings struct {
	// Method is applied to attributes without an explicit method.
	Method Method `yaml:"method" json:"method"`
	// Threshold is applied to attributes without an explicit threshold.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"min=0,max=1"`
	// Comparator is the default HUNGARIAN leaf comparator.
	Comparator ComparatorType `yaml:"comparator_type" json:"comparator_type"`
	// ListStrategy is the default list strategy.
	ListStrategy ListStrategy `yaml:"list_strategy" json:"list_strategy" validate:"omitempty,oneof=index set"`
}

// DefaultSettings returns EXACT matching with a 0.8 threshold, the EXACT
// leaf comparator and index-aligned lists.
func DefaultSettings() Settings {
	return Settings{
		Method:       MethodExact,
		Threshold:    0.8,
		Comparator:   ComparatorExact,
		ListStrategy: ListIndex,
	}
}
