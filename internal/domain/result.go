package domain

import (
	"encoding/json"
	"time"
)

// AttributeResult is the outcome of evaluating one attribute. Results are
// built once by the evaluator and never mutated afterwards.
type AttributeResult struct {
	// Name is the attribute name, or name[i] for index-aligned list items.
	Name string

	// Path is the dotted path from the section root, e.g. line_items[1].amount.
	Path string

	Expected any
	Actual   any

	// Matched is true when Score meets the threshold under the method's rule.
	Matched bool

	// Score is always within [0, 1].
	Score float64

	// Reason is populated by semantic judgments.
	Reason string

	// ErrorDetails records a recovered attribute-level failure.
	ErrorDetails string

	Method    Method
	Threshold float64

	// Comparator is set for HUNGARIAN list comparisons.
	Comparator ComparatorType

	// Confidence is the extraction confidence supplied with the actual value.
	Confidence *float64

	// TruePositives and FalsePositives carry HUNGARIAN matcher counts.
	TruePositives  int
	FalsePositives int

	// Children holds group members or list items.
	Children []AttributeResult
}

// IsLeaf reports whether the result has no children. Metrics are computed
// over leaves only.
func (r AttributeResult) IsLeaf() bool { return len(r.Children) == 0 }

// Leaves returns the leaf results under r in depth-first order, including r
// itself when it is a leaf.
func (r AttributeResult) Leaves() []AttributeResult {
	if r.IsLeaf() {
		return []AttributeResult{r}
	}
	var out []AttributeResult
	for _, c := range r.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// ToMap returns the generic projection of the result.
func (r AttributeResult) ToMap() map[string]any {
	m := map[string]any{
		"name":                 r.Name,
		"path":                 r.Path,
		"expected":             r.Expected,
		"actual":               r.Actual,
		"matched":              r.Matched,
		"score":                r.Score,
		"reason":               nilIfEmpty(r.Reason),
		"error_details":        nilIfEmpty(r.ErrorDetails),
		"evaluation_method":    string(r.Method),
		"evaluation_threshold": r.Threshold,
		"comparator_type":      nilIfEmpty(string(r.Comparator)),
		"confidence":           nil,
	}
	if r.Confidence != nil {
		m["confidence"] = *r.Confidence
	}
	if r.Method == MethodHungarian {
		m["true_positives"] = r.TruePositives
		m["false_positives"] = r.FalsePositives
	}
	if len(r.Children) > 0 {
		children := make([]any, len(r.Children))
		for i, c := range r.Children {
			children[i] = c.ToMap()
		}
		m["children"] = children
	}
	return m
}

// SectionResult groups the attribute results of one document section.
type SectionResult struct {
	SectionID     string
	DocumentClass string
	Attributes    []AttributeResult
	Metrics       Metrics
}

// Leaves returns every leaf result in the section.
func (s SectionResult) Leaves() []AttributeResult {
	var out []AttributeResult
	for _, a := range s.Attributes {
		out = append(out, a.Leaves()...)
	}
	return out
}

// ToMap returns the generic projection of the section.
func (s SectionResult) ToMap() map[string]any {
	attrs := make([]any, len(s.Attributes))
	for i, a := range s.Attributes {
		attrs[i] = a.ToMap()
	}
	return map[string]any{
		"section_id":     s.SectionID,
		"document_class": s.DocumentClass,
		"metrics":        s.Metrics.ToMap(),
		"attributes":     attrs,
	}
}

// DocumentResult is the top-level evaluation output for one document.
type DocumentResult struct {
	DocumentID    string
	Sections      []SectionResult
	Metrics       Metrics
	ExecutionTime time.Duration
	OutputURI     string
}

// ToMap returns the generic projection of the document. It contains only
// maps, slices and scalars so it can be handed to any serializer.
func (d DocumentResult) ToMap() map[string]any {
	sections := make([]any, len(d.Sections))
	for i, s := range d.Sections {
		sections[i] = s.ToMap()
	}
	return map[string]any{
		"document_id":     d.DocumentID,
		"overall_metrics": d.Metrics.ToMap(),
		"section_results": sections,
		"execution_time":  d.ExecutionTime.Seconds(),
		"output_uri":      nilIfEmpty(d.OutputURI),
	}
}

// MarshalJSON encodes the generic projection.
func (d DocumentResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToMap())
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
