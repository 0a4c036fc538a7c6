package domain

// Counts holds the confusion counts for a set of leaf results.
type Counts struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
	TrueNegatives  int `json:"true_negatives"`
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		TruePositives:  c.TruePositives + o.TruePositives,
		FalsePositives: c.FalsePositives + o.FalsePositives,
		FalseNegatives: c.FalseNegatives + o.FalseNegatives,
		TrueNegatives:  c.TrueNegatives + o.TrueNegatives,
	}
}

// Total returns the number of classified outcomes.
func (c Counts) Total() int {
	return c.TruePositives + c.FalsePositives + c.FalseNegatives + c.TrueNegatives
}

// Metrics are the rates derived from Counts.
type Metrics struct {
	Counts

	Precision          float64 `json:"precision"`
	Recall             float64 `json:"recall"`
	F1Score            float64 `json:"f1_score"`
	Accuracy           float64 `json:"accuracy"`
	FalseAlarmRate     float64 `json:"false_alarm_rate"`
	FalseDiscoveryRate float64 `json:"false_discovery_rate"`
}

// ToMap returns the metrics keyed by their report field names.
func (m Metrics) ToMap() map[string]any {
	return map[string]any{
		"precision":            m.Precision,
		"recall":               m.Recall,
		"f1_score":             m.F1Score,
		"accuracy":             m.Accuracy,
		"false_alarm_rate":     m.FalseAlarmRate,
		"false_discovery_rate": m.FalseDiscoveryRate,
		"true_positives":       m.TruePositives,
		"false_positives":      m.FalsePositives,
		"false_negatives":      m.FalseNegatives,
		"true_negatives":       m.TrueNegatives,
	}
}

// CountLeaf classifies a single leaf result.
//
// An expected value that is present counts as a true positive when matched
// and a false negative otherwise. An absent expected value with a present
// actual value is a false positive; both absent is a true negative.
// HUNGARIAN leaves that completed without error report the matcher's false
// positives in place of the presence rule, so unexpected list items are
// counted once.
func CountLeaf(r AttributeResult) Counts {
	var c Counts
	expected := IsPresent(r.Expected)
	actual := IsPresent(r.Actual)

	switch {
	case expected && r.Matched:
		c.TruePositives = 1
	case expected:
		c.FalseNegatives = 1
	}

	if r.Method == MethodHungarian && r.ErrorDetails == "" {
		c.FalsePositives = r.FalsePositives
		if !expected && !actual {
			c.TrueNegatives = 1
		}
		return c
	}

	switch {
	case !expected && actual:
		c.FalsePositives = 1
	case !expected:
		c.TrueNegatives = 1
	}
	return c
}

// CountResults sums the counts of every leaf under results. Group and list
// results contribute only through their leaves.
func CountResults(results []AttributeResult) Counts {
	var c Counts
	for _, r := range results {
		for _, leaf := range r.Leaves() {
			c = c.Add(CountLeaf(leaf))
		}
	}
	return c
}

// ComputeMetrics derives rates from counts. Precision and recall default to
// 1.0 when their denominator is zero; F1 and the false alarm rate default
// to 0.0; accuracy defaults to 1.0 when there are no outcomes.
func ComputeMetrics(c Counts) Metrics {
	tp := float64(c.TruePositives)
	fp := float64(c.FalsePositives)
	fn := float64(c.FalseNegatives)
	tn := float64(c.TrueNegatives)

	m := Metrics{Counts: c, Precision: 1.0, Recall: 1.0, Accuracy: 1.0}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
		m.FalseAlarmRate = fp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if sum := m.Precision + m.Recall; sum > 0 {
		m.F1Score = 2 * m.Precision * m.Recall / sum
	}
	if total := tp + fp + fn + tn; total > 0 {
		m.Accuracy = (tp + tn) / total
	}
	m.FalseDiscoveryRate = m.FalseAlarmRate
	return m
}

// SectionMetrics computes metrics over the leaves of one section.
func SectionMetrics(results []AttributeResult) Metrics {
	return ComputeMetrics(CountResults(results))
}

// DocumentMetrics micro-averages across sections: leaf counts are summed
// over every section before any rate is computed.
func DocumentMetrics(sections []SectionResult) Metrics {
	var c Counts
	for _, s := range sections {
		c = c.Add(CountResults(s.Attributes))
	}
	return ComputeMetrics(c)
}
