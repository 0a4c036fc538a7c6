package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMetrics(t *testing.T) {
	tests := []struct {
		name          string
		counts        Counts
		wantPrecision float64
		wantRecall    float64
		wantF1        float64
		wantFAR       float64
		wantAccuracy  float64
	}{
		{
			name:          "eight of nine",
			counts:        Counts{TruePositives: 8, FalsePositives: 1, FalseNegatives: 1},
			wantPrecision: 8.0 / 9.0,
			wantRecall:    8.0 / 9.0,
			wantF1:        8.0 / 9.0,
			wantFAR:       1.0 / 9.0,
			wantAccuracy:  0.8,
		},
		{
			name:          "no outcomes",
			counts:        Counts{},
			wantPrecision: 1.0,
			wantRecall:    1.0,
			wantF1:        1.0,
			wantFAR:       0.0,
			wantAccuracy:  1.0,
		},
		{
			name:          "only false negatives",
			counts:        Counts{FalseNegatives: 3},
			wantPrecision: 1.0,
			wantRecall:    0.0,
			wantF1:        0.0,
			wantFAR:       0.0,
			wantAccuracy:  0.0,
		},
		{
			name:          "only false positives",
			counts:        Counts{FalsePositives: 2, TrueNegatives: 2},
			wantPrecision: 0.0,
			wantRecall:    1.0,
			wantF1:        0.0,
			wantFAR:       1.0,
			wantAccuracy:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ComputeMetrics(tt.counts)

			assert.InDelta(t, tt.wantPrecision, m.Precision, 1e-9)
			assert.InDelta(t, tt.wantRecall, m.Recall, 1e-9)
			assert.InDelta(t, tt.wantF1, m.F1Score, 1e-9)
			assert.InDelta(t, tt.wantFAR, m.FalseAlarmRate, 1e-9)
			assert.InDelta(t, tt.wantAccuracy, m.Accuracy, 1e-9)
			assert.Equal(t, m.FalseAlarmRate, m.FalseDiscoveryRate)
			assert.Equal(t, tt.counts, m.Counts)
		})
	}
}

func TestCountLeaf(t *testing.T) {
	tests := []struct {
		name   string
		result AttributeResult
		want   Counts
	}{
		{
			name:   "present and matched",
			result: AttributeResult{Expected: "a", Actual: "a", Matched: true, Method: MethodExact},
			want:   Counts{TruePositives: 1},
		},
		{
			name:   "present and unmatched",
			result: AttributeResult{Expected: "a", Actual: "b", Method: MethodExact},
			want:   Counts{FalseNegatives: 1},
		},
		{
			name:   "present but missing",
			result: AttributeResult{Expected: "a", Method: MethodExact},
			want:   Counts{FalseNegatives: 1},
		},
		{
			name:   "spurious extraction",
			result: AttributeResult{Expected: "  ", Actual: "b", Method: MethodExact},
			want:   Counts{FalsePositives: 1},
		},
		{
			name:   "both absent",
			result: AttributeResult{Matched: true, Score: 1, Method: MethodExact},
			want:   Counts{TrueNegatives: 1},
		},
		{
			name: "hungarian uses matcher false positives",
			result: AttributeResult{
				Expected:       []any{"a", "b"},
				Actual:         []any{"a", "b", "c", "d"},
				Method:         MethodHungarian,
				TruePositives:  2,
				FalsePositives: 2,
			},
			want: Counts{FalseNegatives: 1, FalsePositives: 2},
		},
		{
			name: "hungarian with empty expected",
			result: AttributeResult{
				Expected:       []any{},
				Actual:         []any{"x"},
				Method:         MethodHungarian,
				FalsePositives: 1,
			},
			want: Counts{FalsePositives: 1},
		},
		{
			name: "hungarian error falls back to presence rule",
			result: AttributeResult{
				Actual:       []any{"x"},
				Method:       MethodHungarian,
				ErrorDetails: "boom",
			},
			want: Counts{FalsePositives: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountLeaf(tt.result))
		})
	}
}

func TestCountResultsUsesLeavesOnly(t *testing.T) {
	group := AttributeResult{
		Name:    "vendor",
		Matched: false,
		Children: []AttributeResult{
			{Name: "name", Expected: "Acme", Actual: "Acme", Matched: true, Score: 1},
			{Name: "city", Expected: "Paris", Actual: "Lyon"},
		},
	}

	got := CountResults([]AttributeResult{group})

	assert.Equal(t, Counts{TruePositives: 1, FalseNegatives: 1}, got)
}

func TestDocumentMetricsMicroAverage(t *testing.T) {
	perfect := SectionResult{
		SectionID: "1",
		Attributes: []AttributeResult{
			{Expected: "a", Actual: "a", Matched: true, Score: 1},
			{Expected: "b", Actual: "b", Matched: true, Score: 1},
		},
	}
	poor := SectionResult{
		SectionID: "2",
		Attributes: []AttributeResult{
			{Actual: "spurious"},
			{Expected: "c", Actual: "d"},
		},
	}
	perfect.Metrics = SectionMetrics(perfect.Attributes)
	poor.Metrics = SectionMetrics(poor.Attributes)

	assert.Equal(t, 1.0, perfect.Metrics.Precision)
	assert.Equal(t, 0.0, poor.Metrics.Precision)

	doc := DocumentMetrics([]SectionResult{perfect, poor})

	assert.InDelta(t, 2.0/3.0, doc.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, doc.Recall, 1e-9)
	assert.Equal(t, Counts{TruePositives: 2, FalsePositives: 1, FalseNegatives: 1}, doc.Counts)
}

func TestMetricsToMapKeys(t *testing.T) {
	m := ComputeMetrics(Counts{TruePositives: 1}).ToMap()

	for _, key := range []string{
		"precision", "recall", "f1_score", "accuracy", "false_alarm_rate",
		"false_discovery_rate", "true_positives", "false_positives",
		"false_negatives", "true_negatives",
	} {
		assert.Contains(t, m, key)
	}
	assert.Equal(t, 1, m["true_positives"])
}
