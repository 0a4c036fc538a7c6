package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyScore(t *testing.T) {
	tests := []struct {
		name     string
		a, b     any
		want     float64
		tolerate float64
	}{
		{"identical", "Acme Corp", "Acme Corp", 1.0, 0},
		{"equal after normalization", "ACME, corp.", "acme corp", 1.0, 0},
		{"one typo", "Grocery Store Purchase", "GROCERY STORE PURCHSE", 1.0 - 1.0/22.0, 1e-9},
		{"classic", "kitten", "sitting", 1.0 - 3.0/7.0, 1e-9},
		{"empty side", "", "abc", 0.0, 0},
		{"nil side", "abc", nil, 0.0, 0},
		{"both empty", "", nil, 1.0, 0},
		{"disjoint", "abc", "xyz", 0.0, 0},
		{"multibyte runes", "café", "cafe", 0.75, 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FuzzyScore(tt.a, tt.b), tt.tolerate)
		})
	}
}

func TestFuzzyScoreBounds(t *testing.T) {
	words := []string{"a", "ab", "invoice", "INV-1", "Straße", "", "0000", "long description text"}
	for _, a := range words {
		for _, b := range words {
			score := FuzzyScore(a, b)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
			assert.Equal(t, score, FuzzyScore(b, a), "symmetric for %q %q", a, b)
		}
		if a != "" {
			assert.Equal(t, 1.0, FuzzyScore(a, a))
		}
	}
}

func TestCompareFuzzy(t *testing.T) {
	matched, score := CompareFuzzy("Grocery Store Purchase", "GROCERY STORE PURCHSE", DefaultFuzzyThreshold)
	assert.True(t, matched)
	assert.InDelta(t, 0.95, score, 0.01)

	matched, score = CompareFuzzy("kitten", "sitting", DefaultFuzzyThreshold)
	assert.False(t, matched)
	assert.Less(t, score, DefaultFuzzyThreshold)
}
