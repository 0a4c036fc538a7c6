package compare

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultFuzzyThreshold is the similarity a FUZZY comparison needs to match
// when no threshold is configured.
const DefaultFuzzyThreshold = 0.8

// FuzzyScore returns the edit-distance similarity of two values after text
// normalization. Equal strings score 1.0, an empty side scores 0.0 and
// otherwise the score is 1 - distance/max(len) measured in runes.
func FuzzyScore(a, b any) float64 {
	s1 := NormalizeText(a)
	s2 := NormalizeText(b)
	if s1 == s2 {
		return 1.0
	}
	if s1 == "" || s2 == "" {
		return 0.0
	}

	// levenshtein operates on runes, so the length must be a rune count too.
	distance := levenshtein.ComputeDistance(s1, s2)
	maxLen := utf8.RuneCountInString(s1)
	if n := utf8.RuneCountInString(s2); n > maxLen {
		maxLen = n
	}

	similarity := 1.0 - float64(distance)/float64(maxLen)
	if similarity < 0 {
		similarity = 0
	}
	return similarity
}

// CompareFuzzy reports whether FuzzyScore meets threshold, along with the score.
func CompareFuzzy(expected, actual any, threshold float64) (bool, float64) {
	score := FuzzyScore(expected, actual)
	return score >= threshold, score
}
