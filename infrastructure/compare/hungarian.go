package compare

import (
	"math"

	"github.com/ahrav/docgavel/internal/domain"
)

// LeafComparator decides whether two normalized list items are equal.
type LeafComparator func(expected, actual string) bool

// ExactLeaf matches items that are numerically equal when both parse as
// numbers, and otherwise items whose normalized text is equal.
func ExactLeaf(expected, actual string) bool {
	e, errE := NormalizeNumeric(expected)
	a, errA := NormalizeNumeric(actual)
	if errE == nil && errA == nil {
		return e == a
	}
	return NormalizeText(expected) == NormalizeText(actual)
}

// NumericLeaf requires numeric equality when both items parse. When either
// side is not numeric it falls back to normalized text, like NUMERIC_EXACT.
func NumericLeaf(expected, actual string) bool {
	return ExactLeaf(expected, actual)
}

// FuzzyLeaf returns a comparator that matches items whose fuzzy score meets
// threshold.
func FuzzyLeaf(threshold float64) LeafComparator {
	return func(expected, actual string) bool {
		ok, _ := CompareFuzzy(expected, actual, threshold)
		return ok
	}
}

// LeafComparatorFor returns the comparator for a configured comparator type.
func LeafComparatorFor(ct domain.ComparatorType, threshold float64) LeafComparator {
	switch ct {
	case domain.ComparatorFuzzy:
		return FuzzyLeaf(threshold)
	case domain.ComparatorNumeric:
		return NumericLeaf
	default:
		return ExactLeaf
	}
}

// ListMatch is the outcome of matching two unordered lists.
type ListMatch struct {
	TruePositives  int
	FalsePositives int
	// Expected is the number of expected items.
	Expected int
}

// Matched reports whether at least one item matched and no actual item was
// left unmatched.
func (m ListMatch) Matched() bool {
	return m.TruePositives > 0 && m.FalsePositives == 0
}

// Score is TP/(TP+FP). With no matched or spurious items it is 1.0 when
// nothing was expected and 0.0 when expected items were all missed.
func (m ListMatch) Score() float64 {
	if d := m.TruePositives + m.FalsePositives; d > 0 {
		return float64(m.TruePositives) / float64(d)
	}
	if m.Expected > 0 {
		return 0.0
	}
	return 1.0
}

// CompareHungarian matches expected and actual as unordered lists under
// leaf, using an optimal one-to-one assignment. Both inputs are coerced with
// ToList. Actual items left without a match are false positives.
//
// The assignment is O(max(m,n)^3); callers should bound list sizes.
func CompareHungarian(expected, actual any, leaf LeafComparator) ListMatch {
	if leaf == nil {
		leaf = ExactLeaf
	}
	exp := ToList(expected)
	act := ToList(actual)

	switch {
	case len(exp) == 0 && len(act) == 0:
		return ListMatch{}
	case len(exp) == 0:
		return ListMatch{FalsePositives: len(act)}
	case len(act) == 0:
		return ListMatch{Expected: len(exp)}
	case len(exp) == 1 && len(act) == 1:
		if leaf(exp[0], act[0]) {
			return ListMatch{TruePositives: 1, Expected: 1}
		}
		return ListMatch{FalsePositives: 1, Expected: 1}
	}

	scores := make([][]float64, len(exp))
	cost := make([][]float64, len(exp))
	for i, e := range exp {
		scores[i] = make([]float64, len(act))
		cost[i] = make([]float64, len(act))
		for j, a := range act {
			if leaf(e, a) {
				scores[i][j] = 1.0
			}
			cost[i][j] = 1.0 - scores[i][j]
		}
	}

	tp := 0
	for i, j := range Assign(cost) {
		if j >= 0 && scores[i][j] > 0 {
			tp++
		}
	}
	return ListMatch{
		TruePositives:  tp,
		FalsePositives: max(len(act)-tp, 0),
		Expected:       len(exp),
	}
}

// Assign solves the rectangular assignment problem for cost, minimizing the
// total cost. It returns, for each row, the assigned column or -1 when the
// row is left unassigned because there are more rows than columns.
func Assign(cost [][]float64) []int {
	rows := len(cost)
	if rows == 0 {
		return nil
	}
	cols := len(cost[0])
	if cols == 0 {
		out := make([]int, rows)
		for i := range out {
			out[i] = -1
		}
		return out
	}

	if rows > cols {
		transposed := make([][]float64, cols)
		for j := range transposed {
			transposed[j] = make([]float64, rows)
			for i := range rows {
				transposed[j][i] = cost[i][j]
			}
		}
		colToRow := assignRowsLE(transposed)
		out := make([]int, rows)
		for i := range out {
			out[i] = -1
		}
		for j, i := range colToRow {
			if i >= 0 {
				out[i] = j
			}
		}
		return out
	}
	return assignRowsLE(cost)
}

// assignRowsLE is the potentials form of the Hungarian algorithm for
// matrices with no more rows than columns. Indices are 1-based internally;
// row 0 and column 0 are sentinels.
func assignRowsLE(a [][]float64) []int {
	n, m := len(a), len(a[0])
	inf := math.Inf(1)

	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		for j := range minv {
			minv[j] = inf
		}
		used := make([]bool, m+1)

		for {
			used[j0] = true
			i0, delta, j1 := p[j0], inf, 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := a[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	for j := 1; j <= m; j++ {
		if p[j] != 0 {
			out[p[j]-1] = j - 1
		}
	}
	return out
}
