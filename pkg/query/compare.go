package query

import "strconv"

// compareValues orders two row values numerically when both parse as
// float64, falling back to byte-lexicographic order otherwise — the same
// dual rule spec.md §4.5 uses for B+-tree key ordering, so range queries
// and ORDER BY agree with how the index itself orders keys.
func compareValues(a, b string) int {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
