package query

import "strings"

// Pattern names the WHERE-clause access pattern the analyser detects for a
// given indexed column, per spec.md §4.6.
type Pattern int

const (
	PatternFullScan Pattern = iota
	PatternPointLookup
	PatternPrefixScan
	PatternRangeScan
)

// conjuncts flattens an AND-tree into its leaf comparisons.
func conjuncts(e *Expr) []*Expr {
	if e == nil {
		return nil
	}
	if e.Op == OpAnd {
		return append(conjuncts(e.Left), conjuncts(e.Right)...)
	}
	return []*Expr{e}
}

// Analyze inspects a WHERE expression for comparisons against indexedColumn
// and reports the most selective pattern it can exploit, plus the bounds
// needed to drive that access path. A column appearing more than once (e.g.
// "x >= 1 AND x < 10") yields PatternRangeScan with both bounds collected;
// a single "=" yields PatternPointLookup; a LIKE 'prefix%' yields
// PatternPrefixScan; anything else (or no match on indexedColumn at all)
// falls back to PatternFullScan, matching spec.md §4.6's four named
// patterns exactly.
type Analysis struct {
	Pattern    Pattern
	PointKey   string
	PrefixKey  string
	RangeStart string
	RangeEnd   string
	StartIncl  bool
	EndIncl    bool
}

func Analyze(where *Expr, indexedColumn string) Analysis {
	leaves := conjuncts(where)
	a := Analysis{Pattern: PatternFullScan}
	haveRange := false

	for _, leaf := range leaves {
		if leaf.Column != indexedColumn {
			continue
		}
		switch leaf.Op {
		case OpEq:
			return Analysis{Pattern: PatternPointLookup, PointKey: leaf.Value}
		case OpLike:
			if strings.HasSuffix(leaf.Value, "%") {
				a.Pattern = PatternPrefixScan
				a.PrefixKey = strings.TrimSuffix(leaf.Value, "%")
			}
		case OpGt:
			a.RangeStart, a.StartIncl = leaf.Value, false
			haveRange = true
		case OpGte:
			a.RangeStart, a.StartIncl = leaf.Value, true
			haveRange = true
		case OpLt:
			a.RangeEnd, a.EndIncl = leaf.Value, false
			haveRange = true
		case OpLte:
			a.RangeEnd, a.EndIncl = leaf.Value, true
			haveRange = true
		}
	}

	if a.Pattern == PatternPrefixScan {
		return a
	}
	if haveRange {
		a.Pattern = PatternRangeScan
		return a
	}
	return Analysis{Pattern: PatternFullScan}
}

// Matches reports whether row values satisfy every leaf comparison in e
// (used by the executor to apply residual predicates after an index path
// has narrowed the candidate set, and to evaluate WHERE wholesale on a
// full scan).
func Matches(e *Expr, get func(column string) (string, bool)) bool {
	if e == nil {
		return true
	}
	if e.Op == OpAnd {
		return Matches(e.Left, get) && Matches(e.Right, get)
	}
	v, ok := get(e.Column)
	if !ok {
		return false
	}
	switch e.Op {
	case OpEq:
		return v == e.Value
	case OpNeq:
		return v != e.Value
	case OpLt:
		return compareValues(v, e.Value) < 0
	case OpLte:
		return compareValues(v, e.Value) <= 0
	case OpGt:
		return compareValues(v, e.Value) > 0
	case OpGte:
		return compareValues(v, e.Value) >= 0
	case OpLike:
		return matchLike(v, e.Value)
	default:
		return false
	}
}

func matchLike(value, pattern string) bool {
	if strings.HasSuffix(pattern, "%") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "%"))
	}
	return value == pattern
}
