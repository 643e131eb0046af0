package query

import (
	"math"
	"strings"
)

// AccessPath is the planner's decision for how to resolve one WHERE
// clause: either scan the table wholesale or consult a named index.
type AccessPath struct {
	UseIndex bool
	Column   string
	Analysis Analysis
}

// Plan picks between an index access path and a full scan using spec.md
// §4.6's cost model: use the index iff
// indexCostMultiplier * indexCost < scanCost, where indexCost approximates
// a B+-tree point/range lookup as log2(tableSize)+resultSize and a full
// scan as tableSize. A hash index's PointLookup is treated as O(1) instead
// of O(log n), since spec.md §4.5 specifies hash backends for equality-only
// workloads precisely because they beat a tree there.
func Plan(where *Expr, indexedColumn string, hasIndex bool, isHash bool, tableSize int, costMultiplier float64) AccessPath {
	if !hasIndex || indexedColumn == "" {
		return AccessPath{UseIndex: false, Analysis: Analyze(where, indexedColumn)}
	}
	a := Analyze(where, indexedColumn)
	if a.Pattern == PatternFullScan {
		return AccessPath{UseIndex: false, Analysis: a}
	}
	if isHash && a.Pattern != PatternPointLookup {
		// hash backends cannot serve ordered range/prefix queries at all
		// (index.Index.Range returns Unsupported for them) — fall back.
		return AccessPath{UseIndex: false, Analysis: Analyze(where, "")}
	}

	resultEstimate := estimateSelectivity(a, tableSize)
	scanCost := float64(tableSize)
	var indexCost float64
	if isHash {
		indexCost = 1 + float64(resultEstimate)
	} else {
		indexCost = math.Log2(float64(max(tableSize, 2))) + float64(resultEstimate)
	}

	if costMultiplier*indexCost < scanCost {
		return AccessPath{UseIndex: true, Column: indexedColumn, Analysis: a}
	}
	return AccessPath{UseIndex: false, Analysis: a}
}

// estimateSelectivity is a crude cardinality guess used only to weigh the
// index path against a full scan. PointLookup is exact (1 row). PrefixScan
// assumes roughly 10x fan-out per dot-separated key segment, so a deeper
// prefix narrows the estimate by another factor of 10 (spec.md §4.6:
// tableSize / 10^depth, depth counting the prefix's dot-separated
// segments). RangeScan has no segment structure to exploit, so it uses a
// flat 1% of the table.
func estimateSelectivity(a Analysis, tableSize int) int {
	switch a.Pattern {
	case PatternPointLookup:
		return 1
	case PatternPrefixScan:
		depth := 0
		if a.PrefixKey != "" {
			depth = strings.Count(a.PrefixKey, ".") + 1
		}
		estimate := float64(tableSize) / math.Pow(10, float64(depth))
		if estimate < 1 {
			estimate = 1
		}
		return int(estimate)
	case PatternRangeScan:
		estimate := tableSize / 100
		if estimate < 1 {
			estimate = 1
		}
		return estimate
	default:
		return tableSize
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
