// Package merge implements ReedBase's row-level three-way merge: the
// mechanism that lets two writers commit concurrently against the same
// table without one clobbering the other. It is modeled on the teacher's
// MVCC transaction/version pattern (see _teacher_ref/mvcc), adapted from
// snapshot-visibility checking to concrete row diffing against a common
// base image.
package merge

import "github.com/reedbase/reedbase/pkg/table"

// Policy selects how a detected conflict is resolved.
type Policy int

const (
	// PolicyNone reports conflicts and refuses to merge automatically.
	PolicyNone Policy = iota
	// PolicyLastWriteWins resolves a conflict by keeping the side with the
	// higher commit timestamp (the "other" writer, since it committed
	// after self's base was taken).
	PolicyLastWriteWins
	// PolicyPreserveBoth keeps both versions of a conflicting row by
	// appending a suffix to self's key, avoiding silent data loss.
	PolicyPreserveBoth
)

// Conflict describes one row that both self and other changed, relative to
// base, in incompatible ways.
type Conflict struct {
	Key   string
	Base  []string // nil if the row did not exist in base
	Self  []string // nil if self deleted the row
	Other []string // nil if other deleted the row
}

// Result is the outcome of a three-way merge attempt.
type Result struct {
	Merged    *table.Image
	Conflicts []Conflict
}

// ThreeWayMerge computes the merge of self and other, both derived from
// base, applying policy to any row both sides touched differently. Rows
// changed by only one side are taken from that side; rows untouched by
// either are taken from base. Per spec.md §4.4 step 5, a conflict exists
// only when self and other both modified (or one modified and the other
// deleted) the same key, AND their resulting values differ.
func ThreeWayMerge(base, self, other *table.Image, policy Policy) (Result, error) {
	baseRows := base.ByKey()
	selfRows := self.ByKey()
	otherRows := other.ByKey()

	keys := map[string]struct{}{}
	for k := range baseRows {
		keys[k] = struct{}{}
	}
	for k := range selfRows {
		keys[k] = struct{}{}
	}
	for k := range otherRows {
		keys[k] = struct{}{}
	}

	var result Result
	merged := make([]table.Row, 0, len(keys))

	for key := range keys {
		b, hasBase := baseRows[key]
		s, hasSelf := selfRows[key]
		o, hasOther := otherRows[key]

		selfChanged := hasSelf != hasBase || (hasSelf && hasBase && !rowValuesEqual(s, b))
		otherChanged := hasOther != hasBase || (hasOther && hasBase && !rowValuesEqual(o, b))

		switch {
		case !selfChanged && !otherChanged:
			if hasBase {
				merged = append(merged, b)
			}
		case selfChanged && !otherChanged:
			if hasSelf {
				merged = append(merged, s)
			}
		case !selfChanged && otherChanged:
			if hasOther {
				merged = append(merged, o)
			}
		default:
			// Both sides touched this key. If they ended up agreeing
			// (same delete, or same resulting values), there's no real
			// conflict to report.
			if hasSelf == hasOther && (!hasSelf || rowValuesEqual(s, o)) {
				if hasSelf {
					merged = append(merged, s)
				}
				continue
			}
			resolved, conflict, keep := resolve(key, b, s, o, hasBase, hasSelf, hasOther, policy)
			if keep {
				merged = append(merged, resolved...)
			}
			if conflict != nil {
				result.Conflicts = append(result.Conflicts, *conflict)
			}
		}
	}

	if policy == PolicyNone && len(result.Conflicts) > 0 {
		return result, nil
	}

	img := &table.Image{Header: mergeHeader(base, self, other), Rows: merged}
	result.Merged = img
	return result, nil
}

func resolve(key string, b, s, o table.Row, hasBase, hasSelf, hasOther bool, policy Policy) (rows []table.Row, conflict *Conflict, keep bool) {
	c := &Conflict{Key: key}
	if hasBase {
		c.Base = b.Values
	}
	if hasSelf {
		c.Self = s.Values
	}
	if hasOther {
		c.Other = o.Values
	}

	switch policy {
	case PolicyLastWriteWins:
		if hasOther {
			return []table.Row{o}, c, true
		}
		return nil, c, false // other deleted it; deletion wins
	case PolicyPreserveBoth:
		var out []table.Row
		if hasOther {
			out = append(out, o)
		}
		if hasSelf {
			out = append(out, table.Row{Key: key + "__conflict", Values: s.Values})
		}
		return out, c, len(out) > 0
	default: // PolicyNone
		if hasBase {
			return []table.Row{b}, c, true
		}
		return nil, c, false
	}
}

func rowValuesEqual(a, b table.Row) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			return false
		}
	}
	return true
}

func mergeHeader(images ...*table.Image) []string {
	for _, img := range images {
		if len(img.Header) > 0 {
			return img.Header
		}
	}
	return nil
}
