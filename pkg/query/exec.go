package query

import (
	"sort"
	"strconv"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
	"github.com/reedbase/reedbase/pkg/index"
	"github.com/reedbase/reedbase/pkg/merge"
	"github.com/reedbase/reedbase/pkg/table"
)

// Result is what Execute returns for any statement kind: SELECT fills
// Columns/Rows, INSERT/UPDATE/DELETE fill RowsAffected.
type Result struct {
	Columns      []string
	Rows         [][]string
	RowsAffected int
	Conflicts    []merge.Conflict
}

// Executor runs parsed statements against one table at a time, resolving
// WHERE clauses through Plan/Analyze and, for mutations, through a
// merge.Session so concurrent writers still get spec.md §4.4's three-way
// merge rather than a blind overwrite.
type Executor struct {
	Indices        *index.Manager
	CostMultiplier float64
}

func NewExecutor(indices *index.Manager, costMultiplier float64) *Executor {
	return &Executor{Indices: indices, CostMultiplier: costMultiplier}
}

// Execute dispatches a parsed Statement against tbl. actionCode/userCode
// and policy are only consulted for INSERT/UPDATE/DELETE, which open a
// merge.Session to perform the write. frameID, if non-empty, tags the
// session so its commit's version-log entry records the frame it belongs
// to (spec.md §4.7); pass "" outside a frame.
func (ex *Executor) Execute(stmt *Statement, tbl *table.Table, actionCode, userCode int, policy merge.Policy, frameID string) (*Result, error) {
	switch stmt.Kind {
	case StmtSelect:
		return ex.execSelect(stmt.Select, tbl)
	case StmtInsert:
		return ex.execInsert(stmt.Insert, tbl, actionCode, userCode, policy, frameID)
	case StmtUpdate:
		return ex.execUpdate(stmt.Update, tbl, actionCode, userCode, policy, frameID)
	case StmtDelete:
		return ex.execDelete(stmt.Delete, tbl, actionCode, userCode, policy, frameID)
	default:
		return nil, rerrors.Unsupported("statement kind")
	}
}

// candidateRows returns the rows of img that satisfy where, choosing
// between an index-assisted lookup and a full scan via Plan.
func (ex *Executor) candidateRows(where *Expr, tbl *table.Table, img *table.Image) ([]table.Row, error) {
	indexedColumn := ""
	for _, leaf := range conjuncts(where) {
		if _, ok := ex.Indices.Get(tbl.Name, leaf.Column); ok {
			indexedColumn = leaf.Column
			break
		}
	}

	var isHash bool
	var idx index.Index
	if indexedColumn != "" {
		idx, _ = ex.Indices.Get(tbl.Name, indexedColumn)
		isHash = idx.Backend() == index.BackendHash
	}

	path := Plan(where, indexedColumn, indexedColumn != "", isHash, len(img.Rows), ex.CostMultiplier)

	if !path.UseIndex {
		var out []table.Row
		for _, row := range img.Rows {
			if Matches(where, rowGetter(img.Header, row)) {
				out = append(out, row)
			}
		}
		return out, nil
	}

	rowIDs, err := resolveRowIDs(idx, path.Analysis)
	if err != nil {
		return nil, err
	}
	var out []table.Row
	for _, rid := range rowIDs {
		if int(rid) < 0 || int(rid) >= len(img.Rows) {
			continue
		}
		row := img.Rows[rid]
		if Matches(where, rowGetter(img.Header, row)) {
			out = append(out, row)
		}
	}
	return out, nil
}

func resolveRowIDs(idx index.Index, a Analysis) ([]index.RowID, error) {
	switch a.Pattern {
	case PatternPointLookup:
		return idx.Get(a.PointKey)
	case PatternPrefixScan:
		it, err := idx.Range(a.PrefixKey, prefixUpperBound(a.PrefixKey), true, false)
		if err != nil {
			return nil, err
		}
		return drainIterator(it)
	case PatternRangeScan:
		it, err := idx.Range(a.RangeStart, a.RangeEnd, a.StartIncl, a.EndIncl)
		if err != nil {
			return nil, err
		}
		return drainIterator(it)
	default:
		return nil, nil
	}
}

func drainIterator(it index.Iterator) ([]index.RowID, error) {
	defer it.Close()
	var out []index.RowID
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, e.Row)
	}
	return out, nil
}

// prefixUpperBound produces an exclusive upper bound for a prefix range
// scan by incrementing the prefix's final byte, the standard trick for
// turning "starts with p" into a [p, upper) range on an ordered index.
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return prefix + "\xff"
}

func rowGetter(header []string, row table.Row) func(string) (string, bool) {
	return func(column string) (string, bool) {
		idx := headerIndexOf(header, column)
		if idx < 0 || idx >= len(row.Values) {
			return "", false
		}
		return row.Values[idx], true
	}
}

func headerIndexOf(header []string, column string) int {
	for i, h := range header {
		if h == column {
			return i
		}
	}
	return -1
}

func (ex *Executor) execSelect(stmt *SelectStmt, tbl *table.Table) (*Result, error) {
	img, err := tbl.ReadCurrentRows()
	if err != nil {
		return nil, err
	}
	rows, err := ex.candidateRows(stmt.Where, tbl, img)
	if err != nil {
		return nil, err
	}

	if len(stmt.OrderBy) > 0 {
		sortRows(rows, img.Header, stmt.OrderBy)
	}

	if len(stmt.Aggregates) > 0 {
		return aggregate(stmt.Aggregates, img.Header, rows), nil
	}

	columns := stmt.Columns
	if stmt.Wildcard {
		columns = img.Header
	}
	out := &Result{Columns: columns}
	for _, row := range applyLimitOffset(rows, stmt.Limit, stmt.Offset) {
		var projected []string
		for _, col := range columns {
			idx := headerIndexOf(img.Header, col)
			if idx < 0 || idx >= len(row.Values) {
				projected = append(projected, "")
				continue
			}
			projected = append(projected, row.Values[idx])
		}
		out.Rows = append(out.Rows, projected)
	}
	return out, nil
}

func sortRows(rows []table.Row, header []string, orderBy []OrderByItem) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, item := range orderBy {
			idx := headerIndexOf(header, item.Column)
			vi, vj := "", ""
			if idx >= 0 {
				if idx < len(rows[i].Values) {
					vi = rows[i].Values[idx]
				}
				if idx < len(rows[j].Values) {
					vj = rows[j].Values[idx]
				}
			}
			c := compareValues(vi, vj)
			if c == 0 {
				continue
			}
			if item.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func applyLimitOffset(rows []table.Row, limit, offset *int64) []table.Row {
	start := 0
	if offset != nil && *offset > 0 {
		start = int(*offset)
	}
	if start > len(rows) {
		return nil
	}
	rows = rows[start:]
	if limit != nil && *limit >= 0 && int(*limit) < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}

func aggregate(aggs []Aggregate, header []string, rows []table.Row) *Result {
	out := &Result{}
	var values []string
	for _, a := range aggs {
		out.Columns = append(out.Columns, a.Alias)
		values = append(values, computeAggregate(a, header, rows))
	}
	out.Rows = [][]string{values}
	return out
}

func computeAggregate(a Aggregate, header []string, rows []table.Row) string {
	if a.Func == AggCount && a.Column == "" {
		return strconv.Itoa(len(rows))
	}
	idx := headerIndexOf(header, a.Column)
	var nums []float64
	count := 0
	for _, row := range rows {
		if idx < 0 || idx >= len(row.Values) {
			continue
		}
		count++
		if f, err := strconv.ParseFloat(row.Values[idx], 64); err == nil {
			nums = append(nums, f)
		}
	}
	switch a.Func {
	case AggCount:
		return strconv.Itoa(count)
	case AggSum:
		return strconv.FormatFloat(sum(nums), 'f', -1, 64)
	case AggAvg:
		if len(nums) == 0 {
			return "0"
		}
		return strconv.FormatFloat(sum(nums)/float64(len(nums)), 'f', -1, 64)
	case AggMin:
		if len(nums) == 0 {
			return ""
		}
		m := nums[0]
		for _, n := range nums {
			if n < m {
				m = n
			}
		}
		return strconv.FormatFloat(m, 'f', -1, 64)
	case AggMax:
		if len(nums) == 0 {
			return ""
		}
		m := nums[0]
		for _, n := range nums {
			if n > m {
				m = n
			}
		}
		return strconv.FormatFloat(m, 'f', -1, 64)
	default:
		return ""
	}
}

func sum(nums []float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}
	return total
}

func (ex *Executor) execInsert(stmt *InsertStmt, tbl *table.Table, actionCode, userCode int, policy merge.Policy, frameID string) (*Result, error) {
	sess, err := merge.Begin(tbl, actionCode, userCode, policy)
	if err != nil {
		return nil, err
	}
	sess.WithFrame(frameID)
	header := sess.Working().Header
	columns := stmt.Columns
	if len(columns) == 0 {
		columns = header
	}
	for _, tuple := range stmt.Values {
		values := make([]string, len(header))
		for i, col := range columns {
			idx := headerIndexOf(header, col)
			if idx < 0 || i >= len(tuple) {
				continue
			}
			values[idx] = tuple[i]
		}
		if err := table.ValidateValues(values); err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		sess.Put(values[0], values)
	}
	return finishWrite(sess, len(stmt.Values))
}

func (ex *Executor) execUpdate(stmt *UpdateStmt, tbl *table.Table, actionCode, userCode int, policy merge.Policy, frameID string) (*Result, error) {
	sess, err := merge.Begin(tbl, actionCode, userCode, policy)
	if err != nil {
		return nil, err
	}
	sess.WithFrame(frameID)
	header := sess.Working().Header
	affected := 0
	for _, row := range sess.Working().Rows {
		if !Matches(stmt.Where, rowGetter(header, row)) {
			continue
		}
		values := append([]string(nil), row.Values...)
		for col, val := range stmt.Set {
			idx := headerIndexOf(header, col)
			if idx >= 0 {
				values[idx] = val
			}
		}
		if err := table.ValidateValues(values); err != nil {
			return nil, err
		}
		sess.Put(row.Key, values)
		affected++
	}
	return finishWrite(sess, affected)
}

func (ex *Executor) execDelete(stmt *DeleteStmt, tbl *table.Table, actionCode, userCode int, policy merge.Policy, frameID string) (*Result, error) {
	sess, err := merge.Begin(tbl, actionCode, userCode, policy)
	if err != nil {
		return nil, err
	}
	sess.WithFrame(frameID)
	header := sess.Working().Header
	var toDelete []string
	for _, row := range sess.Working().Rows {
		if Matches(stmt.Where, rowGetter(header, row)) {
			toDelete = append(toDelete, row.Key)
		}
	}
	for _, key := range toDelete {
		sess.Delete(key)
	}
	return finishWrite(sess, len(toDelete))
}

func finishWrite(sess *merge.Session, affected int) (*Result, error) {
	outcome := sess.Commit()
	switch outcome.Kind {
	case merge.OutcomeSuccess:
		return &Result{RowsAffected: affected, Conflicts: outcome.Conflicts}, nil
	case merge.OutcomeConflict:
		return &Result{Conflicts: outcome.Conflicts}, rerrors.Concurrency("write conflict, no resolution policy set")
	default:
		return nil, outcome.Err
	}
}
