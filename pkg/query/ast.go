// Package query implements C6: the SQL-subset parser adapter, analyser,
// cost-based planner, and executor from spec.md §4.6. The parser adapter
// is grounded on the teacher's pkg/parser.SQLAdapter (which wraps
// github.com/pingcap/tidb/pkg/parser into a simplified statement tree) but
// narrowed to the spec's grammar: single-table SELECT/INSERT/UPDATE/DELETE
// with a conjunction of column comparisons in WHERE, ORDER BY, LIMIT/OFFSET,
// and the five aggregate functions.
package query

// Op is a comparison or membership operator usable in a WHERE clause.
type Op string

const (
	OpEq     Op = "="
	OpNeq    Op = "!="
	OpLt     Op = "<"
	OpLte    Op = "<="
	OpGt     Op = ">"
	OpGte    Op = ">="
	OpLike   Op = "LIKE"
	OpAnd    Op = "AND"
)

// Expr is a WHERE-clause expression: either an AND of two sub-expressions,
// or a leaf comparing Column against Value with Op.
type Expr struct {
	Op     Op
	Column string
	Value  string
	Left   *Expr
	Right  *Expr
}

// IsLeaf reports whether this node compares a column directly, as opposed
// to combining two sub-expressions.
func (e *Expr) IsLeaf() bool { return e.Op != OpAnd }

// AggFunc is one of the five aggregate functions spec.md §4.6 names.
type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

// Aggregate is one SELECT-list aggregate call, e.g. SUM(amount) AS total.
type Aggregate struct {
	Func   AggFunc
	Column string // empty for COUNT(*)
	Alias  string
}

// OrderByItem is one ORDER BY clause entry.
type OrderByItem struct {
	Column string
	Desc   bool
}

// SelectStmt is a parsed SELECT narrowed to spec.md's grammar.
type SelectStmt struct {
	Table      string
	Wildcard   bool
	Columns    []string
	Aggregates []Aggregate
	Where      *Expr
	OrderBy    []OrderByItem
	Limit      *int64
	Offset     *int64
}

// InsertStmt is a parsed INSERT.
type InsertStmt struct {
	Table   string
	Columns []string // empty means "all columns, in table order"
	Values  [][]string
}

// UpdateStmt is a parsed UPDATE.
type UpdateStmt struct {
	Table string
	Set   map[string]string
	Where *Expr
}

// DeleteStmt is a parsed DELETE.
type DeleteStmt struct {
	Table string
	Where *Expr
}

// StmtKind discriminates which field of Statement is populated.
type StmtKind int

const (
	StmtSelect StmtKind = iota
	StmtInsert
	StmtUpdate
	StmtDelete
)

// Statement is the result of parsing one SQL statement.
type Statement struct {
	Kind   StmtKind
	Select *SelectStmt
	Insert *InsertStmt
	Update *UpdateStmt
	Delete *DeleteStmt
}
