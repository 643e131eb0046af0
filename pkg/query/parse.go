package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	rerrors "github.com/reedbase/reedbase/pkg/errors"
)

// Parser wraps github.com/pingcap/tidb/pkg/parser the way the teacher's
// pkg/parser.SQLAdapter does (parser.New() once, reused across calls, with
// the blank test_driver import pulled in for literal-expression support),
// but converts into the narrow Statement tree above instead of the
// teacher's full multi-dialect statement set: ReedBase only recognizes
// single-table SELECT/INSERT/UPDATE/DELETE (spec.md §4.6, "no full SQL").
type Parser struct {
	p *parser.Parser
}

func NewParser() *Parser {
	return &Parser{p: parser.New()}
}

// Parse parses exactly one SQL statement.
func (q *Parser) Parse(sql string) (*Statement, error) {
	stmts, warns, err := q.p.Parse(sql, "", "")
	_ = warns
	if err != nil {
		return nil, rerrors.Parse(sql, 0, err.Error())
	}
	if len(stmts) != 1 {
		return nil, rerrors.Validationf("expected exactly one statement, got %d", len(stmts))
	}
	return convert(stmts[0])
}

func convert(node ast.StmtNode) (*Statement, error) {
	switch n := node.(type) {
	case *ast.SelectStmt:
		s, err := convertSelect(n)
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtSelect, Select: s}, nil
	case *ast.InsertStmt:
		s, err := convertInsert(n)
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtInsert, Insert: s}, nil
	case *ast.UpdateStmt:
		s, err := convertUpdate(n)
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtUpdate, Update: s}, nil
	case *ast.DeleteStmt:
		s, err := convertDelete(n)
		if err != nil {
			return nil, err
		}
		return &Statement{Kind: StmtDelete, Delete: s}, nil
	default:
		return nil, rerrors.Unsupported(fmt.Sprintf("statement type %T", node))
	}
}

func tableNameOf(refs *ast.TableRefs) (string, error) {
	if refs == nil || refs.TableRefs == nil {
		return "", rerrors.Validation("missing FROM clause")
	}
	src, ok := refs.TableRefs.Left.(*ast.TableSource)
	if !ok {
		return "", rerrors.Unsupported("joins")
	}
	tn, ok := src.Source.(*ast.TableName)
	if !ok {
		return "", rerrors.Validation("expected a table name")
	}
	return tn.Name.L, nil
}

func convertSelect(stmt *ast.SelectStmt) (*SelectStmt, error) {
	table, err := tableNameOf(stmt.From)
	if err != nil {
		return nil, err
	}
	out := &SelectStmt{Table: table}

	for _, field := range stmt.Fields.Fields {
		if field.WildCard != nil {
			out.Wildcard = true
			continue
		}
		if agg, ok := field.Expr.(*ast.AggregateFuncExpr); ok {
			a, err := convertAggregate(agg, field)
			if err != nil {
				return nil, err
			}
			out.Aggregates = append(out.Aggregates, a)
			continue
		}
		col, ok := field.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return nil, rerrors.Unsupported("non-column, non-aggregate select expression")
		}
		out.Columns = append(out.Columns, col.Name.Name.L)
	}

	if stmt.Where != nil {
		e, err := convertExpr(stmt.Where)
		if err != nil {
			return nil, err
		}
		out.Where = e
	}

	if stmt.OrderBy != nil {
		for _, item := range stmt.OrderBy.Items {
			col, ok := item.Expr.(*ast.ColumnNameExpr)
			if !ok {
				return nil, rerrors.Unsupported("non-column ORDER BY expression")
			}
			out.OrderBy = append(out.OrderBy, OrderByItem{Column: col.Name.Name.L, Desc: item.Desc})
		}
	}

	if stmt.Limit != nil {
		if stmt.Limit.Count != nil {
			n, err := extractInt(stmt.Limit.Count)
			if err != nil {
				return nil, err
			}
			out.Limit = &n
		}
		if stmt.Limit.Offset != nil {
			n, err := extractInt(stmt.Limit.Offset)
			if err != nil {
				return nil, err
			}
			out.Offset = &n
		}
	}

	return out, nil
}

func convertAggregate(agg *ast.AggregateFuncExpr, field *ast.SelectField) (Aggregate, error) {
	fn := strings.ToUpper(agg.F)
	var af AggFunc
	switch fn {
	case "COUNT":
		af = AggCount
	case "SUM":
		af = AggSum
	case "AVG":
		af = AggAvg
	case "MIN":
		af = AggMin
	case "MAX":
		af = AggMax
	default:
		return Aggregate{}, rerrors.Unsupported("aggregate function " + fn)
	}
	a := Aggregate{Func: af}
	if len(agg.Args) == 1 {
		if col, ok := agg.Args[0].(*ast.ColumnNameExpr); ok {
			a.Column = col.Name.Name.L
		}
	}
	if field.AsName.L != "" {
		a.Alias = field.AsName.L
	} else {
		a.Alias = strings.ToLower(fn)
	}
	return a, nil
}

func convertInsert(stmt *ast.InsertStmt) (*InsertStmt, error) {
	src, ok := stmt.Table.TableRefs.Left.(*ast.TableSource)
	if !ok {
		return nil, rerrors.Unsupported("joins in INSERT target")
	}
	tn, ok := src.Source.(*ast.TableName)
	if !ok {
		return nil, rerrors.Validation("expected a table name")
	}
	out := &InsertStmt{Table: tn.Name.L}
	for _, col := range stmt.Columns {
		out.Columns = append(out.Columns, col.Name.L)
	}
	for _, tuple := range stmt.Lists {
		var row []string
		for _, expr := range tuple {
			v, err := extractLiteralString(expr)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		out.Values = append(out.Values, row)
	}
	return out, nil
}

func convertUpdate(stmt *ast.UpdateStmt) (*UpdateStmt, error) {
	table, err := tableNameOf(stmt.TableRefs)
	if err != nil {
		return nil, err
	}
	out := &UpdateStmt{Table: table, Set: map[string]string{}}
	for _, assign := range stmt.List {
		v, err := extractLiteralString(assign.Expr)
		if err != nil {
			return nil, err
		}
		out.Set[assign.Column.Name.L] = v
	}
	if stmt.Where != nil {
		e, err := convertExpr(stmt.Where)
		if err != nil {
			return nil, err
		}
		out.Where = e
	}
	return out, nil
}

func convertDelete(stmt *ast.DeleteStmt) (*DeleteStmt, error) {
	table, err := tableNameOf(stmt.TableRefs)
	if err != nil {
		return nil, err
	}
	out := &DeleteStmt{Table: table}
	if stmt.Where != nil {
		e, err := convertExpr(stmt.Where)
		if err != nil {
			return nil, err
		}
		out.Where = e
	}
	return out, nil
}

// convertExpr narrows WHERE expressions to conjunctions of column
// comparisons (=, !=, <, <=, >, >=, LIKE), matching the pattern-detection
// grammar spec.md §4.6 actually needs; anything richer (OR, subqueries,
// function calls in predicates) is out of scope per the Non-goal of "no
// full SQL".
func convertExpr(node ast.ExprNode) (*Expr, error) {
	switch n := node.(type) {
	case *ast.ParenthesesExpr:
		return convertExpr(n.Expr)
	case *ast.BinaryOperationExpr:
		if n.Op == opcode.LogicAnd {
			left, err := convertExpr(n.L)
			if err != nil {
				return nil, err
			}
			right, err := convertExpr(n.R)
			if err != nil {
				return nil, err
			}
			return &Expr{Op: OpAnd, Left: left, Right: right}, nil
		}
		col, ok := n.L.(*ast.ColumnNameExpr)
		if !ok {
			return nil, rerrors.Unsupported("WHERE clause must compare a column against a literal")
		}
		val, err := extractLiteralString(n.R)
		if err != nil {
			return nil, err
		}
		op, err := convertCompareOp(n.Op)
		if err != nil {
			return nil, err
		}
		return &Expr{Op: op, Column: col.Name.Name.L, Value: val}, nil
	case *ast.PatternLikeOrIlikeExpr:
		col, ok := n.Expr.(*ast.ColumnNameExpr)
		if !ok {
			return nil, rerrors.Unsupported("LIKE must compare a column")
		}
		val, err := extractLiteralString(n.Pattern)
		if err != nil {
			return nil, err
		}
		if n.Not {
			return nil, rerrors.Unsupported("NOT LIKE")
		}
		return &Expr{Op: OpLike, Column: col.Name.Name.L, Value: val}, nil
	default:
		return nil, rerrors.Unsupported(fmt.Sprintf("WHERE expression %T", node))
	}
}

func convertCompareOp(op opcode.Op) (Op, error) {
	switch op {
	case opcode.EQ:
		return OpEq, nil
	case opcode.NE:
		return OpNeq, nil
	case opcode.LT:
		return OpLt, nil
	case opcode.LE:
		return OpLte, nil
	case opcode.GT:
		return OpGt, nil
	case opcode.GE:
		return OpGte, nil
	default:
		return "", rerrors.Unsupported(fmt.Sprintf("operator %v", op))
	}
}

// extractLiteralString normalizes a TiDB value-expression node into the
// plain string form every row value takes in the pipe-CSV format (spec.md
// §6 stores everything as text).
func extractLiteralString(node ast.ExprNode) (string, error) {
	ve, ok := node.(ast.ValueExpr)
	if !ok {
		return "", rerrors.Unsupported(fmt.Sprintf("non-literal expression %T", node))
	}
	d := ve.GetValue()
	if d == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", d), nil
}

func extractInt(node ast.ExprNode) (int64, error) {
	s, err := extractLiteralString(node)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.ParseInt(s, 10, 64)
	if convErr != nil {
		return 0, rerrors.Validationf("expected an integer, got %q", s)
	}
	return n, nil
}
