package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedbase/reedbase/pkg/index"
	"github.com/reedbase/reedbase/pkg/merge"
	"github.com/reedbase/reedbase/pkg/table"
)

func newExecTestTable(t *testing.T) (*table.Table, *index.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	tbl := table.Open(filepath.Join(dir, "tables", "accounts"), "accounts")
	img := &table.Image{
		Header: []string{"id", "owner", "balance"},
		Rows: []table.Row{
			{Key: "1", Values: []string{"1", "alice", "100"}},
			{Key: "2", Values: []string{"2", "bob", "50"}},
			{Key: "3", Values: []string{"3", "alice", "25"}},
		},
	}
	_, err := tbl.Init(img.Bytes(), 1, 0)
	require.NoError(t, err)
	idxMgr, err := index.NewManager(dir, 100000)
	require.NoError(t, err)
	return tbl, idxMgr, dir
}

func TestExecutorSelectFullScan(t *testing.T) {
	tbl, idxMgr, _ := newExecTestTable(t)
	ex := NewExecutor(idxMgr, 10.0)

	p := NewParser()
	stmt, err := p.Parse("SELECT id, owner FROM accounts WHERE owner = 'alice'")
	require.NoError(t, err)

	res, err := ex.Execute(stmt, tbl, 0, 0, merge.PolicyNone, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	for _, row := range res.Rows {
		assert.Equal(t, "alice", row[1])
	}
}

func TestExecutorSelectUsesPointLookupIndex(t *testing.T) {
	tbl, idxMgr, _ := newExecTestTable(t)
	_, err := idxMgr.Create(tbl, "owner", 1, index.BackendHash)
	require.NoError(t, err)
	// With three rows and the default multiplier of 10 the planner prefers a
	// scan (10*(1+1) is not below 3); 0.1 makes it take the index path.
	ex := NewExecutor(idxMgr, 0.1)

	p := NewParser()
	stmt, err := p.Parse("SELECT id FROM accounts WHERE owner = 'bob'")
	require.NoError(t, err)

	res, err := ex.Execute(stmt, tbl, 0, 0, merge.PolicyNone, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2", res.Rows[0][0])
}

func TestExecutorAggregateSum(t *testing.T) {
	tbl, idxMgr, _ := newExecTestTable(t)
	ex := NewExecutor(idxMgr, 10.0)

	p := NewParser()
	stmt, err := p.Parse("SELECT SUM(balance) AS total FROM accounts")
	require.NoError(t, err)

	res, err := ex.Execute(stmt, tbl, 0, 0, merge.PolicyNone, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "175", res.Rows[0][0])
}

func TestExecutorOrderByAndLimit(t *testing.T) {
	tbl, idxMgr, _ := newExecTestTable(t)
	ex := NewExecutor(idxMgr, 10.0)

	p := NewParser()
	stmt, err := p.Parse("SELECT id FROM accounts ORDER BY balance DESC LIMIT 1")
	require.NoError(t, err)

	res, err := ex.Execute(stmt, tbl, 0, 0, merge.PolicyNone, "")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "1", res.Rows[0][0]) // alice/100 has the highest balance
}

func TestExecutorInsertAndDelete(t *testing.T) {
	tbl, idxMgr, _ := newExecTestTable(t)
	ex := NewExecutor(idxMgr, 10.0)
	p := NewParser()

	insertStmt, err := p.Parse("INSERT INTO accounts (id, owner, balance) VALUES ('4', 'carol', '10')")
	require.NoError(t, err)
	res, err := ex.Execute(insertStmt, tbl, 1, 0, merge.PolicyNone, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsAffected)

	deleteStmt, err := p.Parse("DELETE FROM accounts WHERE owner = 'carol'")
	require.NoError(t, err)
	res, err = ex.Execute(deleteStmt, tbl, 1, 0, merge.PolicyNone, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsAffected)

	img, err := tbl.ReadCurrentRows()
	require.NoError(t, err)
	assert.Len(t, img.Rows, 3)
}

func TestExecutorUpdate(t *testing.T) {
	tbl, idxMgr, _ := newExecTestTable(t)
	ex := NewExecutor(idxMgr, 10.0)
	p := NewParser()

	updateStmt, err := p.Parse("UPDATE accounts SET balance = '999' WHERE id = '2'")
	require.NoError(t, err)
	res, err := ex.Execute(updateStmt, tbl, 1, 0, merge.PolicyNone, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsAffected)

	img, err := tbl.ReadCurrentRows()
	require.NoError(t, err)
	assert.Equal(t, "999", img.ByKey()["2"].Values[2])
}
