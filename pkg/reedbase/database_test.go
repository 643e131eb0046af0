package reedbase

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedbase/reedbase/pkg/index"
	"github.com/reedbase/reedbase/pkg/merge"
	"github.com/reedbase/reedbase/pkg/table"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Create(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, db.CreateTable("accounts", []string{"id", "owner", "balance"}))
	return db
}

func TestCreateThenOpenReopensExistingTables(t *testing.T) {
	dir := t.TempDir()
	db, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, db.CreateTable("accounts", []string{"id", "owner", "balance"}))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Contains(t, reopened.ListTables(), "accounts")
}

func TestCreateTableTwiceFails(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateTable("accounts", []string{"id", "owner", "balance"})
	assert.Error(t, err)
}

func TestBeginWriteCommitWriteRoundTrip(t *testing.T) {
	db := newTestDB(t)
	sess, err := db.BeginWrite("accounts", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)
	sess.Put("1", []string{"1", "alice", "100"})

	outcome := db.CommitWrite("accounts", sess)
	require.Equal(t, merge.OutcomeSuccess, outcome.Kind)

	tbl, err := db.Table("accounts")
	require.NoError(t, err)
	img, err := tbl.ReadCurrentRows()
	require.NoError(t, err)
	assert.Equal(t, "alice", img.ByKey()["1"].Values[1])
}

func TestExecuteSelectAndInsert(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Execute("INSERT INTO accounts (id, owner, balance) VALUES ('1', 'alice', '100')", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)

	res, err := db.Execute("SELECT owner, balance FROM accounts WHERE id = '1'", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"alice", "100"}, res.Rows[0])
}

func TestCreateIndexAndExecuteUsesItForPointLookup(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Execute("INSERT INTO accounts (id, owner, balance) VALUES ('1', 'alice', '100')", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)
	_, err = db.Execute("INSERT INTO accounts (id, owner, balance) VALUES ('2', 'bob', '50')", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)

	require.NoError(t, db.CreateIndex("accounts", "owner", index.BackendHash))
	indices := db.ListIndices()
	require.Len(t, indices, 1)
	assert.Equal(t, "owner", indices[0].Column)

	// With two rows the default multiplier of 10 makes the planner scan;
	// lowering it lets the point lookup go through the hash index.
	db.exec.CostMultiplier = 0.1

	res, err := db.Execute("SELECT id FROM accounts WHERE owner = 'bob'", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2", res.Rows[0][0])
}

func TestDropAndRebuildIndex(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Execute("INSERT INTO accounts (id, owner, balance) VALUES ('1', 'alice', '100')", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)
	require.NoError(t, db.CreateIndex("accounts", "owner", index.BackendHash))

	require.NoError(t, db.RebuildIndex("accounts", "owner"))
	require.NoError(t, db.DropIndex("accounts", "owner"))
	assert.Empty(t, db.ListIndices())
}

func TestFrameCommitTracksTouchedTablesForRollback(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Execute("INSERT INTO accounts (id, owner, balance) VALUES ('1', 'alice', '100')", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)

	_, err = db.BeginFrame("nightly-batch")
	require.NoError(t, err)

	_, err = db.Execute("UPDATE accounts SET balance = '999' WHERE id = '1'", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)

	committed, err := db.CommitFrame()
	require.NoError(t, err)
	assert.Contains(t, committed.TablesTouched, "accounts")

	tbl, err := db.Table("accounts")
	require.NoError(t, err)
	img, err := tbl.ReadCurrentRows()
	require.NoError(t, err)
	assert.Equal(t, "999", img.ByKey()["1"].Values[2])

	require.NoError(t, db.RollbackFrame(committed.ID))
	img, err = tbl.ReadCurrentRows()
	require.NoError(t, err)
	assert.Equal(t, "100", img.ByKey()["1"].Values[2], "rollback must restore the pre-frame value")
}

func TestOnlyOneActiveFrameAtATimeThroughDatabase(t *testing.T) {
	db := newTestDB(t)
	_, err := db.BeginFrame("first")
	require.NoError(t, err)
	_, err = db.BeginFrame("second")
	assert.Error(t, err)
}

func TestFrameSnapshotRecordsPerTableContentHash(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Execute("INSERT INTO accounts (id, owner, balance) VALUES ('1', 'alice', '100')", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)

	_, err = db.BeginFrame("migrate")
	require.NoError(t, err)
	_, err = db.Execute("UPDATE accounts SET balance = '200' WHERE id = '1'", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)
	committed, err := db.CommitFrame()
	require.NoError(t, err)

	snap, err := db.FrameSnapshot(committed.Timestamp)
	require.NoError(t, err)

	tbl, err := db.Table("accounts")
	require.NoError(t, err)
	bytes, err := tbl.ReadCurrentBytes()
	require.NoError(t, err)
	assert.Equal(t, table.ContentHash(bytes), snap["accounts"])
}

func TestListFramesAndFrameStatus(t *testing.T) {
	db := newTestDB(t)
	_, err := db.BeginFrame("batch-1")
	require.NoError(t, err)
	f, err := db.CommitFrame()
	require.NoError(t, err)

	frames, err := db.ListFrames()
	require.NoError(t, err)
	assert.Len(t, frames, 1)

	found, ok, err := db.FrameStatus(f.Timestamp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, f.ID, found.ID)
}

func TestCollectMetricsReflectsWrites(t *testing.T) {
	db := newTestDB(t)
	before := db.CollectMetrics()

	_, err := db.Execute("INSERT INTO accounts (id, owner, balance) VALUES ('1', 'alice', '100')", "alice", merge.PolicyLastWriteWins)
	require.NoError(t, err)

	after := db.CollectMetrics()
	assert.Greater(t, after.WritesSucceeded, before.WritesSucceeded)
}

func TestExecuteAgainstUnknownTableFails(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Execute("SELECT * FROM ghosts", "alice", merge.PolicyLastWriteWins)
	assert.Error(t, err)
}

var _ = filepath.Join // silence unused import if helpers above are trimmed later
