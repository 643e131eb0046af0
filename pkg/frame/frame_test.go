package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(t *int64) func() int64 {
	return func() int64 {
		*t++
		return *t
	}
}

func TestBeginPersistsActiveFrameImmediately(t *testing.T) {
	dir := t.TempDir()
	var clk int64
	mgr, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)

	f, err := mgr.Begin("frame-a")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, f.Status)

	// Reopen against the same directory to simulate a crash: a fresh
	// Manager must see the frame as persisted and active.
	mgr2, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)
	frames, err := mgr2.List()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, StatusActive, frames[0].Status)
	assert.Equal(t, "frame-a", frames[0].Name)
}

func TestOnlyOneActiveFrameAtATime(t *testing.T) {
	dir := t.TempDir()
	var clk int64
	mgr, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)

	_, err = mgr.Begin("frame-a")
	require.NoError(t, err)

	_, err = mgr.Begin("frame-b")
	assert.Error(t, err)
}

func TestLogOperationPersistsBaseTimestamps(t *testing.T) {
	dir := t.TempDir()
	var clk int64
	mgr, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)

	_, err = mgr.Begin("frame-a")
	require.NoError(t, err)
	require.NoError(t, mgr.LogOperation("accounts", 5))
	require.NoError(t, mgr.LogOperation("ledger", 7))
	// Logging the same table twice must not duplicate it.
	require.NoError(t, mgr.LogOperation("accounts", 5))

	mgr2, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)
	frames, err := mgr2.List()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.ElementsMatch(t, []string{"accounts", "ledger"}, frames[0].TablesTouched)
	assert.Equal(t, int64(5), frames[0].BaseTimestamps["accounts"])
	assert.Equal(t, int64(7), frames[0].BaseTimestamps["ledger"])
}

func TestCommitMarksFrameCommittedWithoutDuplicating(t *testing.T) {
	dir := t.TempDir()
	var clk int64
	mgr, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)

	_, err = mgr.Begin("frame-a")
	require.NoError(t, err)
	require.NoError(t, mgr.LogOperation("accounts", 1))

	committed, err := mgr.Commit(map[string]string{"accounts": "deadbeef"})
	require.NoError(t, err)
	assert.Equal(t, StatusCommitted, committed.Status)
	assert.NotZero(t, committed.Timestamp)

	frames, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, frames, 1, "commit must update the existing catalogue record, not append a second one")
	assert.Equal(t, StatusCommitted, frames[0].Status)

	_, active := mgr.Active()
	assert.False(t, active)
}

func TestAtReturnsLatestFrameAtOrBeforeTimestamp(t *testing.T) {
	dir := t.TempDir()
	var clk int64
	mgr, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)

	_, err = mgr.Begin("frame-a")
	require.NoError(t, err)
	first, err := mgr.Commit(nil)
	require.NoError(t, err)

	_, err = mgr.Begin("frame-b")
	require.NoError(t, err)
	second, err := mgr.Commit(nil)
	require.NoError(t, err)
	require.Greater(t, second.Timestamp, first.Timestamp)

	got, ok, err := mgr.At(first.Timestamp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	got2, ok, err := mgr.At(second.Timestamp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, got2.ID)
}

func TestCommitWritesSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	var clk int64
	mgr, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)

	_, err = mgr.Begin("migrate")
	require.NoError(t, err)
	require.NoError(t, mgr.LogOperation("users", 10))
	require.NoError(t, mgr.LogOperation("indices", 20))

	committed, err := mgr.Commit(map[string]string{"users": "hash_u", "indices": "hash_i"})
	require.NoError(t, err)

	snap, err := mgr.Snapshot(committed.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, "hash_u", snap["users"])
	assert.Equal(t, "hash_i", snap["indices"])
}

func TestMarkCrashedTransitionsActiveFrame(t *testing.T) {
	dir := t.TempDir()
	var clk int64
	mgr, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)

	f, err := mgr.Begin("frame-a")
	require.NoError(t, err)
	require.NoError(t, mgr.MarkCrashed(f.ID))

	frames, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, StatusCrashed, frames[0].Status)
}

func TestMarkRolledBack(t *testing.T) {
	dir := t.TempDir()
	var clk int64
	mgr, err := Open(dir, fakeClock(&clk))
	require.NoError(t, err)

	f, err := mgr.Begin("frame-a")
	require.NoError(t, err)
	require.NoError(t, mgr.MarkRolledBack(f.ID))

	frames, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, StatusRolledBack, frames[0].Status)
}
