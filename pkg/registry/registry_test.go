package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSeedsSystemUserAtCodeZero(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)

	code, err := r.Users.CodeOf("system")
	require.NoError(t, err)
	assert.Equal(t, SystemUserCode, code)
}

func TestCodeOfActionResolvesFixedVocabulary(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)

	for _, name := range defaultActions {
		_, err := r.CodeOfAction(name)
		assert.NoError(t, err, "action %q must be seeded", name)
	}
}

func TestGetOrCreateUserIsIdempotentAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)

	c1, err := r.GetOrCreateUser("alice")
	require.NoError(t, err)
	c2, err := r.GetOrCreateUser("alice")
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestRegisterAndResolveDatabase(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, r.RegisterDatabase(DatabaseEntry{
		Name: "accounts-db",
		Mode: ModeLocal,
		Path: "/var/reedbase/accounts-db",
	}))

	path, mode, err := r.ResolveDatabase("accounts-db")
	require.NoError(t, err)
	assert.Equal(t, "/var/reedbase/accounts-db", path)
	assert.Equal(t, ModeLocal, mode)
}

func TestResolveUnknownDatabaseFails(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)
	_, _, err = r.ResolveDatabase("nonexistent")
	assert.Error(t, err)
}

func TestCatalogueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.RegisterDatabase(DatabaseEntry{Name: "db1", Mode: ModeLocal, Path: "/x"}))

	reopened, err := Open(dir)
	require.NoError(t, err)
	path, _, err := reopened.ResolveDatabase("db1")
	require.NoError(t, err)
	assert.Equal(t, "/x", path)
}

func TestListDatabasesReturnsAllEntries(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.RegisterDatabase(DatabaseEntry{Name: "db1", Mode: ModeLocal, Path: "/x"}))
	require.NoError(t, r.RegisterDatabase(DatabaseEntry{Name: "db2", Mode: ModeGlobal, Path: "/y"}))

	entries := r.ListDatabases()
	assert.Len(t, entries, 2)
}
