package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDatabaseAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callboard.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)
	require.True(t, db.Migrator().HasTable("local_state"))

	require.NoError(t, Migrate(db))

	sqldatabase, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqldatabase.Close())

	reopened, err := NewDatabase(path)
	require.NoError(t, err)
	require.True(t, reopened.Migrator().HasTable("local_state"))
}

func TestMigratorRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callboard.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)

	sqldatabase, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqldatabase.Close())

	migrator, err := NewMigrator(path)
	require.NoError(t, err)

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	require.Equal(t, uint(1), version)
	require.False(t, dirty)

	require.NoError(t, migrator.Steps(-1))

	srcErr, dbErr := migrator.Close()
	require.NoError(t, srcErr)
	require.NoError(t, dbErr)
}
