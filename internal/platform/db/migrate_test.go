package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFiles, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestInitialMigrationCreatesTables(t *testing.T) {
	raw, err := fs.ReadFile(migrationFiles, "migrations/0001_init.up.sql")
	require.NoError(t, err)

	assert.Contains(t, string(raw), "CREATE TABLE IF NOT EXISTS messages")
	assert.Contains(t, string(raw), "CREATE TABLE IF NOT EXISTS transactions")
}
