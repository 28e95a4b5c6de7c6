package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationDSN(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@localhost:5432/chat?sslmode=disable", migrationDSN("postgres://u:p@localhost:5432/chat?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/chat", migrationDSN("postgresql://u@db/chat"))
	assert.Equal(t, "pgx5://already", migrationDSN("pgx5://already"))
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.Contains(t, names, "migrations/0001_init.up.sql")
	assert.Contains(t, names, "migrations/0001_init.down.sql")
}
