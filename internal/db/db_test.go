package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_gallery.up.sql")
	assert.Contains(t, names, "000001_create_gallery.down.sql")
}

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(errors.New("boom")))
}

func TestConnectAndMigrate(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := Connect(context.Background(), url)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, Migrate(url))
	// Second run is a no-op.
	require.NoError(t, Migrate(url))

	var n int
	err = pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM information_schema.tables
		 WHERE table_name IN ('categories', 'albums', 'photos', 'storage_purges')`,
	).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
