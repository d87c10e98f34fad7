package testutil_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/markerwatch/migrations"
	"github.com/pkordes/markerwatch/testutil"
)

// TestMigrations applies every migration, checks the markers table and its
// index exist, then rolls everything back and checks they are gone.
func TestMigrations(t *testing.T) {
	db := testutil.NewSQLDB(t)
	ctx := context.Background()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	require.NoError(t, err, "create goose provider")

	// Other packages' TestMain may have migrated the shared database already.
	_, err = provider.DownTo(ctx, 0)
	require.NoError(t, err, "initial reset")

	applied, err := migrations.Up(ctx, db)
	require.NoError(t, err, "migrations.Up")
	assert.Equal(t, []int64{1}, applied)

	assert.True(t, tableExists(t, db, "markers"))
	assert.True(t, indexExists(t, db, "markers_active_idx"))

	again, err := migrations.Up(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, again, "second run applies nothing")

	_, err = provider.DownTo(ctx, 0)
	require.NoError(t, err, "goose down-to 0")
	assert.False(t, tableExists(t, db, "markers"))

	// Leave the database migrated for whoever runs next.
	_, err = migrations.Up(ctx, db)
	require.NoError(t, err)
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`
	var exists bool
	require.NoError(t, db.QueryRowContext(context.Background(), q, table).Scan(&exists))
	return exists
}

func indexExists(t *testing.T, db *sql.DB, index string) bool {
	t.Helper()
	const q = `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = $1)`
	var exists bool
	require.NoError(t, db.QueryRowContext(context.Background(), q, index).Scan(&exists))
	return exists
}
