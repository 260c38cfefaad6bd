package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpen_AppliesMigrations(t *testing.T) {
	a := setupAdapter(t)
	assert.True(t, tableExists(t, a.db, "tables"))
	assert.True(t, tableExists(t, a.db, "goose_db_version"))

	// idempotent
	require.NoError(t, RunMigrations(context.Background(), a.db))
}

func TestLoad_NotExists_ReturnsNilNil(t *testing.T) {
	a := setupAdapter(t)
	v, err := a.Load(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v) // контракт: (nil, nil) если нет строки
}

func TestSave_UpsertOverwritesValue(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "todo", []byte("old")))
	require.NoError(t, a.Save(ctx, "todo", []byte("new")))

	v, err := a.Load(ctx, "todo")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)

	names, err := a.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"todo"}, names)
}

func TestDelete_RemovesAndIsIdempotent(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "todo", []byte{1}))
	require.NoError(t, a.Delete(ctx, "todo"))
	require.NoError(t, a.Delete(ctx, "todo"))

	v, err := a.Load(ctx, "todo")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestOpen_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "client.db")

	a, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, "todo__sync", []byte(`{"lastSync":"x"}`)))
	require.NoError(t, a.Close())

	b, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer b.Close()
	v, err := b.Load(ctx, "todo__sync")
	require.NoError(t, err)
	assert.Equal(t, `{"lastSync":"x"}`, string(v))
}
