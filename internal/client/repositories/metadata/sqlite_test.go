package metadata

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/whattodo/internal/client/db"
	"github.com/dmitrijs2005/whattodo/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSetAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeySalt, []byte{0x01, 0x02}))

	v, err := r.Get(ctx, KeySalt)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, v)
}

func TestGet_Missing_ReturnsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSet_Overwrites(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyUsername, []byte("old")))
	require.NoError(t, r.Set(ctx, KeyUsername, []byte("new")))

	v, err := r.Get(ctx, KeyUsername)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)
}

func TestList_DeleteAndClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", []byte{0xAA}))
	require.NoError(t, r.Set(ctx, "b", []byte{0xBB, 0xCC}))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": {0xAA}, "b": {0xBB, 0xCC}}, m)

	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))
	m, err = r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, m, 1)

	require.NoError(t, r.Clear(ctx))
	m, err = r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestErrors_WrapStorageFailure(t *testing.T) {
	conn := setupDB(t)
	r := NewSQLiteRepository(conn)
	ctx := context.Background()
	require.NoError(t, conn.Close())

	_, err := r.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrStorageFailure)
	assert.ErrorContains(t, err, "get metadata[k]")

	assert.ErrorIs(t, r.Set(ctx, "k", nil), common.ErrStorageFailure)
	assert.ErrorIs(t, r.Delete(ctx, "k"), common.ErrStorageFailure)
	assert.ErrorIs(t, r.Clear(ctx), common.ErrStorageFailure)
	_, err = r.List(ctx)
	assert.ErrorIs(t, err, common.ErrStorageFailure)
}
