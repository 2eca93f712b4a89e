package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	value, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	batch := db.NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Put([]byte("a"), []byte("3"))
	require.Equal(t, 2, batch.Len())

	_, err = db.Get([]byte("b"))
	require.ErrorIs(t, err, ErrNotFound, "batch writes are buffered until Write")

	require.NoError(t, batch.Write())
	value, err = db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), value)
	value, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
	require.Equal(t, 2, db.Len())
}

func TestLevelDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")
	db, err := NewLevelDB(path)
	require.NoError(t, err)
	exerciseDatabase(t, db)
	db.Close()

	reopened, err := NewLevelDB(path)
	require.NoError(t, err)
	defer reopened.Close()
	value, err := reopened.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
}
