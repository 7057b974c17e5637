package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
)

func TestLevelDBMissingKey(t *testing.T) {
	l, err := NewMemLevelDB()
	require.NoError(t, err)
	defer l.Close()

	v, err := l.Get([]byte("absent"))
	require.NoError(t, err)
	require.Nil(t, v)

	ok, err := l.Has([]byte("absent"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLevelDBBatchAndPrefixIterator(t *testing.T) {
	l, err := NewMemLevelDB()
	require.NoError(t, err)
	defer l.Close()

	b := new(leveldb.Batch)
	b.Put([]byte("deposit:2"), []byte("b"))
	b.Put([]byte("deposit:1"), []byte("a"))
	b.Put([]byte("withdrawal:1"), []byte("w"))
	require.NoError(t, l.Write(b))

	it := l.NewIterator([]byte("deposit:"))
	defer it.Release()
	var got []string
	for it.Next() {
		got = append(got, string(it.Value()))
	}
	require.NoError(t, it.Error())
	require.Equal(t, []string{"a", "b"}, got)
}

func TestNewLevelDBsOnDisk(t *testing.T) {
	dir := t.TempDir()
	stateDB, custodyDB, err := NewLevelDBs(filepath.Join(dir, "state"), filepath.Join(dir, "custody"))
	require.NoError(t, err)
	defer stateDB.Close()
	defer custodyDB.Close()

	require.NoError(t, stateDB.Put([]byte("k"), []byte("v")))
	v, err := stateDB.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	v, err = custodyDB.Get([]byte("k"))
	require.NoError(t, err)
	require.Nil(t, v)
}
