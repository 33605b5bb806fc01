package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemTablePutGet(t *testing.T) {
	mt := NewMemTable(0)
	require.NoError(t, mt.Put([]byte("a"), []byte("1")))
	require.NoError(t, mt.Put([]byte("b"), []byte("2")))

	v, ok := mt.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	_, ok = mt.Get([]byte("missing"))
	require.False(t, ok)
}

func TestMemTableOverwriteIsLastWriterWins(t *testing.T) {
	mt := NewMemTable(0)
	require.NoError(t, mt.Put([]byte("a"), []byte("1")))
	require.NoError(t, mt.Put([]byte("a"), []byte("2")))

	v, ok := mt.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, "2", string(v))
}

func TestMemTableTombstone(t *testing.T) {
	mt := NewMemTable(0)
	require.NoError(t, mt.Put([]byte("a"), []byte("1")))
	require.NoError(t, mt.Put([]byte("a"), nil))

	v, ok := mt.Get([]byte("a"))
	require.True(t, ok)
	require.Empty(t, v)
}

func TestMemTableIteratorOrder(t *testing.T) {
	mt := NewMemTable(0)
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, mt.Put([]byte(k), []byte("v")))
	}

	it := mt.NewIterator(Unbounded(), Unbounded())
	var got []string
	for it.IsValid() {
		got = append(got, string(it.Key()))
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestMemTableIteratorBounds(t *testing.T) {
	mt := NewMemTable(0)
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, mt.Put([]byte(k), []byte("v")))
	}

	it := mt.NewIterator(Included([]byte("b")), Excluded([]byte("d")))
	var got []string
	for it.IsValid() {
		got = append(got, string(it.Key()))
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"b", "c"}, got)
}
