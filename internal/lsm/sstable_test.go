package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestSST(t *testing.T, n int) *SSTable {
	t.Helper()
	b := NewSSTableBuilder(128)
	for i := 0; i < n; i++ {
		b.Add([]byte(fmt.Sprintf("key-%04d", i)), []byte(fmt.Sprintf("value-%d", i)))
	}
	path := filepath.Join(t.TempDir(), "00001.sst")
	sst, err := b.Finish(1, path, 10)
	require.NoError(t, err)
	return sst
}

func TestSSTableBuildAndOpen(t *testing.T) {
	sst := buildTestSST(t, 50)
	reopened, err := OpenSSTable(1, sst.path, nil)
	require.NoError(t, err)
	require.Equal(t, sst.FirstKey(), reopened.FirstKey())
	require.Equal(t, sst.LastKey(), reopened.LastKey())
}

func TestSSTableIteratorOrder(t *testing.T) {
	sst := buildTestSST(t, 30)
	it, err := NewSSTableIterator(sst)
	require.NoError(t, err)

	count := 0
	for it.IsValid() {
		require.Equal(t, fmt.Sprintf("key-%04d", count), string(it.Key()))
		count++
		require.NoError(t, it.Next())
	}
	require.Equal(t, 30, count)
}

func TestSSTableIteratorSeek(t *testing.T) {
	sst := buildTestSST(t, 30)
	it, err := NewSSTableIteratorSeek(sst, []byte("key-0015"))
	require.NoError(t, err)
	require.True(t, it.IsValid())
	require.Equal(t, "key-0015", string(it.Key()))
}

func TestSSTableBloomRejectsAbsentKey(t *testing.T) {
	sst := buildTestSST(t, 30)
	require.False(t, sst.MightContain([]byte("definitely-not-present-xyz")))
}

func TestSSTableChecksumDetectsCorruption(t *testing.T) {
	sst := buildTestSST(t, 5)

	data, err := os.ReadFile(sst.path)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(sst.path, data, 0o644))

	_, err = sst.readBlock(0)
	require.Error(t, err)
}
