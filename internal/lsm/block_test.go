package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockBuilderRoundTrip(t *testing.T) {
	b := NewBlockBuilder(4096)
	entries := [][2]string{
		{"apple", "fruit"},
		{"banana", "fruit2"},
		{"cherry", "fruit3"},
	}
	for _, e := range entries {
		require.True(t, b.Add([]byte(e[0]), []byte(e[1])))
	}

	blk := b.Build()
	encoded := blk.Encode()

	decoded, err := DecodeBlock(encoded)
	require.NoError(t, err)
	require.Equal(t, len(entries), decoded.numEntries())

	for i, e := range entries {
		entry, err := decoded.entryAt(i)
		require.NoError(t, err)
		require.Equal(t, e[0], string(entry.key))
		require.Equal(t, e[1], string(entry.value))
	}
}

func TestBlockBuilderFrontCodingAgreesWithFirstKeyNotPreviousKey(t *testing.T) {
	// "bb" shares the prefix "b" with the previous key "ba" but nothing with
	// the first key "a". entryAt always reconstructs against firstKey, so Add
	// must compute overlap against firstKey too; an overlap taken against the
	// previous key would make "bb" decode as "ab".
	b := NewBlockBuilder(4096)
	for _, k := range []string{"a", "ba", "bb"} {
		require.True(t, b.Add([]byte(k), []byte("v-"+k)))
	}
	blk := b.Build()

	for i, want := range []string{"a", "ba", "bb"} {
		entry, err := blk.entryAt(i)
		require.NoError(t, err)
		require.Equal(t, want, string(entry.key))
	}
}

func TestBlockBuilderRejectsOverflow(t *testing.T) {
	b := NewBlockBuilder(20)
	require.True(t, b.Add([]byte("k"), []byte("v")))
	ok := b.Add([]byte("some-much-longer-key"), []byte("some-much-longer-value"))
	require.False(t, ok)
}

func TestDecodeBlockRejectsTruncated(t *testing.T) {
	_, err := DecodeBlock([]byte{0x01})
	require.Error(t, err)
}
