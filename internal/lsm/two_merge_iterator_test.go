package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTwoMergeIteratorAWinsTies(t *testing.T) {
	a := newSliceIterator([2]string{"a", "fromA"}, [2]string{"c", "fromA"})
	b := newSliceIterator([2]string{"a", "fromB"}, [2]string{"b", "fromB"})

	tw, err := NewTwoMergeIterator(a, b)
	require.NoError(t, err)

	var got [][2]string
	for tw.IsValid() {
		got = append(got, [2]string{string(tw.Key()), string(tw.Value())})
		require.NoError(t, tw.Next())
	}
	require.Equal(t, [][2]string{{"a", "fromA"}, {"b", "fromB"}, {"c", "fromA"}}, got)
}
