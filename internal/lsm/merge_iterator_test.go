package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sliceIterator struct {
	keys   [][]byte
	values [][]byte
	idx    int
}

func newSliceIterator(pairs ...[2]string) *sliceIterator {
	it := &sliceIterator{}
	for _, p := range pairs {
		it.keys = append(it.keys, []byte(p[0]))
		it.values = append(it.values, []byte(p[1]))
	}
	return it
}

func (s *sliceIterator) Key() []byte           { return s.keys[s.idx] }
func (s *sliceIterator) Value() []byte         { return s.values[s.idx] }
func (s *sliceIterator) IsValid() bool         { return s.idx < len(s.keys) }
func (s *sliceIterator) Next() error           { s.idx++; return nil }
func (s *sliceIterator) NumActiveIterators() int { return 1 }

func TestMergeIteratorOrdersAcrossChildren(t *testing.T) {
	a := newSliceIterator([2]string{"a", "1"}, [2]string{"c", "3"})
	b := newSliceIterator([2]string{"b", "2"}, [2]string{"d", "4"})

	m := NewMergeIterator([]StorageIterator{a, b})
	var got []string
	for m.IsValid() {
		got = append(got, string(m.Key())+"="+string(m.Value()))
		require.NoError(t, m.Next())
	}
	require.Equal(t, []string{"a=1", "b=2", "c=3", "d=4"}, got)
}

func TestMergeIteratorNewerChildWinsTies(t *testing.T) {
	newer := newSliceIterator([2]string{"a", "new"})
	older := newSliceIterator([2]string{"a", "old"}, [2]string{"b", "old"})

	m := NewMergeIterator([]StorageIterator{newer, older})
	require.True(t, m.IsValid())
	require.Equal(t, "new", string(m.Value()))
	require.NoError(t, m.Next())
	require.True(t, m.IsValid())
	require.Equal(t, "b", string(m.Key()))
}
