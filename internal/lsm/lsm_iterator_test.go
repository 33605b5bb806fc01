package lsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLsmIteratorSkipsTombstones(t *testing.T) {
	inner := newSliceIterator(
		[2]string{"a", "1"},
		[2]string{"b", ""},
		[2]string{"c", "3"},
	)
	it, err := NewLsmIterator(inner, Unbounded())
	require.NoError(t, err)

	var got []string
	for it.IsValid() {
		got = append(got, string(it.Key()))
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"a", "c"}, got)
}

func TestLsmIteratorRespectsUpperBound(t *testing.T) {
	inner := newSliceIterator(
		[2]string{"a", "1"},
		[2]string{"b", "2"},
		[2]string{"c", "3"},
	)
	it, err := NewLsmIterator(inner, Excluded([]byte("c")))
	require.NoError(t, err)

	var got []string
	for it.IsValid() {
		got = append(got, string(it.Key()))
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"a", "b"}, got)
}

func TestLsmIteratorRespectsInclusiveUpperBound(t *testing.T) {
	inner := newSliceIterator(
		[2]string{"a", "1"},
		[2]string{"b", "2"},
		[2]string{"c", "3"},
	)
	it, err := NewLsmIterator(inner, Included([]byte("b")))
	require.NoError(t, err)

	var got []string
	for it.IsValid() {
		got = append(got, string(it.Key()))
		require.NoError(t, it.Next())
	}
	require.Equal(t, []string{"a", "b"}, got)
}

type erroringIterator struct {
	calls int
}

func (e *erroringIterator) Key() []byte           { return []byte("k") }
func (e *erroringIterator) Value() []byte         { return []byte("v") }
func (e *erroringIterator) IsValid() bool         { return true }
func (e *erroringIterator) NumActiveIterators() int { return 1 }
func (e *erroringIterator) Next() error {
	e.calls++
	return errors.New("boom")
}

func TestFusedIteratorStaysInvalidAfterError(t *testing.T) {
	f := NewFusedIterator(&erroringIterator{})
	require.True(t, f.IsValid())
	require.Error(t, f.Next())
	require.False(t, f.IsValid())
	require.Error(t, f.Next()) // sticky: keeps returning the same error
	require.False(t, f.IsValid())
}
