package lsm

import (
	"bytes"
	"container/heap"
)

// heapItem is one child iterator as tracked by the merge heap: ordered by
// key ascending, and by index ascending on key ties so that the child
// registered first (the newer source, by convention) wins duplicates.
type heapItem struct {
	idx  int
	iter StorageIterator
}

type iterHeap []*heapItem

func (h iterHeap) Len() int { return len(h) }
func (h iterHeap) Less(i, j int) bool {
	c := bytes.Compare(h[i].iter.Key(), h[j].iter.Key())
	if c != 0 {
		return c < 0
	}
	return h[i].idx < h[j].idx
}
func (h iterHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *iterHeap) Push(x any)        { *h = append(*h, x.(*heapItem)) }
func (h *iterHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeIterator performs a k-way merge over a set of child iterators that
// are each independently sorted, producing one globally sorted stream. When
// multiple children have the same key, the one registered at the lowest
// index is surfaced and the others are silently advanced past it — callers
// register children newest-first so this implements last-writer-wins.
type MergeIterator struct {
	h       iterHeap
	current *heapItem
}

// NewMergeIterator builds a merge iterator over iters, ordered newest to
// oldest (index 0 is newest and wins key ties).
func NewMergeIterator(iters []StorageIterator) *MergeIterator {
	m := &MergeIterator{}
	for i, it := range iters {
		if it != nil && it.IsValid() {
			heap.Push(&m.h, &heapItem{idx: i, iter: it})
		}
	}
	if m.h.Len() > 0 {
		m.current = heap.Pop(&m.h).(*heapItem)
	}
	return m
}

func (m *MergeIterator) Key() []byte   { return m.current.iter.Key() }
func (m *MergeIterator) Value() []byte { return m.current.iter.Value() }
func (m *MergeIterator) IsValid() bool { return m.current != nil }

func (m *MergeIterator) Next() error {
	key := append([]byte{}, m.current.iter.Key()...)

	if err := m.current.iter.Next(); err != nil {
		m.current, m.h = nil, nil
		return err
	}
	if m.current.iter.IsValid() {
		heap.Push(&m.h, m.current)
	}
	m.current = nil

	// Drain any other children still sitting on the key we just advanced
	// past, so duplicates never resurface.
	for m.h.Len() > 0 && bytes.Equal(m.h[0].iter.Key(), key) {
		top := heap.Pop(&m.h).(*heapItem)
		if err := top.iter.Next(); err != nil {
			m.h = nil
			return err
		}
		if top.iter.IsValid() {
			heap.Push(&m.h, top)
		}
	}

	if m.h.Len() > 0 {
		m.current = heap.Pop(&m.h).(*heapItem)
	}
	return nil
}

func (m *MergeIterator) NumActiveIterators() int {
	n := 0
	if m.current != nil {
		n += m.current.iter.NumActiveIterators()
	}
	for _, it := range m.h {
		n += it.iter.NumActiveIterators()
	}
	return n
}
