package lsm

import "bytes"

// LsmIterator wraps the fully merged stream (memtables and SSTs already
// combined by MergeIterator/TwoMergeIterator layers) and applies the two
// concerns those lower layers don't know about: an optional upper bound on
// the scan, and skipping tombstones (empty-value entries) so callers never
// see deleted keys.
type LsmIterator struct {
	inner StorageIterator
	upper Bound
}

// NewLsmIterator wraps inner, advancing past any leading tombstone and
// stopping at upper if one is given.
func NewLsmIterator(inner StorageIterator, upper Bound) (*LsmIterator, error) {
	it := &LsmIterator{inner: inner, upper: upper}
	if err := it.skipDeleted(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *LsmIterator) withinBound() bool {
	if !it.inner.IsValid() {
		return false
	}
	switch it.upper.Kind {
	case BoundIncluded:
		return bytes.Compare(it.inner.Key(), it.upper.Key) <= 0
	case BoundExcluded:
		return bytes.Compare(it.inner.Key(), it.upper.Key) < 0
	default:
		return true
	}
}

func (it *LsmIterator) skipDeleted() error {
	for it.withinBound() && len(it.inner.Value()) == 0 {
		if err := it.inner.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (it *LsmIterator) Key() []byte   { return it.inner.Key() }
func (it *LsmIterator) Value() []byte { return it.inner.Value() }
func (it *LsmIterator) IsValid() bool { return it.withinBound() }

func (it *LsmIterator) Next() error {
	if err := it.inner.Next(); err != nil {
		return err
	}
	return it.skipDeleted()
}

func (it *LsmIterator) NumActiveIterators() int { return it.inner.NumActiveIterators() }

// FusedIterator wraps any StorageIterator and becomes permanently invalid
// the moment Next returns an error, so a read error can never be mistaken
// for end-of-scan or retried into undefined behavior.
type FusedIterator struct {
	inner StorageIterator
	err   error
}

func NewFusedIterator(inner StorageIterator) *FusedIterator {
	return &FusedIterator{inner: inner}
}

func (f *FusedIterator) Key() []byte {
	if f.err != nil {
		return nil
	}
	return f.inner.Key()
}

func (f *FusedIterator) Value() []byte {
	if f.err != nil {
		return nil
	}
	return f.inner.Value()
}

func (f *FusedIterator) IsValid() bool {
	return f.err == nil && f.inner.IsValid()
}

func (f *FusedIterator) Next() error {
	if f.err != nil {
		return f.err
	}
	if !f.inner.IsValid() {
		return nil
	}
	if err := f.inner.Next(); err != nil {
		f.err = err
		return err
	}
	return nil
}

func (f *FusedIterator) NumActiveIterators() int {
	if f.err != nil {
		return 0
	}
	return f.inner.NumActiveIterators()
}
