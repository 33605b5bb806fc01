package lsm

import "bytes"

// TwoMergeIterator merges two already-sorted streams, A and B, where A
// (conventionally the memtable-side merge) always wins on key ties against
// B (conventionally the SST-side merge), since A holds strictly newer data.
type TwoMergeIterator struct {
	a, b StorageIterator
	useA bool
}

func NewTwoMergeIterator(a, b StorageIterator) (*TwoMergeIterator, error) {
	t := &TwoMergeIterator{a: a, b: b}
	if err := t.skipB(); err != nil {
		return nil, err
	}
	t.chooseSide()
	return t, nil
}

// skipB advances b past any key also present in a, since a must win.
func (t *TwoMergeIterator) skipB() error {
	for t.a.IsValid() && t.b.IsValid() && bytes.Equal(t.a.Key(), t.b.Key()) {
		if err := t.b.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (t *TwoMergeIterator) chooseSide() {
	if !t.a.IsValid() {
		t.useA = false
		return
	}
	if !t.b.IsValid() {
		t.useA = true
		return
	}
	t.useA = bytes.Compare(t.a.Key(), t.b.Key()) <= 0
}

func (t *TwoMergeIterator) Key() []byte {
	if t.useA {
		return t.a.Key()
	}
	return t.b.Key()
}

func (t *TwoMergeIterator) Value() []byte {
	if t.useA {
		return t.a.Value()
	}
	return t.b.Value()
}

func (t *TwoMergeIterator) IsValid() bool {
	return t.a.IsValid() || t.b.IsValid()
}

func (t *TwoMergeIterator) Next() error {
	var err error
	if t.useA {
		err = t.a.Next()
	} else {
		err = t.b.Next()
	}
	if err != nil {
		return err
	}
	if err := t.skipB(); err != nil {
		return err
	}
	t.chooseSide()
	return nil
}

func (t *TwoMergeIterator) NumActiveIterators() int {
	return t.a.NumActiveIterators() + t.b.NumActiveIterators()
}
