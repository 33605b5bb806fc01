package lsm

import "bytes"

// SSTableIterator walks an SSTable's entries in ascending key order,
// loading data blocks lazily (and only once each, via the shared block
// cache) as it crosses block boundaries.
type SSTableIterator struct {
	sst      *SSTable
	blockIdx int
	block    *Block
	entryIdx int
	cur      blockEntry
	valid    bool
}

// NewSSTableIterator positions the iterator at the first entry of the SST.
func NewSSTableIterator(sst *SSTable) (*SSTableIterator, error) {
	it := &SSTableIterator{sst: sst}
	if len(sst.blockMetas) == 0 {
		return it, nil
	}
	if err := it.loadBlock(0); err != nil {
		return nil, err
	}
	it.entryIdx = 0
	if err := it.loadEntry(); err != nil {
		return nil, err
	}
	return it, nil
}

// NewSSTableIteratorSeek positions the iterator at the first entry >= key.
func NewSSTableIteratorSeek(sst *SSTable, key []byte) (*SSTableIterator, error) {
	it := &SSTableIterator{sst: sst}
	idx := sst.findBlock(key)
	if idx < 0 {
		idx = 0
	}
	if len(sst.blockMetas) == 0 {
		return it, nil
	}
	if err := it.loadBlock(idx); err != nil {
		return nil, err
	}
	if err := it.seekWithinBlock(key); err != nil {
		return nil, err
	}
	if !it.valid && it.blockIdx+1 < len(sst.blockMetas) {
		if err := it.loadBlock(it.blockIdx + 1); err != nil {
			return nil, err
		}
		it.entryIdx = 0
		if err := it.loadEntry(); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (it *SSTableIterator) loadBlock(idx int) error {
	blk, err := it.sst.readBlock(idx)
	if err != nil {
		return err
	}
	it.block = blk
	it.blockIdx = idx
	return nil
}

func (it *SSTableIterator) loadEntry() error {
	if it.block == nil || it.entryIdx >= it.block.numEntries() {
		it.valid = false
		return nil
	}
	e, err := it.block.entryAt(it.entryIdx)
	if err != nil {
		return err
	}
	it.cur = e
	it.valid = true
	return nil
}

func (it *SSTableIterator) seekWithinBlock(key []byte) error {
	n := it.block.numEntries()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		e, err := it.block.entryAt(mid)
		if err != nil {
			return err
		}
		if bytes.Compare(e.key, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	it.entryIdx = lo
	return it.loadEntry()
}

func (it *SSTableIterator) Key() []byte   { return it.cur.key }
func (it *SSTableIterator) Value() []byte { return it.cur.value }
func (it *SSTableIterator) IsValid() bool { return it.valid }

func (it *SSTableIterator) Next() error {
	it.entryIdx++
	if err := it.loadEntry(); err != nil {
		return err
	}
	if it.valid {
		return nil
	}
	if it.blockIdx+1 >= len(it.sst.blockMetas) {
		it.valid = false
		return nil
	}
	if err := it.loadBlock(it.blockIdx + 1); err != nil {
		return err
	}
	it.entryIdx = 0
	return it.loadEntry()
}

func (it *SSTableIterator) NumActiveIterators() int { return 1 }
