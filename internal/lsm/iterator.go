package lsm

// StorageIterator is the common interface implemented by every layer of
// the iterator stack: memtable iterators, SST iterators, and the
// merge/two-merge/LSM/fused iterators that compose them.
type StorageIterator interface {
	Key() []byte
	Value() []byte
	IsValid() bool
	Next() error
	NumActiveIterators() int
}
