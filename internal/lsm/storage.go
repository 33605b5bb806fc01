package lsm

import "bytes"

// storageState is the LSM tree's structural snapshot: the active memtable,
// the stack of frozen-but-unflushed memtables (newest first), L0's SST ids
// (newest first), the deeper levels/tiers, and the id -> SSTable lookup
// table. Readers clone the *storageState pointer under a read lock and then
// operate against that clone lock-free; writers that change structure
// (freeze, flush, compaction) build a new storageState and swap the
// pointer under a write lock, serialized by the engine's stateLock.
type storageState struct {
	memtable     *MemTable
	immMemtables []*MemTable // newest first
	l0           []uint64    // newest first
	levels       [][]uint64
	sstables     map[uint64]*SSTable
}

func newStorageState(mt *MemTable) *storageState {
	return &storageState{
		memtable: mt,
		sstables: make(map[uint64]*SSTable),
	}
}

func (s *storageState) clone() *storageState {
	out := &storageState{
		memtable:     s.memtable,
		immMemtables: append([]*MemTable{}, s.immMemtables...),
		l0:           append([]uint64{}, s.l0...),
		sstables:     make(map[uint64]*SSTable, len(s.sstables)),
	}
	for _, lvl := range s.levels {
		out.levels = append(out.levels, append([]uint64{}, lvl...))
	}
	for id, sst := range s.sstables {
		out.sstables[id] = sst
	}
	return out
}

func (s *storageState) snapshot() LevelsSnapshot {
	return LevelsSnapshot{L0: s.l0, Levels: s.levels}
}

// rangeOverlap reports whether an SST's [firstKey, lastKey] range could
// contain anything within the scan's [lower, upper] bounds.
func rangeOverlap(lower, upper Bound, firstKey, lastKey []byte) bool {
	switch upper.Kind {
	case BoundIncluded:
		if bytes.Compare(firstKey, upper.Key) > 0 {
			return false
		}
	case BoundExcluded:
		if bytes.Compare(firstKey, upper.Key) >= 0 {
			return false
		}
	}
	switch lower.Kind {
	case BoundIncluded:
		if bytes.Compare(lastKey, lower.Key) < 0 {
			return false
		}
	case BoundExcluded:
		if bytes.Compare(lastKey, lower.Key) <= 0 {
			return false
		}
	}
	return true
}

// keyWithin reports whether key falls within an SST's [firstKey, lastKey].
func keyWithin(key, firstKey, lastKey []byte) bool {
	return bytes.Compare(key, firstKey) >= 0 && bytes.Compare(key, lastKey) <= 0
}
