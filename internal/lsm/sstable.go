package lsm

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
)

// SSTable is an immutable, on-disk sorted run. Once built it is never
// mutated; compaction produces new SSTables rather than editing existing
// ones.
type SSTable struct {
	id         uint64
	path       string
	blockMetas []blockMeta
	bloom      *BloomFilter
	firstKey   []byte
	lastKey    []byte
	fileSize   int64
	numEntries int
	cache      *blockCache
}

func (s *SSTable) ID() uint64       { return s.id }
func (s *SSTable) FirstKey() []byte { return s.firstKey }
func (s *SSTable) LastKey() []byte  { return s.lastKey }
func (s *SSTable) FileSize() int64  { return s.fileSize }
func (s *SSTable) NumBlocks() int   { return len(s.blockMetas) }

// MightContain reports whether key could be present in this SST, consulting
// the Bloom filter before doing any disk I/O.
func (s *SSTable) MightContain(key []byte) bool {
	if s.bloom == nil {
		return true
	}
	return s.bloom.MightContain(key)
}

// OpenSSTable reads the footer, block meta-index, and Bloom filter of the
// SST at path without reading any data blocks.
func OpenSSTable(id uint64, path string, cache *blockCache) (*SSTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size < 20 {
		return nil, fmt.Errorf("lsmkv: sstable %d too small: %w", id, ErrCorruptedSST)
	}

	footer := make([]byte, 20)
	if _, err := f.ReadAt(footer, size-20); err != nil {
		return nil, err
	}
	metaOffset := binary.LittleEndian.Uint32(footer[0:4])
	metaLen := binary.LittleEndian.Uint32(footer[4:8])
	bloomOffset := binary.LittleEndian.Uint32(footer[8:12])
	bloomLen := binary.LittleEndian.Uint32(footer[12:16])
	magic := binary.LittleEndian.Uint32(footer[16:20])
	if magic != sstMagic {
		return nil, fmt.Errorf("lsmkv: sstable %d bad magic: %w", id, ErrCorruptedSST)
	}

	metaBuf := make([]byte, metaLen)
	if _, err := f.ReadAt(metaBuf, int64(metaOffset)); err != nil {
		return nil, err
	}
	metas, err := decodeBlockMetas(metaBuf)
	if err != nil {
		return nil, err
	}

	bloomBuf := make([]byte, bloomLen)
	if _, err := f.ReadAt(bloomBuf, int64(bloomOffset)); err != nil {
		return nil, err
	}
	bloom, err := DecodeBloomFilter(bloomBuf)
	if err != nil {
		return nil, err
	}

	var firstKey, lastKey []byte
	if len(metas) > 0 {
		firstKey = metas[0].firstKey
		lastKey = metas[len(metas)-1].lastKey
	}

	return &SSTable{
		id:         id,
		path:       path,
		blockMetas: metas,
		bloom:      bloom,
		firstKey:   firstKey,
		lastKey:    lastKey,
		fileSize:   size,
		cache:      cache,
	}, nil
}

// readBlock loads and decodes the idx-th data block, consulting and
// populating the shared block cache.
func (s *SSTable) readBlock(idx int) (*Block, error) {
	if s.cache != nil {
		if b, ok := s.cache.get(s.id, idx); ok {
			return b, nil
		}
	}
	if idx < 0 || idx >= len(s.blockMetas) {
		return nil, fmt.Errorf("lsmkv: block index %d out of range for sstable %d", idx, s.id)
	}
	meta := s.blockMetas[idx]

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw := make([]byte, meta.length)
	if _, err := f.ReadAt(raw, int64(meta.offset)); err != nil {
		return nil, err
	}
	payload := raw[:len(raw)-4]
	wantChecksum := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if crc32.ChecksumIEEE(payload) != wantChecksum {
		return nil, fmt.Errorf("lsmkv: sstable %d block %d: %w", s.id, idx, ErrCorruptedSST)
	}

	blk, err := DecodeBlock(payload)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.put(s.id, idx, blk)
	}
	return blk, nil
}

// findBlock returns the index of the block that would contain key, based
// on each block's first key, or -1 if key is before every block.
func (s *SSTable) findBlock(key []byte) int {
	lo, hi := 0, len(s.blockMetas)-1
	idx := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if compareBytes(s.blockMetas[mid].firstKey, key) <= 0 {
			idx = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return idx
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
