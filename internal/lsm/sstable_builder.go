package lsm

import (
	"encoding/binary"
	"hash/crc32"
	"os"
)

type blockMeta struct {
	offset   uint32
	length   uint32
	firstKey []byte
	lastKey  []byte
}

// sstMagic terminates every SST file, guarding against truncated or
// unrelated files being opened as an SST.
const sstMagic = uint32(0x4C534D4B) // "LSMK"

// SSTableBuilder accumulates sorted key/value pairs into data blocks and,
// on Finish, writes a complete SST file: data blocks, a block meta-index,
// a Bloom filter footer, and a fixed trailer pointing at both.
type SSTableBuilder struct {
	blockSize int
	cur       *BlockBuilder
	blocks    []blockMeta
	data      []byte
	keyCount  int
	allKeys   [][]byte
	firstKey  []byte
	lastKey   []byte
}

func NewSSTableBuilder(blockSize int) *SSTableBuilder {
	return &SSTableBuilder{
		blockSize: blockSize,
		cur:       NewBlockBuilder(blockSize),
	}
}

// Add appends a key/value pair. Keys must be added in ascending order.
func (b *SSTableBuilder) Add(key, value []byte) {
	if b.firstKey == nil {
		b.firstKey = append([]byte{}, key...)
	}
	b.lastKey = append([]byte{}, key...)
	b.allKeys = append(b.allKeys, append([]byte{}, key...))
	b.keyCount++

	if b.cur.Add(key, value) {
		return
	}
	b.flushBlock()
	b.cur.Add(key, value)
}

func (b *SSTableBuilder) flushBlock() {
	if b.cur.IsEmpty() {
		return
	}
	blk := b.cur.Build()
	encoded := blk.Encode()
	meta := blockMeta{
		offset:   uint32(len(b.data)),
		length:   uint32(len(encoded)) + 4,
		firstKey: append([]byte{}, b.cur.firstKey...),
		lastKey:  append([]byte{}, b.cur.lastKey...),
	}
	var checksum [4]byte
	binary.LittleEndian.PutUint32(checksum[:], crc32.ChecksumIEEE(encoded))
	b.data = append(b.data, encoded...)
	b.data = append(b.data, checksum[:]...)
	b.blocks = append(b.blocks, meta)
	b.cur = NewBlockBuilder(b.blockSize)
}

func (b *SSTableBuilder) EstimatedSize() int {
	return len(b.data) + b.cur.estimatedSize()
}

// IsEmpty reports whether the builder has accumulated no entries at all.
func (b *SSTableBuilder) IsEmpty() bool {
	return b.keyCount == 0
}

// Finish writes the complete SST to path and returns a reader for it.
func (b *SSTableBuilder) Finish(id uint64, path string, bitsPerKey float64) (*SSTable, error) {
	b.flushBlock()

	bloom := NewBloomFilter(b.keyCount, bitsPerKey)
	for _, k := range b.allKeys {
		bloom.Add(k)
	}

	metaBuf := encodeBlockMetas(b.blocks)
	bloomBuf := bloom.Encode()

	out := make([]byte, 0, len(b.data)+len(metaBuf)+len(bloomBuf)+20)
	out = append(out, b.data...)
	metaOffset := uint32(len(out))
	out = append(out, metaBuf...)
	bloomOffset := uint32(len(out))
	out = append(out, bloomBuf...)

	var footer [20]byte
	binary.LittleEndian.PutUint32(footer[0:4], metaOffset)
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(metaBuf)))
	binary.LittleEndian.PutUint32(footer[8:12], bloomOffset)
	binary.LittleEndian.PutUint32(footer[12:16], uint32(len(bloomBuf)))
	binary.LittleEndian.PutUint32(footer[16:20], sstMagic)
	out = append(out, footer[:]...)

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return nil, err
	}

	return &SSTable{
		id:          id,
		path:        path,
		blockMetas:  b.blocks,
		bloom:       bloom,
		firstKey:    b.firstKey,
		lastKey:     b.lastKey,
		fileSize:    int64(len(out)),
		numEntries:  b.keyCount,
	}, nil
}

func encodeBlockMetas(metas []blockMeta) []byte {
	var buf []byte
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(metas)))
	buf = append(buf, lenBuf[:]...)
	for _, m := range metas {
		var hdr [12]byte
		binary.LittleEndian.PutUint32(hdr[0:4], m.offset)
		binary.LittleEndian.PutUint32(hdr[4:8], m.length)
		binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(m.firstKey)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, m.firstKey...)
		var lkLen [4]byte
		binary.LittleEndian.PutUint32(lkLen[:], uint32(len(m.lastKey)))
		buf = append(buf, lkLen[:]...)
		buf = append(buf, m.lastKey...)
	}
	return buf
}

func decodeBlockMetas(buf []byte) ([]blockMeta, error) {
	if len(buf) < 4 {
		return nil, ErrCorruptedSST
	}
	n := int(binary.LittleEndian.Uint32(buf))
	pos := 4
	metas := make([]blockMeta, 0, n)
	for i := 0; i < n; i++ {
		if pos+12 > len(buf) {
			return nil, ErrCorruptedSST
		}
		offset := binary.LittleEndian.Uint32(buf[pos:])
		length := binary.LittleEndian.Uint32(buf[pos+4:])
		fkLen := int(binary.LittleEndian.Uint32(buf[pos+8:]))
		pos += 12
		if pos+fkLen > len(buf) {
			return nil, ErrCorruptedSST
		}
		firstKey := append([]byte{}, buf[pos:pos+fkLen]...)
		pos += fkLen
		if pos+4 > len(buf) {
			return nil, ErrCorruptedSST
		}
		lkLen := int(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		if pos+lkLen > len(buf) {
			return nil, ErrCorruptedSST
		}
		lastKey := append([]byte{}, buf[pos:pos+lkLen]...)
		pos += lkLen
		metas = append(metas, blockMeta{offset: offset, length: length, firstKey: firstKey, lastKey: lastKey})
	}
	return metas, nil
}
