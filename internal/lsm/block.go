package lsm

import (
	"encoding/binary"
	"fmt"
)

// Block is a run of sorted key/value entries encoded into a fixed-size byte
// buffer, plus an offset array that lets a reader binary-search it without
// decoding every entry. Layout on the wire:
//
//	entry*  offset(u16)*  numOffsets(u16)
//
// Each entry is: overlapLen(u16) restLen(u16) rest valueLen(u16) value
// where overlapLen/rest implement front-coding against the first key in
// the block (the first entry has overlapLen 0 and carries the full key).
type Block struct {
	data    []byte
	offsets []uint16
}

type blockEntry struct {
	key   []byte
	value []byte
}

// BlockBuilder accumulates entries into a block until it would exceed the
// configured target size.
type BlockBuilder struct {
	targetSize int
	data       []byte
	offsets    []uint16
	firstKey   []byte
	lastKey    []byte
}

func NewBlockBuilder(targetSize int) *BlockBuilder {
	return &BlockBuilder{targetSize: targetSize}
}

func (b *BlockBuilder) estimatedSize() int {
	return len(b.data) + len(b.offsets)*2 + 2
}

// Add appends a key/value pair, returning false if doing so would exceed
// the builder's target size (the caller should finish the current block
// and start a new one). The first entry in a block is always accepted
// regardless of size, matching the teacher's "never produce an empty block"
// rule.
func (b *BlockBuilder) Add(key, value []byte) bool {
	entrySize := 2 + len(key) + 2 + 2 + 2 + len(value)
	if len(b.offsets) > 0 && b.estimatedSize()+entrySize+2 > b.targetSize {
		return false
	}

	overlap := commonPrefixLen(b.firstKey, key)
	rest := key[overlap:]

	b.offsets = append(b.offsets, uint16(len(b.data)))
	var buf [2]byte

	binary.LittleEndian.PutUint16(buf[:], uint16(overlap))
	b.data = append(b.data, buf[:]...)
	binary.LittleEndian.PutUint16(buf[:], uint16(len(rest)))
	b.data = append(b.data, buf[:]...)
	b.data = append(b.data, rest...)
	binary.LittleEndian.PutUint16(buf[:], uint16(len(value)))
	b.data = append(b.data, buf[:]...)
	b.data = append(b.data, value...)

	if b.firstKey == nil {
		b.firstKey = append([]byte{}, key...)
	}
	b.lastKey = append(b.lastKey[:0], key...)
	return true
}

func (b *BlockBuilder) IsEmpty() bool {
	return len(b.offsets) == 0
}

// Build finalizes the block into its wire encoding.
func (b *BlockBuilder) Build() *Block {
	return &Block{data: b.data, offsets: b.offsets}
}

// Encode serializes the block to bytes, ready to be written to an SST.
func (bl *Block) Encode() []byte {
	buf := make([]byte, 0, len(bl.data)+len(bl.offsets)*2+2)
	buf = append(buf, bl.data...)
	for _, off := range bl.offsets {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], off)
		buf = append(buf, b[:]...)
	}
	var numBuf [2]byte
	binary.LittleEndian.PutUint16(numBuf[:], uint16(len(bl.offsets)))
	buf = append(buf, numBuf[:]...)
	return buf
}

// DecodeBlock parses a block from its wire encoding.
func DecodeBlock(raw []byte) (*Block, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("lsmkv: block too short to decode: %w", ErrCorruptedSST)
	}
	numOffsets := int(binary.LittleEndian.Uint16(raw[len(raw)-2:]))
	offsetsStart := len(raw) - 2 - numOffsets*2
	if offsetsStart < 0 {
		return nil, fmt.Errorf("lsmkv: block offset table overruns buffer: %w", ErrCorruptedSST)
	}
	offsets := make([]uint16, numOffsets)
	for i := 0; i < numOffsets; i++ {
		offsets[i] = binary.LittleEndian.Uint16(raw[offsetsStart+i*2:])
	}
	data := make([]byte, offsetsStart)
	copy(data, raw[:offsetsStart])
	return &Block{data: data, offsets: offsets}, nil
}

// entryAt decodes the i-th entry, resolving front-coding against the block's
// first entry (i == 0 always carries the full key).
func (bl *Block) entryAt(i int) (blockEntry, error) {
	if i < 0 || i >= len(bl.offsets) {
		return blockEntry{}, fmt.Errorf("lsmkv: block entry index %d out of range", i)
	}
	pos := int(bl.offsets[i])
	overlap := int(binary.LittleEndian.Uint16(bl.data[pos:]))
	pos += 2
	restLen := int(binary.LittleEndian.Uint16(bl.data[pos:]))
	pos += 2
	rest := bl.data[pos : pos+restLen]
	pos += restLen
	valueLen := int(binary.LittleEndian.Uint16(bl.data[pos:]))
	pos += 2
	value := bl.data[pos : pos+valueLen]

	var key []byte
	if overlap == 0 {
		key = append([]byte{}, rest...)
	} else {
		first, err := bl.firstKey()
		if err != nil {
			return blockEntry{}, err
		}
		key = make([]byte, overlap+restLen)
		copy(key, first[:overlap])
		copy(key[overlap:], rest)
	}
	return blockEntry{key: key, value: append([]byte{}, value...)}, nil
}

func (bl *Block) firstKey() ([]byte, error) {
	e, err := bl.entryAt(0)
	if err != nil {
		return nil, err
	}
	return e.key, nil
}

func (bl *Block) numEntries() int {
	return len(bl.offsets)
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
