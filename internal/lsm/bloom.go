package lsm

import (
	"encoding/binary"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/twmb/murmur3"
)

// BloomFilter is a probabilistic set over 32-bit key fingerprints, used to
// skip SSTs that provably do not contain a looked-up key. It follows the
// same two-hash-from-one-hash trick (Kirsch-Mitzenmacher) the teacher's
// bloom_filter.go uses, but derives its fingerprint from murmur3 instead of
// a salted FNV64a, matching the fixed 32-bit fingerprint width the wire
// format requires.
type BloomFilter struct {
	bits    *bitset.BitSet
	numBits uint32
	numHash uint32
}

// NewBloomFilter sizes a filter for expectedKeys entries at the given bits-
// per-key ratio, using the standard optimal-hash-count formula.
func NewBloomFilter(expectedKeys int, bitsPerKey float64) *BloomFilter {
	if expectedKeys < 1 {
		expectedKeys = 1
	}
	numBits := uint32(math.Ceil(float64(expectedKeys) * bitsPerKey))
	if numBits < 8 {
		numBits = 8
	}
	numHash := uint32(math.Round(bitsPerKey * math.Ln2))
	if numHash < 1 {
		numHash = 1
	}
	if numHash > 30 {
		numHash = 30
	}
	return &BloomFilter{
		bits:    bitset.New(uint(numBits)),
		numBits: numBits,
		numHash: numHash,
	}
}

func fingerprint32(key []byte) uint32 {
	return murmur3.Sum32(key)
}

// splitHash derives two independent 32-bit hashes from one fingerprint,
// which are then combined linearly for each of the numHash probe indices.
func splitHash(fp uint32) (uint32, uint32) {
	h1 := fp
	h2 := (fp >> 16) | (fp << 16)
	return h1, h2
}

func (f *BloomFilter) probe(key []byte, visit func(bitIdx uint32)) {
	fp := fingerprint32(key)
	h1, h2 := splitHash(fp)
	for i := uint32(0); i < f.numHash; i++ {
		combined := h1 + i*h2
		visit(combined % f.numBits)
	}
}

// Add inserts key into the filter.
func (f *BloomFilter) Add(key []byte) {
	f.probe(key, func(idx uint32) {
		f.bits.Set(uint(idx))
	})
}

// MightContain reports whether key may be present. false is a definitive
// no; true may be a false positive.
func (f *BloomFilter) MightContain(key []byte) bool {
	present := true
	f.probe(key, func(idx uint32) {
		if !f.bits.Test(uint(idx)) {
			present = false
		}
	})
	return present
}

// Encode serializes the filter for SST footer storage.
func (f *BloomFilter) Encode() []byte {
	raw, _ := f.bits.MarshalBinary()
	buf := make([]byte, 0, 8+len(raw))
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], f.numBits)
	binary.LittleEndian.PutUint32(hdr[4:8], f.numHash)
	buf = append(buf, hdr[:]...)
	buf = append(buf, raw...)
	return buf
}

// DecodeBloomFilter parses a filter from its SST footer encoding.
func DecodeBloomFilter(raw []byte) (*BloomFilter, error) {
	if len(raw) < 8 {
		return nil, ErrCorruptedSST
	}
	numBits := binary.LittleEndian.Uint32(raw[0:4])
	numHash := binary.LittleEndian.Uint32(raw[4:8])
	bs := &bitset.BitSet{}
	if err := bs.UnmarshalBinary(raw[8:]); err != nil {
		return nil, ErrCorruptedSST
	}
	return &BloomFilter{bits: bs, numBits: numBits, numHash: numHash}, nil
}
