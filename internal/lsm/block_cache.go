package lsm

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// blockCacheKey identifies a single block within a single SST.
type blockCacheKey struct {
	sstID    uint64
	blockIdx int
}

// blockCache bounds the number of decoded blocks kept in memory, avoiding
// repeated decode work for hot blocks across Get/scan calls. It mirrors the
// teacher's block-cache intent but is backed by a real LRU implementation
// rather than an unbounded map.
type blockCache struct {
	lru *lru.Cache[blockCacheKey, *Block]
}

func newBlockCache(size int) *blockCache {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[blockCacheKey, *Block](size)
	if err != nil {
		// Only returns an error for a non-positive size, which is guarded above.
		panic(err)
	}
	return &blockCache{lru: c}
}

func (c *blockCache) get(sstID uint64, blockIdx int) (*Block, bool) {
	return c.lru.Get(blockCacheKey{sstID, blockIdx})
}

func (c *blockCache) put(sstID uint64, blockIdx int, b *Block) {
	c.lru.Add(blockCacheKey{sstID, blockIdx}, b)
}
