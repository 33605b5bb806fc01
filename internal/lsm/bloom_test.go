package lsm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	f := NewBloomFilter(1000, 10)
	keys := make([][]byte, 0, 1000)
	for i := 0; i < 1000; i++ {
		k := []byte(fmt.Sprintf("key-%d", i))
		keys = append(keys, k)
		f.Add(k)
	}
	for _, k := range keys {
		require.True(t, f.MightContain(k))
	}
}

func TestBloomFilterEncodeDecode(t *testing.T) {
	f := NewBloomFilter(100, 10)
	f.Add([]byte("hello"))
	f.Add([]byte("world"))

	decoded, err := DecodeBloomFilter(f.Encode())
	require.NoError(t, err)
	require.True(t, decoded.MightContain([]byte("hello")))
	require.True(t, decoded.MightContain([]byte("world")))
}

func TestBloomFilterLowFalsePositiveRate(t *testing.T) {
	f := NewBloomFilter(1000, 10)
	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("present-%d", i)))
	}
	falsePositives := 0
	total := 1000
	for i := 0; i < total; i++ {
		if f.MightContain([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}
	require.Less(t, falsePositives, total/10)
}
