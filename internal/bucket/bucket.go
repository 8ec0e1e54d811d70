// Package bucket implements the inverted-index cell that a chunk's
// [3 color][2 sign][16384 magnitude] grid is built from. Each cell holds
// the dense indices of every image whose signature has a coefficient at
// that exact (color, sign, magnitude) address, and grows through three
// representations as its membership count increases.
package bucket

import (
	"math/bits"
	"sort"
)

// smallCapacity is the number of entries a Bucket holds inline before it
// promotes to a sorted slice.
const smallCapacity = 15

// MaxVectorLen is the membership count at which a Vector promotes to a
// Bitmask, and the count a Bitmask must fall below to demote back.
const MaxVectorLen = 512

// bitmaskWords is the number of uint64 words needed to address every dense
// index a chunk can hold (65536 images per chunk, 64 bits per word).
const bitmaskWords = 65536 / 64

type kind uint8

const (
	kindEmpty kind = iota
	kindSmall
	kindVector
	kindBitmask
)

// Bucket is a tagged union over the three representations described in
// the package doc. The zero value is an empty bucket, ready to use.
type Bucket struct {
	kind     kind
	small    [smallCapacity]uint32
	smallLen int
	vec      []uint32
	bits     []uint64
	bitCount int
}

// Len reports the number of dense indices currently held.
func (b *Bucket) Len() int {
	switch b.kind {
	case kindSmall:
		return b.smallLen
	case kindVector:
		return len(b.vec)
	case kindBitmask:
		return b.bitCount
	default:
		return 0
	}
}

// Append records that the image at dense index id now has a coefficient
// at this bucket's address. id must not already be present.
func (b *Bucket) Append(id uint32) {
	switch b.kind {
	case kindEmpty:
		b.kind = kindSmall
		b.small[0] = id
		b.smallLen = 1

	case kindSmall:
		if b.smallLen < smallCapacity {
			b.small[b.smallLen] = id
			b.smallLen++
			return
		}
		// 16th entry: promote to a sorted Vector.
		vec := make([]uint32, b.smallLen, b.smallLen+1)
		copy(vec, b.small[:b.smallLen])
		vec = append(vec, id)
		sort.Slice(vec, func(i, j int) bool { return vec[i] < vec[j] })
		b.kind = kindVector
		b.vec = vec
		b.smallLen = 0

	case kindVector:
		if len(b.vec)+1 < MaxVectorLen {
			b.vec = insertSorted(b.vec, id)
			return
		}
		// Promotion point: rebuild as a Bitmask.
		words := make([]uint64, bitmaskWords)
		for _, v := range b.vec {
			setBit(words, v)
		}
		setBit(words, id)
		b.kind = kindBitmask
		b.bits = words
		b.bitCount = len(b.vec) + 1
		b.vec = nil

	case kindBitmask:
		if !testBit(b.bits, id) {
			setBit(b.bits, id)
			b.bitCount++
		}
	}
}

// Remove undoes a previous Append(id). id must currently be present.
func (b *Bucket) Remove(id uint32) {
	switch b.kind {
	case kindSmall:
		for i := 0; i < b.smallLen; i++ {
			if b.small[i] != id {
				continue
			}
			copy(b.small[i:b.smallLen-1], b.small[i+1:b.smallLen])
			b.small[b.smallLen-1] = 0
			b.smallLen--
			if b.smallLen == 0 {
				b.kind = kindEmpty
			}
			return
		}

	case kindVector:
		b.vec = removeSorted(b.vec, id)
		if len(b.vec) == 0 {
			b.kind = kindEmpty
			b.vec = nil
		}

	case kindBitmask:
		if !testBit(b.bits, id) {
			return
		}
		clearBit(b.bits, id)
		b.bitCount--
		if b.bitCount < MaxVectorLen {
			vec := make([]uint32, 0, b.bitCount)
			for w, word := range b.bits {
				for word != 0 {
					bitIdx := bits.TrailingZeros64(word)
					vec = append(vec, uint32(w*64+bitIdx))
					word &= word - 1
				}
			}
			b.kind = kindVector
			b.vec = vec
			b.bits = nil
		}
	}
}

// Apply subtracts weight from scores[id] for every dense index id this
// bucket holds. scores must be at least as long as the chunk's capacity.
// Entries are walked four at a time where the representation allows it,
// matching the unrolled-accumulation idiom used elsewhere in the scoring
// kernel rather than a true SIMD masked-subtract.
func (b *Bucket) Apply(scores []float32, weight float32) {
	switch b.kind {
	case kindSmall:
		n := b.smallLen
		i := 0
		for ; i+4 <= n; i += 4 {
			scores[b.small[i]] -= weight
			scores[b.small[i+1]] -= weight
			scores[b.small[i+2]] -= weight
			scores[b.small[i+3]] -= weight
		}
		for ; i < n; i++ {
			scores[b.small[i]] -= weight
		}

	case kindVector:
		v := b.vec
		n := len(v)
		i := 0
		for ; i+4 <= n; i += 4 {
			scores[v[i]] -= weight
			scores[v[i+1]] -= weight
			scores[v[i+2]] -= weight
			scores[v[i+3]] -= weight
		}
		for ; i < n; i++ {
			scores[v[i]] -= weight
		}

	case kindBitmask:
		for w, word := range b.bits {
			base := w * 64
			for word != 0 {
				bitIdx := bits.TrailingZeros64(word)
				scores[base+bitIdx] -= weight
				word &= word - 1
			}
		}
	}
}

func insertSorted(vec []uint32, id uint32) []uint32 {
	i := sort.Search(len(vec), func(i int) bool { return vec[i] >= id })
	vec = append(vec, 0)
	copy(vec[i+1:], vec[i:])
	vec[i] = id
	return vec
}

func removeSorted(vec []uint32, id uint32) []uint32 {
	i := sort.Search(len(vec), func(i int) bool { return vec[i] >= id })
	if i >= len(vec) || vec[i] != id {
		return vec
	}
	return append(vec[:i], vec[i+1:]...)
}

func setBit(words []uint64, id uint32) {
	words[id/64] |= 1 << (id % 64)
}

func clearBit(words []uint64, id uint32) {
	words[id/64] &^= 1 << (id % 64)
}

func testBit(words []uint64, id uint32) bool {
	return words[id/64]&(1<<(id%64)) != 0
}
