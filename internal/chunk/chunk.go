// Package chunk implements the fixed-capacity shard that the engine's DB
// splits a growing collection into: parallel average-component arrays plus
// a bucket grid, together with the weighted L1 scoring kernel that a query
// runs against one shard.
package chunk

import (
	"fmt"
	"math"
	"sort"

	"iqdb/internal/bucket"
	"iqdb/internal/signature"
)

// Size is the number of images a single chunk can hold. Dense in-chunk ids
// are uint16, so a chunk never needs more than 65536 slots.
const Size = 65536

// magnitudeRange is the per-(color,sign) bucket-grid width, one cell per
// possible coefficient magnitude.
const magnitudeRange = signature.MaxMagnitude

// weights is indexed [band][color] (0=Y, 1=I, 2=Q). Row 0 is the average
// component's own weight; rows 1-5 are the per-coefficient-magnitude bands.
var weights = [6][3]float32{
	{5.00, 19.21, 34.37},
	{0.83, 1.26, 0.36},
	{1.01, 0.44, 0.45},
	{0.52, 0.53, 0.14},
	{0.47, 0.28, 0.18},
	{0.30, 0.14, 0.27},
}

// band maps a coefficient's magnitude to one of the five non-average
// weight rows.
func band(coef int16) int {
	m := int(signature.Magnitude(coef))
	b := m / 128
	if r := m % 128; r > b {
		b = r
	}
	if b > 5 {
		b = 5
	}
	return b
}

// Chunk is one append-only, fixed-capacity shard of the index.
type Chunk struct {
	offset  uint32
	avglY   []float32
	avglI   []float32
	avglQ   []float32
	buckets [3][2][magnitudeRange]bucket.Bucket
}

// New creates an empty chunk whose dense indices start at offset.
func New(offset uint32) *Chunk {
	return &Chunk{
		offset: offset,
		avglY:  make([]float32, 0, Size),
		avglI:  make([]float32, 0, Size),
		avglQ:  make([]float32, 0, Size),
	}
}

// Offset is the dense index of this chunk's first slot.
func (c *Chunk) Offset() uint32 { return c.offset }

// Len is the number of slots appended so far, filled or tombstoned.
func (c *Chunk) Len() int { return len(c.avglY) }

// IsFull reports whether the chunk has no remaining append capacity.
func (c *Chunk) IsFull() bool { return len(c.avglY) == Size }

func (c *Chunk) bucketAt(color int, coef int16) *bucket.Bucket {
	return &c.buckets[color][signature.Sign(coef)][signature.Magnitude(coef)]
}

// Append adds sig at dense index. index must equal offset+Len(); violating
// this is an internal precondition failure, not a recoverable error.
func (c *Chunk) Append(index uint32, sig signature.Signature) {
	want := c.offset + uint32(len(c.avglY))
	if index != want {
		panic(fmt.Sprintf("chunk: out-of-order append: got index %d, want %d", index, want))
	}
	c.avglY = append(c.avglY, float32(sig.Y))
	c.avglI = append(c.avglI, float32(sig.I))
	c.avglQ = append(c.avglQ, float32(sig.Q))
	if signature.IsTombstoneValue(float32(sig.Y)) {
		return
	}
	id := index - c.offset
	for i, coef := range sig.Coef {
		c.bucketAt(i/signature.CoefficientsPerColor, coef).Append(id)
	}
}

// Remove tombstones the slot at index, clearing it from every bucket it
// was registered in. index outside this chunk's current range is a no-op.
func (c *Chunk) Remove(index uint32, sig signature.Signature) {
	if index < c.offset {
		return
	}
	id := index - c.offset
	if id >= uint32(len(c.avglY)) {
		return
	}
	c.avglY[id] = 0
	for i, coef := range sig.Coef {
		c.bucketAt(i/signature.CoefficientsPerColor, coef).Remove(id)
	}
}

// Result is one scored match. Index is the DB-wide dense index: Query has
// already added this chunk's offset to the in-chunk slot number.
type Result struct {
	Score float32
	Index uint32
}

// Query scores every live slot in this chunk against target and returns
// the best-scoring limit results. Scores are rescaled so that 100 means
// identical, and results are ordered descending by that score, ties by
// ascending Index.
func (c *Chunk) Query(target signature.Signature, limit int) []Result {
	if limit <= 0 {
		return nil
	}
	total := len(c.avglY)
	scores := make([]float32, total)

	ty, ti, tq := float32(target.Y), float32(target.I), float32(target.Q)
	for i := 0; i < total; i++ {
		s := weights[0][0] * abs32(c.avglY[i]-ty)
		s += weights[0][1] * abs32(c.avglI[i]-ti)
		s += weights[0][2] * abs32(c.avglQ[i]-tq)
		scores[i] = s
	}

	var scale float32
	for i, coef := range target.Coef {
		color := i / signature.CoefficientsPerColor
		w := weights[band(coef)][color]
		scale -= w
		c.bucketAt(color, coef).Apply(scores, w)
	}

	sorted := make([]Result, limit+1)
	for i := range sorted {
		sorted[i] = Result{Score: math.MaxFloat32, Index: 0}
	}
	for index := 0; index < total; index++ {
		if c.avglY[index] == 0 {
			continue
		}
		score := scores[index]
		if score >= sorted[limit-1].Score {
			continue
		}
		j := sort.Search(len(sorted), func(k int) bool {
			if sorted[k].Score != score {
				return sorted[k].Score > score
			}
			return sorted[k].Index >= uint32(index)
		})
		if j >= limit {
			continue
		}
		sorted = append(sorted, Result{})
		copy(sorted[j+1:], sorted[j:])
		sorted[j] = Result{Score: score, Index: uint32(index)}
		sorted = sorted[:limit]
	}

	out := sorted[:0]
	for _, r := range sorted {
		if r.Index == 0 && r.Score == math.MaxFloat32 {
			continue
		}
		out = append(out, r)
	}

	if scale != 0 {
		scale = 1 / scale
	}
	for i := range out {
		out[i].Score = out[i].Score * 100 * scale
		out[i].Index += c.offset
	}
	return out
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
