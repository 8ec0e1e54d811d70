// Package ingest implements image decoding and Haar-wavelet signature
// computation: turning an arbitrary raster image into the compact
// Signature the search engine indexes and scores.
package ingest

import (
	"container/heap"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"golang.org/x/image/draw"

	"iqdb/internal/signature"
)

// workingSize is the square image size the Haar transform operates on.
const workingSize = 128

// numCoefs is the number of retained coefficients per color channel.
const numCoefs = signature.CoefficientsPerColor

const invSqrt2 = 0.70710678118654752440

// DecodeImage reads an image in any of the registered formats (JPEG, PNG,
// GIF) from r.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: decode image: %w", err)
	}
	return img, nil
}

// ComputeSignature reduces img to its Signature: resize to a 128x128
// working size, convert RGB to YIQ, run a 2D fast Haar-wavelet transform
// per channel, and keep the 40 largest-magnitude coefficients per channel.
func ComputeSignature(img image.Image) signature.Signature {
	r, g, b := sampleChannels(img)
	rgbToYIQ(r, g, b)

	haar2D(r)
	haar2D(g)
	haar2D(b)

	// The transform leaves the DC term (index 0) scaled by the pixel
	// count and the per-stage 1/sqrt(2) normalization; divide it back
	// down to an average-intensity value.
	r[0] /= 256 * 128
	g[0] /= 256 * 128
	b[0] /= 256 * 128

	var sig signature.Signature
	sig.Y, sig.I, sig.Q = r[0], g[0], b[0]

	yCoef := topCoefficients(r)
	iCoef := topCoefficients(g)
	qCoef := topCoefficients(b)
	copy(sig.Coef[0:numCoefs], yCoef[:])
	copy(sig.Coef[numCoefs:2*numCoefs], iCoef[:])
	copy(sig.Coef[2*numCoefs:3*numCoefs], qCoef[:])
	sig.Normalize()
	return sig
}

// sampleChannels resizes src to the working size with a nearest-neighbor
// filter and splits it into three row-major float64 channel arrays.
func sampleChannels(src image.Image) (r, g, b []float64) {
	dst := image.NewRGBA(image.Rect(0, 0, workingSize, workingSize))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	r = make([]float64, workingSize*workingSize)
	g = make([]float64, workingSize*workingSize)
	b = make([]float64, workingSize*workingSize)
	for y := 0; y < workingSize; y++ {
		for x := 0; x < workingSize; x++ {
			idx := x + y*workingSize
			px := dst.RGBAAt(x, y)
			r[idx] = float64(px.R)
			g[idx] = float64(px.G)
			b[idx] = float64(px.B)
		}
	}
	return r, g, b
}

// rgbToYIQ converts three row-major RGB channel arrays to YIQ in place.
func rgbToYIQ(r, g, b []float64) {
	for i := range r {
		y := 0.299*r[i] + 0.587*g[i] + 0.114*b[i]
		iq := 0.596*r[i] - 0.275*g[i] - 0.321*b[i]
		q := 0.212*r[i] - 0.523*g[i] + 0.311*b[i]
		r[i], g[i], b[i] = y, iq, q
	}
}

// haar2D runs the fast in-place Haar-wavelet transform over a as a
// workingSize x workingSize row-major grid: first along every row, then
// along every column. The row and column passes scale their surviving DC
// term at different points in the pyramid (once at the end for rows,
// once per level for columns) — both are kept to match the reference
// engine's coefficient values exactly.
func haar2D(a []float64) {
	temp := make([]float64, workingSize/2)
	for row := 0; row < workingSize; row++ {
		haar1DRow(a, row*workingSize, 1, temp)
	}
	for col := 0; col < workingSize; col++ {
		haar1DCol(a, col, workingSize, temp)
	}
}

// haar1DRow applies the pyramid Haar transform in place to the
// workingSize elements a[base], a[base+stride], ..., scaling the
// remaining DC term once after the full pyramid collapses.
func haar1DRow(a []float64, base, stride int, temp []float64) {
	c := 1.0
	for h := workingSize; h > 1; h >>= 1 {
		h1 := h >> 1
		c *= invSqrt2
		j1, j2 := base, base
		for k := 0; k < h1; k++ {
			j21 := j2 + stride
			temp[k] = (a[j2] - a[j21]) * c
			a[j1] = a[j2] + a[j21]
			j1 += stride
			j2 += 2 * stride
		}
		for k := 0; k < h1; k++ {
			a[base+(h1+k)*stride] = temp[k]
		}
	}
	a[base] *= c
}

// haar1DCol is the column-pass counterpart of haar1DRow: it rescales
// a[base] at every pyramid level rather than once at the end.
func haar1DCol(a []float64, base, stride int, temp []float64) {
	c := 1.0
	for h := workingSize; h > 1; h >>= 1 {
		h1 := h >> 1
		c *= invSqrt2
		j1, j2 := base, base
		for k := 0; k < h1; k++ {
			j21 := j2 + stride
			temp[k] = (a[j2] - a[j21]) * c
			a[j1] = a[j2] + a[j21]
			j1 += stride
			j2 += 2 * stride
		}
		for k := 0; k < h1; k++ {
			a[base+(h1+k)*stride] = temp[k]
		}
		a[base] *= c
	}
}

// coefCandidate pairs a flattened coefficient index with its magnitude
// (absolute value truncated to int16), the key the heap ranks by.
type coefCandidate struct {
	index     int
	magnitude int16
}

type candidateHeap []coefCandidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return h[i].magnitude < h[j].magnitude }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(coefCandidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topCoefficients keeps the numCoefs largest-magnitude entries of data
// (skipping index 0, the average term) via a bounded min-heap, and
// returns their flattened index, signed by the coefficient's sign.
func topCoefficients(data []float64) [numCoefs]int16 {
	h := make(candidateHeap, 0, numCoefs)
	for i := 1; i <= numCoefs; i++ {
		h = append(h, coefCandidate{index: i, magnitude: magnitudeOf(data[i])})
	}
	heap.Init(&h)
	for i := numCoefs + 1; i < len(data); i++ {
		mag := magnitudeOf(data[i])
		if mag > h[0].magnitude {
			heap.Pop(&h)
			heap.Push(&h, coefCandidate{index: i, magnitude: mag})
		}
	}

	var out [numCoefs]int16
	for i := 0; i < numCoefs; i++ {
		c := heap.Pop(&h).(coefCandidate)
		signed := int16(c.index)
		if data[c.index] <= 0 {
			signed = -signed
		}
		out[i] = signed
	}
	return out
}

func magnitudeOf(v float64) int16 {
	return int16(math.Abs(v))
}
