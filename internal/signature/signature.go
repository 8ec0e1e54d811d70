// Package signature defines the compact image descriptor that the search
// engine scores against: three average luminance/chrominance components
// plus 120 signed Haar-wavelet coefficient magnitudes, and the hex-encoded
// textual form used to move signatures across the HTTP boundary.
package signature

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
)

// NumCoefficients is the total number of coefficients in a Signature,
// split evenly across three color channels (Y, I, Q).
const NumCoefficients = 120

// CoefficientsPerColor is the number of coefficients belonging to a single
// color channel. Positions [0,40) are Y, [40,80) are I, [80,120) are Q.
const CoefficientsPerColor = NumCoefficients / 3

// MaxMagnitude is the exclusive upper bound on |coefficient|; the bounded
// alphabet that the bucket grid is sized against (see internal/chunk).
const MaxMagnitude = 16384

// ErrInvalidHash is returned by Parse when the input does not decode to a
// well-formed Signature.
var ErrInvalidHash = errors.New("signature: invalid hash")

// Signature is the engine's descriptor for one image.
type Signature struct {
	// Y, I, Q are the average luminance/chrominance components.
	Y, I, Q float64
	// Coef holds 120 signed coefficients, |c| < MaxMagnitude, c != 0,
	// sorted ascending within each 40-value color block.
	Coef [NumCoefficients]int16
}

// Color returns which of the three channels (0=Y, 1=I, 2=Q) the
// coefficient at the given position within Coef belongs to.
func Color(position int) int {
	return position / CoefficientsPerColor
}

// Sign returns 0 for a non-negative coefficient, 1 for negative — the
// sign index used to address the bucket grid.
func Sign(coef int16) int {
	if coef < 0 {
		return 1
	}
	return 0
}

// Magnitude returns |coef| as an unsigned bucket-grid index.
func Magnitude(coef int16) uint16 {
	if coef < 0 {
		return uint16(-int32(coef))
	}
	return uint16(coef)
}

// Normalize re-sorts each 40-value color block ascending in place. Callers
// that assemble a Signature from a source that doesn't already honor the
// per-color ordering convention (e.g. a stored coefficient blob) must call
// this before the signature is indexed or compared.
func (s *Signature) Normalize() {
	s.sortColors()
}

// sortColors re-sorts each 40-value color block ascending, matching the
// convention that avgl/coefficients round-trip through the hex codec.
func (s *Signature) sortColors() {
	for c := 0; c < 3; c++ {
		lo := c * CoefficientsPerColor
		hi := lo + CoefficientsPerColor
		block := s.Coef[lo:hi]
		sort.Slice(block, func(i, j int) bool { return block[i] < block[j] })
	}
}

const hashPrefix = "iqdb_"

// Format encodes the signature as "iqdb_" followed by 528 lowercase hex
// characters (264 bytes): (Y, I, Q) as big-endian IEEE 754 doubles, then 120
// coefficients as big-endian two's-complement int16s.
func (s Signature) Format() string {
	buf := make([]byte, 24+NumCoefficients*2)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(s.Y))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(s.I))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(s.Q))
	for i, c := range s.Coef {
		binary.BigEndian.PutUint16(buf[24+i*2:], uint16(c))
	}
	return hashPrefix + hex.EncodeToString(buf)
}

// Parse decodes the textual form produced by Format. It is case-insensitive
// on the hex portion and validates the prefix, length, and that every
// coefficient is non-zero and within [-32768,32767]\{0} — actually within
// the narrower engine alphabet, |c| < MaxMagnitude; callers whose source
// images legitimately produce out-of-range coefficients should clamp
// upstream, as the core treats the alphabet as a hard invariant.
func Parse(s string) (Signature, error) {
	if len(s) < len(hashPrefix) || !equalFoldASCII(s[:len(hashPrefix)], hashPrefix) {
		return Signature{}, fmt.Errorf("%w: missing iqdb_ prefix", ErrInvalidHash)
	}
	hexPart := s[len(hashPrefix):]
	const wantHexLen = (24 + NumCoefficients*2) * 2
	if len(hexPart) != wantHexLen {
		return Signature{}, fmt.Errorf("%w: expected %d hex chars, got %d", ErrInvalidHash, wantHexLen, len(hexPart))
	}
	buf, err := hex.DecodeString(hexPart)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	var sig Signature
	sig.Y = math.Float64frombits(binary.BigEndian.Uint64(buf[0:8]))
	sig.I = math.Float64frombits(binary.BigEndian.Uint64(buf[8:16]))
	sig.Q = math.Float64frombits(binary.BigEndian.Uint64(buf[16:24]))

	for i := 0; i < NumCoefficients; i++ {
		c := int16(binary.BigEndian.Uint16(buf[24+i*2:]))
		if c == 0 || Magnitude(c) >= MaxMagnitude {
			return Signature{}, fmt.Errorf("%w: coefficient %d out of range: %d", ErrInvalidHash, i, c)
		}
		sig.Coef[i] = c
	}
	sig.sortColors()
	return sig, nil
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// IsTombstoneValue reports whether a Y average marks an already-deleted
// (or never-indexed) slot. Signatures whose true Y is exactly zero are
// treated as tombstoned at insertion time and excluded from the buckets.
func IsTombstoneValue(y float32) bool {
	return y == 0
}
