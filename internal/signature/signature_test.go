package signature

import (
	"strings"
	"testing"
)

// knownSignature and knownHash are a fixed known-good pair (the image
// known externally as id 138934); Format and Parse must keep hitting
// these exact bytes.
func knownSignature() Signature {
	var sig Signature
	sig.Y = 0.76577718136597
	sig.I = -0.00011652168713282838
	sig.Q = 0.004947875142783265
	y := []int16{
		-1933, -1920, -1152, -1029, -1026, -782, -773, -768, -522, -387, -384, -258, -140, -133, -131, -128, -28, -26, -14, -13, -7, -3, 1, 2, 5, 10, 12, 130, 138, 141, 256, 259, 386, 512, 770, 1024, 1027, 1280, 1925, 2560,
	}
	iCh := []int16{
		-4864, -2562, -1557, -1550, -1543, -1541, -1536, -1027, -1024, -919, -896, -645, -640, -512, -261, -258, -257, -133, 128, 131, 134, 141, 256, 259, 384, 646, 901, 908, 1026, 1029, 1286, 1290, 1538, 2560, 2563, 2694, 4869, 4876, 5120, 5123,
	}
	q := []int16{
		-5120, -2694, -2563, -2560, -1290, -1286, -1027, -1024, -921, -918, -908, -901, -898, -646, -642, -407, -259, -256, -25, -12, -5, -2, 3, 13, 128, 133, 140, 258, 389, 396, 406, 640, 643, 896, 899, 919, 922, 2562, 2566, 2699,
	}
	copy(sig.Coef[0:40], y)
	copy(sig.Coef[40:80], iCh)
	copy(sig.Coef[80:120], q)
	return sig
}

const knownHash = "iqdb_3fe8813f25bfad46bf1e8ba3578fff323f7444391ec46274f873f880fb80fbfbfbfefcf2fcfbfd00fdf6fe7dfe80fefeff74ff7bff7dff80ffe4ffe6fff2fff3fff9fffd000100020005000a000c0082008a008d0100010301820200030204000403050007850a00ed00f5fef9ebf9f2f9f9f9fbfa00fbfdfc00fc69fc80fd7bfd80fe00fefbfefefeffff7b008000830086008d01000103018002860385038c040204050506050a06020a000a030a861305130c14001403ec00f57af5fdf600faf6fafafbfdfc00fc67fc6afc74fc7bfc7efd7afd7efe69fefdff00ffe7fff4fffbfffe0003000d00800085008c01020185018c019602800283038003830397039a0a020a060a8b"

func TestFormatMatchesKnownHash(t *testing.T) {
	got := knownSignature().Format()
	if got != knownHash {
		t.Fatalf("Format mismatch:\n got %s\nwant %s", got, knownHash)
	}
}

func TestParseRoundTrip(t *testing.T) {
	want := knownSignature()
	got, err := Parse(knownHash)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestParseCaseInsensitive(t *testing.T) {
	upper := strings.ToUpper(knownHash[len(hashPrefix):])
	if _, err := Parse(hashPrefix + upper); err != nil {
		t.Fatalf("Parse uppercase hex: %v", err)
	}
}

func TestParseRejectsBadPrefix(t *testing.T) {
	if _, err := Parse("notiqdb_" + knownHash[len(hashPrefix):]); err == nil {
		t.Fatal("expected error for bad prefix")
	}
}

func TestParseRejectsWrongLength(t *testing.T) {
	if _, err := Parse(knownHash[:len(knownHash)-2]); err == nil {
		t.Fatal("expected error for truncated hash")
	}
}

func TestParseRejectsZeroCoefficient(t *testing.T) {
	sig := knownSignature()
	sig.Coef[0] = 0
	bad := sig.Format()
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected error for zero coefficient")
	}
}

func TestParseNormalizesUnsortedBlocks(t *testing.T) {
	sig := knownSignature()
	// Swap two entries within the Y block out of order, then Format it
	// (Format writes coefficients in the order given, without sorting) to
	// confirm Parse re-sorts rather than trusting the wire order.
	sig.Coef[0], sig.Coef[1] = sig.Coef[1], sig.Coef[0]
	hash := sig.Format()
	parsed, err := Parse(hash)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := knownSignature()
	if parsed != want {
		t.Fatalf("expected normalization to restore sorted order:\n got %+v\nwant %+v", parsed.Coef[:5], want.Coef[:5])
	}
}
