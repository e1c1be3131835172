package huffman

import (
	"math/bits"
	"testing"

	"github.com/google/pjflate/internal/bitreader"
)

type sliceSource struct{ b []byte }

func (s *sliceSource) Len() int { return len(s.b) }
func (s *sliceSource) ReadByte() byte {
	c := s.b[0]
	s.b = s.b[1:]
	return c
}
func (s *sliceSource) ReadBytes(p []byte) int {
	n := copy(p, s.b)
	s.b = s.b[n:]
	return n
}

var _ bitreader.Source = (*sliceSource)(nil)

func readerOn(bytes ...byte) *bitreader.Reader {
	var r bitreader.Reader
	r.SetSource(&sliceSource{b: bytes})
	return &r
}

func TestInitRejectsIncompleteCode(t *testing.T) {
	var tbl Table
	// Two symbols both at length 2 covers only half the space (0.25+0.25=0.5).
	if tbl.Init([]int{2, 2}) {
		t.Fatal("Init should reject an under-subscribed code")
	}
}

func TestInitRejectsOverSubscribed(t *testing.T) {
	var tbl Table
	// Four 1-bit symbols: sum 2^-1 * 4 = 2, way over budget.
	if tbl.Init([]int{1, 1, 1, 1}) {
		t.Fatal("Init should reject an over-subscribed code")
	}
}

func TestDegenerateOneSymbolCode(t *testing.T) {
	var tbl Table
	if !tbl.Init([]int{0, 1}) { // symbol 1 has the single 1-bit code
		t.Fatal("one-symbol degenerate code must be accepted")
	}
	r := readerOn(0x00) // low bit 0 decodes the only valid code
	val, length, ok, invalid := tbl.Lookup(r)
	if invalid || !ok {
		t.Fatalf("Lookup failed: ok=%v invalid=%v", ok, invalid)
	}
	if val != 1 || length != 1 {
		t.Fatalf("got (%d, %d), want (1, 1)", val, length)
	}
}

func TestCanonicalSmallAlphabet(t *testing.T) {
	// A=2 bits, B=1 bit, C=3 bits, D=3 bits: a complete code
	// (1/4 + 1/2 + 1/8 + 1/8 == 1).
	lengths := []int{2, 1, 3, 3}
	var tbl Table
	if !tbl.Init(lengths) {
		t.Fatal("Init should accept a complete canonical code")
	}

	// Recompute the canonical codes the same way RFC 1951 3.2.2 does, to
	// build reference bitstreams independently of Table's internals.
	var count [maxCodeLen]int
	for _, n := range lengths {
		count[n]++
	}
	var nextCode [maxCodeLen]int
	code := 0
	for i := 1; i < maxCodeLen; i++ {
		code <<= 1
		nextCode[i] = code
		code += count[i]
	}
	wantCode := make([]int, len(lengths))
	for sym, n := range lengths {
		wantCode[sym] = nextCode[n]
		nextCode[n]++
	}

	for sym, n := range lengths {
		reversed := bits.Reverse16(uint16(wantCode[sym])) >> (16 - uint(n))
		r := readerOn(byte(reversed), 0xff)
		val, length, ok, invalid := tbl.Lookup(r)
		if invalid || !ok {
			t.Fatalf("symbol %d: lookup failed ok=%v invalid=%v", sym, ok, invalid)
		}
		if val != sym || int(length) != n {
			t.Fatalf("symbol %d: got (%d, %d), want (%d, %d)", sym, val, length, sym, n)
		}
	}
}

func TestLookupNeedsMoreInput(t *testing.T) {
	var tbl Table
	tbl.Init([]int{0, 1}) // min code length 1
	var r bitreader.Reader
	r.SetSource(&sliceSource{}) // empty source, zero bits buffered
	_, _, ok, invalid := tbl.Lookup(&r)
	if ok || invalid {
		t.Fatalf("expected a clean NeedMoreInput yield, got ok=%v invalid=%v", ok, invalid)
	}
}

func TestLookupOnEmptyTableIsInvalid(t *testing.T) {
	var tbl Table // never Init'd: min stays 0, every chunk is zero
	r := readerOn(0x00)
	_, _, ok, invalid := tbl.Lookup(r)
	_ = ok
	if !invalid {
		t.Fatal("looking up against an empty table must report the empty-slot error")
	}
}

func TestFixedTableKnownCodes(t *testing.T) {
	// RFC 1951 3.2.6: literal 0 is an 8-bit code 00110000 (MSB-first on the
	// wire); literal 256 (end of block) is a 7-bit code 0000000.
	f := Fixed()

	r := readerOn(byte(bits.Reverse16(0x30) >> 8))
	val, length, ok, invalid := f.Lookup(r)
	if invalid || !ok || val != 0 || length != 8 {
		t.Fatalf("literal 0: got (%d,%d,%v,%v), want (0,8,true,false)", val, length, ok, invalid)
	}

	r2 := readerOn(0x00, 0x00)
	val, length, ok, invalid = f.Lookup(r2)
	if invalid || !ok || val != 256 || length != 7 {
		t.Fatalf("end-of-block: got (%d,%d,%v,%v), want (256,7,true,false)", val, length, ok, invalid)
	}
}
