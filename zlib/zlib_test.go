package zlib

import "testing"

// sliceSource is a minimal Source over an in-memory byte slice.
type sliceSource struct {
	b   []byte
	off int
}

func (s *sliceSource) Len() int          { return len(s.b) - s.off }
func (s *sliceSource) Peek(n int) []byte { return s.b[s.off : s.off+n] }
func (s *sliceSource) Advance(n int)     { s.off += n }

// validHeader builds a minimal valid zlib header (CM=8, CINFO=7, FLEVEL=0,
// no FDICT) with a correct FCHECK.
func validHeader() []byte {
	cmf := byte(0x78) // CM=8, CINFO=7
	for flg := 0; flg < 256; flg++ {
		if (int(cmf)*256+flg)%31 == 0 && flg&0x20 == 0 {
			return []byte{cmf, byte(flg)}
		}
	}
	panic("no valid FLG found")
}

func TestParseHeaderValid(t *testing.T) {
	b := validHeader()
	src := &sliceSource{b: b}
	hdr, ok, err := ParseHeader(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if hdr.CompressionMethod != 8 {
		t.Fatalf("CM = %d, want 8", hdr.CompressionMethod)
	}
	if hdr.FDICT {
		t.Fatalf("FDICT = true, want false")
	}
	if src.Len() != 0 {
		t.Fatalf("expected header fully consumed, %d bytes left", src.Len())
	}
}

func TestParseHeaderShortInputDoesNotConsume(t *testing.T) {
	b := validHeader()
	src := &sliceSource{b: b[:1]}
	_, ok, err := ParseHeader(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false on a single byte")
	}
	if src.off != 0 {
		t.Fatalf("expected no bytes consumed on short input, off=%d", src.off)
	}
}

func TestParseHeaderBadFCHECK(t *testing.T) {
	src := &sliceSource{b: []byte{0x78, 0x00}}
	_, ok, err := ParseHeader(src)
	if !ok {
		t.Fatalf("expected ok=true (header structurally present) alongside the error")
	}
	if _, isBad := err.(*BadHeader); !isBad {
		t.Fatalf("got err=%v, want *BadHeader", err)
	}
}

func TestParseHeaderWrongCompressionMethod(t *testing.T) {
	// CM=7 (not DEFLATE), CINFO=7 -> cmf = 0x77; find an FLG giving FCHECK.
	cmf := byte(0x77)
	var flg byte
	for f := 0; f < 256; f++ {
		if (int(cmf)*256+f)%31 == 0 {
			flg = byte(f)
			break
		}
	}
	src := &sliceSource{b: []byte{cmf, flg}}
	_, ok, err := ParseHeader(src)
	if !ok {
		t.Fatalf("expected ok=true (FCHECK passed)")
	}
	if _, isBad := err.(*BadHeader); !isBad {
		t.Fatalf("got err=%v, want *BadHeader for unsupported compression method", err)
	}
}

func TestParseHeaderWithDictID(t *testing.T) {
	cmf := byte(0x78)
	var flg byte
	for f := 0; f < 256; f++ {
		if (int(cmf)*256+f)%31 == 0 && f&0x20 != 0 {
			flg = byte(f)
			break
		}
	}
	dictID := []byte{0xde, 0xad, 0xbe, 0xef}
	full := append([]byte{cmf, flg}, dictID...)

	src := &sliceSource{b: full}
	hdr, ok, err := ParseHeader(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if !hdr.FDICT {
		t.Fatalf("expected FDICT=true")
	}
	if hdr.DictID != 0xdeadbeef {
		t.Fatalf("DictID = %#x, want 0xdeadbeef", hdr.DictID)
	}
	if src.Len() != 0 {
		t.Fatalf("expected 6 bytes consumed, %d left", src.Len())
	}
}

func TestParseHeaderDictIDShortInputDoesNotConsume(t *testing.T) {
	cmf := byte(0x78)
	var flg byte
	for f := 0; f < 256; f++ {
		if (int(cmf)*256+f)%31 == 0 && f&0x20 != 0 {
			flg = byte(f)
			break
		}
	}
	// Header present but only 2 of the 4 dictionary-ID bytes have arrived.
	src := &sliceSource{b: []byte{cmf, flg, 0xde, 0xad}}
	_, ok, err := ParseHeader(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false with a partial dictionary ID")
	}
	if src.off != 0 {
		t.Fatalf("expected no bytes consumed, off=%d", src.off)
	}
}

func TestParseTrailer(t *testing.T) {
	src := &sliceSource{b: []byte{0x01, 0x02, 0x03, 0x04}}
	got, ok := ParseTrailer(src)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	want := uint32(0x01020304)
	if got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
	if src.Len() != 0 {
		t.Fatalf("expected trailer fully consumed")
	}
}

func TestParseTrailerShortInput(t *testing.T) {
	src := &sliceSource{b: []byte{0x01, 0x02}}
	_, ok := ParseTrailer(src)
	if ok {
		t.Fatalf("expected ok=false on short input")
	}
	if src.off != 0 {
		t.Fatalf("expected no bytes consumed, off=%d", src.off)
	}
}
