// Package zlib implements the minimal RFC 1950 framing around a DEFLATE
// body: a two-byte header (plus an optional four-byte preset-dictionary
// ID) and a four-byte big-endian Adler-32 trailer. It does not decode the
// DEFLATE body itself (see the flate package) and does not compute or
// verify the Adler-32 checksum: callers that need to verify the trailer
// hold it against their own checksum of the decoded bytes.
package zlib

import "fmt"

// Source is the chunked byte stream a Header or trailer is parsed from.
// Unlike flate.InputSource, Source supports a non-consuming Peek, because
// ParseHeader must be fully atomic: it either has enough bytes to parse
// the whole header (and optional dictionary ID) in one shot, or it
// consumes nothing at all and reports "not enough bytes yet".
type Source interface {
	// Len reports how many bytes remain.
	Len() int
	// Peek returns, without consuming, the next n bytes. The caller must
	// not request more than Len().
	Peek(n int) []byte
	// Advance consumes n bytes already seen via Peek.
	Advance(n int)
}

// Header is the parsed two-byte zlib header, plus the preset-dictionary
// ID when FDICT is set.
type Header struct {
	CompressionMethod int // CM; must be 8 (DEFLATE) for a valid zlib stream
	CompressionInfo   int // CINFO; log2(window size) - 8
	FDICT             bool
	FLevel            int
	DictID            uint32 // only meaningful when FDICT is true
}

// BadHeader reports a structurally invalid zlib header: a failed FCHECK,
// or a compression method other than DEFLATE. It is distinct from
// flate.InvalidFormat, since it is raised by framing, not by the DEFLATE
// body decoder.
type BadHeader struct {
	Reason string
}

func (e *BadHeader) Error() string {
	return fmt.Sprintf("zlib: invalid header: %s", e.Reason)
}

// ParseHeader reads the 2-byte zlib header from src, and the following
// 4-byte big-endian dictionary ID if FDICT is set. It is non-consuming on
// short input: if src does not yet hold enough bytes for the whole
// header, ok is false and nothing is advanced, so the caller can refill
// src and call ParseHeader again.
//
// A nonzero DictID is surfaced rather than rejected: this package does
// not support preset dictionaries, but it is the caller's decision
// whether a nonzero dictionary ID is fatal for their use case.
func ParseHeader(src Source) (hdr Header, ok bool, err error) {
	if src.Len() < 2 {
		return Header{}, false, nil
	}
	b := src.Peek(2)
	cmf, flg := b[0], b[1]

	if (int(cmf)*256+int(flg))%31 != 0 {
		return Header{}, true, &BadHeader{Reason: "FCHECK bits do not make the header a multiple of 31"}
	}

	method := int(cmf & 0x0f)
	if method != 8 {
		return Header{}, true, &BadHeader{Reason: fmt.Sprintf("unsupported compression method %d (only DEFLATE/8 is supported)", method)}
	}

	fdict := flg&0x20 != 0
	need := 2
	if fdict {
		need = 6
	}
	if src.Len() < need {
		return Header{}, false, nil
	}

	hdr = Header{
		CompressionMethod: method,
		CompressionInfo:   int(cmf >> 4),
		FDICT:             fdict,
		FLevel:            int(flg>>6) & 0x3,
	}
	if fdict {
		d := src.Peek(6)[2:6]
		hdr.DictID = uint32(d[0])<<24 | uint32(d[1])<<16 | uint32(d[2])<<8 | uint32(d[3])
	}
	src.Advance(need)
	return hdr, true, nil
}

// ParseTrailer reads the 4-byte big-endian Adler-32 trailer from src. ok
// is false when src does not yet hold 4 bytes, in which case nothing is
// advanced.
func ParseTrailer(src Source) (adler32 uint32, ok bool) {
	if src.Len() < 4 {
		return 0, false
	}
	b := src.Peek(4)
	adler32 = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	src.Advance(4)
	return adler32, true
}
