// Package bitreader implements the LSB-first bit accumulator that every
// DEFLATE symbol is pulled from. It is deliberately the smallest possible
// component: an accumulator, a bit count, and a borrowed byte source.
package bitreader

import (
	"encoding/binary"
	"fmt"
)

// Source is the chunked input byte stream a [Reader] borrows bits from. A
// Source is borrowed for the duration of a single decode call and must not
// be shared across concurrent Readers.
type Source interface {
	// Len reports how many bytes remain without consuming any.
	Len() int
	// ReadByte consumes and returns one byte. The caller must not invoke it
	// when Len() == 0.
	ReadByte() byte
	// ReadBytes bulk-copies up to len(p) bytes into p, consuming them from
	// the source, and returns the number of bytes copied.
	ReadBytes(p []byte) int
}

// Reader holds the live bit accumulator plus a borrowed [Source]. Bits are
// packed least-significant-bit first, matching the DEFLATE wire format. The
// low nb bits of b are valid; bits above position nb are always zero (see
// [Reader.Raw]) and carry no input.
//
// The accumulator is 64 bits wide even though DEFLATE never needs more than
// 28 bits at once (a 15-bit Huffman code plus 13 extra distance bits): a
// caller that wants to suspend cleanly mid-symbol must peek that whole
// width before consuming any of it (see [huffman.Table.Lookup]), and Need
// only refills in whole 8-bit steps, so the buffered count can transiently
// overshoot the request by up to 7 bits. A 32-bit accumulator would let
// that overshoot shift a freshly read byte partly out of the register.
type Reader struct {
	b   uint64
	nb  uint
	src Source
}

// SetSource installs the byte source for the next decode call. Idempotent:
// calling it again simply replaces the source.
func (r *Reader) SetSource(src Source) {
	r.src = src
}

// ClearSource drops the borrowed source so it cannot outlive the call that
// installed it.
func (r *Reader) ClearSource() {
	r.src = nil
}

// Source returns the currently installed source, or nil.
func (r *Reader) Source() Source {
	return r.src
}

// Nb reports how many bits are currently buffered in the accumulator.
func (r *Reader) Nb() uint {
	return r.nb
}

// Refill attempts to shift one input byte into the accumulator at bit
// position nb, advancing nb by 8. It returns false without effect when the
// byte source is empty or absent.
func (r *Reader) Refill() bool {
	if r.src == nil || r.src.Len() == 0 {
		return false
	}
	c := r.src.ReadByte()
	r.b |= uint64(c) << r.nb
	r.nb += 8
	return true
}

// Need ensures at least n bits are buffered, refilling in a loop. It returns
// false if the source runs dry first, in which case the caller must treat
// this as NeedMoreInput: every bit already buffered is left untouched.
func (r *Reader) Need(n uint) bool {
	for r.nb < n {
		if !r.Refill() {
			return false
		}
	}
	return true
}

// Peek returns the low n bits of the accumulator without consuming them.
// The caller must have already established Nb() >= n via Need. n must not
// exceed 32.
func (r *Reader) Peek(n uint) uint32 {
	return uint32(r.b & (1<<uint64(n) - 1))
}

// Consume discards the low n bits of the accumulator, which must already
// have been read by the caller (usually via Peek or a HuffmanTable lookup).
func (r *Reader) Consume(n uint) {
	r.b >>= n
	r.nb -= n
}

// Take is Peek followed by Consume, for the common case of reading a small
// fixed-width field in one step.
func (r *Reader) Take(n uint) uint32 {
	v := r.Peek(n)
	r.Consume(n)
	return v
}

// DiscardToByteBoundary zeroes the accumulator, throwing away any partial
// byte. RFC 1951 requires this before a stored block's LEN/NLEN fields.
func (r *Reader) DiscardToByteBoundary() {
	r.b = 0
	r.nb = 0
}

// Raw exposes the low 32 bits of the accumulator, enough for any DEFLATE
// Huffman code (at most 16 bits). Bits above Nb() are guaranteed zero
// (never garbage), which table-driven Huffman decoding relies on to probe a
// fixed-width prefix even when fewer than that many bits are currently
// buffered: the decoded length is then a lower bound on the true code
// length, never a false positive.
func (r *Reader) Raw() uint32 {
	return uint32(r.b)
}

// binarySize is the fixed encoded length of MarshalBinary's output.
const binarySize = 16

// MarshalBinary encodes the accumulator state (b, nb) only; the borrowed
// Source is never part of a Reader's persisted state, since it does not
// outlive a single decode call.
func (r *Reader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, binarySize)
	binary.LittleEndian.PutUint64(buf[0:8], r.b)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(r.nb))
	return buf, nil
}

// UnmarshalBinary restores the accumulator state from MarshalBinary's
// output. The Source is left nil; the caller must SetSource before resuming
// decode calls.
func (r *Reader) UnmarshalBinary(data []byte) error {
	if len(data) != binarySize {
		return fmt.Errorf("bitreader: invalid snapshot length %d, want %d", len(data), binarySize)
	}
	r.b = binary.LittleEndian.Uint64(data[0:8])
	r.nb = uint(binary.LittleEndian.Uint64(data[8:16]))
	r.src = nil
	return nil
}
