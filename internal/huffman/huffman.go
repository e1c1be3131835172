// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package huffman builds and decodes canonical Huffman prefix codes for
// DEFLATE, around a two-level lookup table: a 512-entry primary table
// indexed by the next 9 bits of input, plus overflow link tables for codes
// longer than 9 bits. This mirrors the table layout zlib and the Go
// standard library's compress/flate use, described in
// https://github.com/madler/zlib/raw/master/doc/algorithm.txt.
package huffman

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/google/pjflate/internal/bitreader"
)

const (
	maxCodeLen = 16 // one past the longest DEFLATE Huffman code (15 bits)

	primaryBits  = 9
	numPrimary   = 1 << primaryBits
	lengthMask   = 15 // chunk & lengthMask is the code length (0 = empty slot)
	valueShift   = 4  // chunk >> valueShift is the symbol, or link-table index
	linkIndicate = primaryBits + 1
)

// Table is a canonical-Huffman decode table. The zero value is an empty
// table: every lookup against it reports invalid (an empty slot).
type Table struct {
	min      int        // shortest code length present
	chunks   [numPrimary]uint32
	links    [][]uint32
	linkMask uint32
}

// Init builds the table from a slice of code lengths indexed by symbol;
// a length of 0 means the symbol is absent from the alphabet. It returns
// false if the lengths do not form a complete canonical prefix code, with
// the single exception (mirroring real-world zlib streams, not strict RFC
// 1951) of a degenerate one-symbol alphabet coded as a single 1-bit code.
//
// Init may be called repeatedly on the same Table to rebuild it for a new
// block; the previous contents are discarded.
func (t *Table) Init(lengths []int) bool {
	if t.min != 0 {
		*t = Table{}
	}

	var count [maxCodeLen]int
	var min, max int
	for _, n := range lengths {
		if n == 0 {
			continue
		}
		if min == 0 || n < min {
			min = n
		}
		if n > max {
			max = n
		}
		count[n]++
	}

	// An empty tree (every length 0) is permitted at construction time;
	// any attempt to decode with it reports invalid, since t.min stays
	// 0 and every chunk is the zero value.
	if max == 0 {
		return true
	}

	code := 0
	var nextCode [maxCodeLen]int
	for i := min; i <= max; i++ {
		code <<= 1
		nextCode[i] = code
		code += count[i]
	}

	// Completeness check: all 2^max codes at the deepest length must be
	// assigned. The one-symbol-at-one-bit case is the sole exception.
	if code != 1<<uint(max) && !(code == 1 && max == 1) {
		return false
	}

	t.min = min
	if max > primaryBits {
		numLinks := 1 << (uint(max) - primaryBits)
		t.linkMask = uint32(numLinks - 1)

		link := nextCode[primaryBits+1] >> 1
		t.links = make([][]uint32, numPrimary-link)
		for j := uint(link); j < numPrimary; j++ {
			reverse := int(bits.Reverse16(uint16(j)))
			reverse >>= uint(16 - primaryBits)
			off := j - uint(link)
			t.chunks[reverse] = uint32(off<<valueShift | linkIndicate)
			t.links[off] = make([]uint32, numLinks)
		}
	}

	for i, n := range lengths {
		if n == 0 {
			continue
		}
		code := nextCode[n]
		nextCode[n]++
		chunk := uint32(i<<valueShift | n)
		reverse := int(bits.Reverse16(uint16(code)))
		reverse >>= uint(16 - n)
		if n <= primaryBits {
			for off := reverse; off < len(t.chunks); off += 1 << uint(n) {
				t.chunks[off] = chunk
			}
		} else {
			j := reverse & (numPrimary - 1)
			value := t.chunks[j] >> valueShift
			linktab := t.links[value]
			reverse >>= primaryBits
			for off := reverse; off < len(linktab); off += 1 << uint(n-primaryBits) {
				linktab[off] = chunk
			}
		}
	}

	return true
}

// MinCodeLen returns the shortest code length present in the table, used to
// avoid calling Refill more than necessary before a Lookup.
func (t *Table) MinCodeLen() int {
	return t.min
}

// Lookup decodes the next symbol buffered in r without consuming any bits:
// the caller consumes exactly the returned length once it has reacted to
// the symbol, which preserves the ability to suspend mid-symbol. It
// refills r as needed.
//
// ok is false in two distinct cases the caller must distinguish: when r ran
// out of input before enough bits were buffered to resolve a code (a clean
// NeedMoreInput yield), and when the resolved table slot is empty
// (length field zero), which is a fatal format error. invalid reports the
// latter.
func (t *Table) Lookup(r *bitreader.Reader) (value int, length uint, ok bool, invalid bool) {
	n := uint(t.min)
	for {
		if !r.Need(n) {
			return 0, 0, false, false
		}
		chunk := t.chunks[r.Raw()&(numPrimary-1)]
		n = uint(chunk & lengthMask)
		if n > primaryBits {
			chunk = t.links[chunk>>valueShift][(r.Raw()>>primaryBits)&t.linkMask]
			n = uint(chunk & lengthMask)
		}
		if n <= r.Nb() {
			if n == 0 {
				return 0, 0, false, true
			}
			return int(chunk >> valueShift), n, true, false
		}
		// The code is longer than what's buffered so far; loop to fetch
		// more input and re-resolve against the (now larger) n.
	}
}

// fixedTable holds the single process-lifetime Table for the DEFLATE fixed
// literal/length alphabet (RFC 1951 section 3.2.6), built once by init and
// shared by reference across every Inflater since it is immutable after
// construction.
var fixedTable Table

func init() {
	var lengths [288]int
	for i := 0; i < 144; i++ {
		lengths[i] = 8
	}
	for i := 144; i < 256; i++ {
		lengths[i] = 9
	}
	for i := 256; i < 280; i++ {
		lengths[i] = 7
	}
	for i := 280; i < 288; i++ {
		lengths[i] = 8
	}
	fixedTable.Init(lengths[:])
}

// Fixed returns the shared, read-only fixed literal/length table.
func Fixed() *Table {
	return &fixedTable
}

// MarshalBinary encodes the table's full decode state: min, the primary
// chunk array, and every overflow link table. A Table built by Init can be
// restored byte-for-byte from this, independent of the Table that produced
// it.
func (t *Table) MarshalBinary() ([]byte, error) {
	size := 4 + 4 + numPrimary*4 + 4
	for _, link := range t.links {
		size += 4 + len(link)*4
	}
	buf := make([]byte, size)
	off := 0
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], v)
		off += 4
	}
	putU32(uint32(t.min))
	putU32(t.linkMask)
	for _, c := range t.chunks {
		putU32(c)
	}
	putU32(uint32(len(t.links)))
	for _, link := range t.links {
		putU32(uint32(len(link)))
		for _, v := range link {
			putU32(v)
		}
	}
	return buf, nil
}

// UnmarshalBinary restores a Table from MarshalBinary's output, discarding
// whatever state the Table previously held.
func (t *Table) UnmarshalBinary(data []byte) error {
	getU32 := func() (uint32, error) {
		if len(data) < 4 {
			return 0, fmt.Errorf("huffman: truncated table snapshot")
		}
		v := binary.LittleEndian.Uint32(data[:4])
		data = data[4:]
		return v, nil
	}

	min, err := getU32()
	if err != nil {
		return err
	}
	linkMask, err := getU32()
	if err != nil {
		return err
	}
	var chunks [numPrimary]uint32
	for i := range chunks {
		v, err := getU32()
		if err != nil {
			return err
		}
		chunks[i] = v
	}
	numLinks, err := getU32()
	if err != nil {
		return err
	}
	links := make([][]uint32, numLinks)
	for i := range links {
		n, err := getU32()
		if err != nil {
			return err
		}
		link := make([]uint32, n)
		for j := range link {
			v, err := getU32()
			if err != nil {
				return err
			}
			link[j] = v
		}
		links[i] = link
	}

	t.min = int(min)
	t.linkMask = linkMask
	t.chunks = chunks
	t.links = links
	return nil
}
