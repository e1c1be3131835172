package flate

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/pjflate/internal/huffman"
)

// MarshalBinary encodes the Inflater's complete resumable state: the bit
// accumulator, the literal/length/distance/code-length Huffman tables, the
// 32 KiB history window, and every phase-scratch field needed to resume
// decoding from exactly this point. A restored Inflater behaves identically
// to the one that produced the snapshot, including on the very next call to
// [Inflater.Inflate].
//
// It deliberately omits the borrowed InputSource/OutputSink (never retained
// past a single Inflate call) and the drainBuf/yield scratch fields, which
// are written and read only within a single Inflate call and carry nothing
// meaningful across calls.
func (f *Inflater) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	brBytes, err := f.br.MarshalBinary()
	if err != nil {
		return nil, err
	}
	writeBlock(&buf, brBytes)

	for _, t := range [...]*huffman.Table{&f.litLen, &f.dist, &f.clTable} {
		tb, err := t.MarshalBinary()
		if err != nil {
			return nil, err
		}
		writeBlock(&buf, tb)
	}

	wb, err := f.window.MarshalBinary()
	if err != nil {
		return nil, err
	}
	writeBlock(&buf, wb)

	writeBool(&buf, f.useFixed)
	writeInt64(&buf, int64(f.phase))
	writeBool(&buf, f.finalBlock)
	writeBool(&buf, f.storedHeaderRead)
	writeInt64(&buf, int64(f.storedRemaining))
	writeInt64(&buf, int64(f.pendingLength))
	writeInt64(&buf, int64(f.pendingDistance))
	writeBool(&buf, f.dynCountsRead)
	writeInt64(&buf, int64(f.dynNLit))
	writeInt64(&buf, int64(f.dynNDist))
	writeInt64(&buf, int64(f.dynNCLen))
	for _, v := range f.dynCLBits {
		writeInt64(&buf, int64(v))
	}
	writeInt64(&buf, int64(f.dynCodesRead))
	writeBool(&buf, f.clTableBuilt)
	for _, v := range f.dynLengths {
		writeInt64(&buf, int64(v))
	}
	writeInt64(&buf, int64(f.dynLengthsDecoded))
	writeInt64(&buf, f.offset)

	return buf.Bytes(), nil
}

// UnmarshalBinary restores an Inflater from MarshalBinary's output,
// discarding whatever state the Inflater previously held.
func (f *Inflater) UnmarshalBinary(data []byte) error {
	c := snapshotCursor{b: data}

	brBytes, err := c.readBlock()
	if err != nil {
		return err
	}
	if err := f.br.UnmarshalBinary(brBytes); err != nil {
		return err
	}

	for _, t := range [...]*huffman.Table{&f.litLen, &f.dist, &f.clTable} {
		tb, err := c.readBlock()
		if err != nil {
			return err
		}
		if err := t.UnmarshalBinary(tb); err != nil {
			return err
		}
	}

	wb, err := c.readBlock()
	if err != nil {
		return err
	}
	if err := f.window.UnmarshalBinary(wb); err != nil {
		return err
	}

	if f.useFixed, err = c.readBool(); err != nil {
		return err
	}
	v, err := c.readInt64()
	if err != nil {
		return err
	}
	f.phase = phase(v)
	if f.finalBlock, err = c.readBool(); err != nil {
		return err
	}
	if f.storedHeaderRead, err = c.readBool(); err != nil {
		return err
	}
	if v, err = c.readInt64(); err != nil {
		return err
	}
	f.storedRemaining = int(v)
	if v, err = c.readInt64(); err != nil {
		return err
	}
	f.pendingLength = int(v)
	if v, err = c.readInt64(); err != nil {
		return err
	}
	f.pendingDistance = int(v)
	if f.dynCountsRead, err = c.readBool(); err != nil {
		return err
	}
	if v, err = c.readInt64(); err != nil {
		return err
	}
	f.dynNLit = int(v)
	if v, err = c.readInt64(); err != nil {
		return err
	}
	f.dynNDist = int(v)
	if v, err = c.readInt64(); err != nil {
		return err
	}
	f.dynNCLen = int(v)
	for i := range f.dynCLBits {
		if v, err = c.readInt64(); err != nil {
			return err
		}
		f.dynCLBits[i] = int(v)
	}
	if v, err = c.readInt64(); err != nil {
		return err
	}
	f.dynCodesRead = int(v)
	if f.clTableBuilt, err = c.readBool(); err != nil {
		return err
	}
	for i := range f.dynLengths {
		if v, err = c.readInt64(); err != nil {
			return err
		}
		f.dynLengths[i] = int(v)
	}
	if v, err = c.readInt64(); err != nil {
		return err
	}
	f.dynLengthsDecoded = int(v)
	if f.offset, err = c.readInt64(); err != nil {
		return err
	}

	return nil
}

func writeBlock(buf *bytes.Buffer, b []byte) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(b)))
	buf.Write(tmp[:])
	buf.Write(b)
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

// snapshotCursor reads the sequential fields MarshalBinary wrote, in order.
type snapshotCursor struct {
	b []byte
}

func (c *snapshotCursor) readBlock() ([]byte, error) {
	if len(c.b) < 4 {
		return nil, fmt.Errorf("flate: truncated snapshot")
	}
	n := binary.LittleEndian.Uint32(c.b[:4])
	c.b = c.b[4:]
	if uint32(len(c.b)) < n {
		return nil, fmt.Errorf("flate: truncated snapshot block")
	}
	block := c.b[:n]
	c.b = c.b[n:]
	return block, nil
}

func (c *snapshotCursor) readInt64() (int64, error) {
	if len(c.b) < 8 {
		return 0, fmt.Errorf("flate: truncated snapshot")
	}
	v := int64(binary.LittleEndian.Uint64(c.b[:8]))
	c.b = c.b[8:]
	return v, nil
}

func (c *snapshotCursor) readBool() (bool, error) {
	if len(c.b) < 1 {
		return false, fmt.Errorf("flate: truncated snapshot")
	}
	v := c.b[0] != 0
	c.b = c.b[1:]
	return v, nil
}
