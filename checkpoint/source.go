package checkpoint

import "io"

// sourceChunk is how much readerAtSource pulls from the underlying
// io.ReaderAt per refill.
const sourceChunk = 8192

// readerAtSource adapts an io.ReaderAt, read from a fixed starting offset
// forward, into a flate.InputSource. It refills its internal buffer lazily,
// a chunk at a time, and remembers how many bytes it has consumed so the
// caller can capture a resumable compressed-byte offset after decoding.
type readerAtSource struct {
	r    io.ReaderAt
	base int64 // absolute offset in r of buf[0]
	buf  []byte
	off  int
	eof  bool
}

func newReaderAtSource(r io.ReaderAt, pos int64) *readerAtSource {
	return &readerAtSource{r: r, base: pos}
}

func (s *readerAtSource) refill() {
	s.base += int64(s.off)
	buf := make([]byte, sourceChunk)
	n, err := s.r.ReadAt(buf, s.base)
	s.buf = buf[:n]
	s.off = 0
	if err != nil {
		s.eof = true
	}
}

func (s *readerAtSource) Len() int {
	if s.off >= len(s.buf) {
		if s.eof {
			return 0
		}
		s.refill()
	}
	return len(s.buf) - s.off
}

func (s *readerAtSource) ReadByte() byte {
	c := s.buf[s.off]
	s.off++
	return c
}

func (s *readerAtSource) ReadBytes(p []byte) int {
	n := copy(p, s.buf[s.off:])
	s.off += n
	return n
}

// consumed reports the absolute offset in the underlying io.ReaderAt of the
// next byte this source has not yet handed to the decoder.
func (s *readerAtSource) consumed() int64 {
	return s.base + int64(s.off)
}

// byteSliceSource is a small, complete zlib.Source over an in-memory byte
// slice, used only to parse the fixed-size zlib header at Store
// construction time.
type byteSliceSource struct {
	b   []byte
	off int
}

func (s *byteSliceSource) Len() int          { return len(s.b) - s.off }
func (s *byteSliceSource) Peek(n int) []byte { return s.b[s.off : s.off+n] }
func (s *byteSliceSource) Advance(n int)     { s.off += n }
