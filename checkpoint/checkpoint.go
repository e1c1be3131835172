// Package checkpoint provides random access over a large DEFLATE- or
// zlib-framed compressed object backed by an io.ReaderAt, by periodically
// snapshotting Inflater state and decoding forward from the nearest
// snapshot at or before a requested offset rather than from the start of
// the stream every time.
//
// This supplements flate.Inflater's strictly sequential pull contract: a
// Store is the thing most real callers actually want when the compressed
// object is a whole file or blob rather than a live stream.
package checkpoint

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
	"golang.org/x/sync/singleflight"

	flate "github.com/google/pjflate"
	"github.com/google/pjflate/zlib"
)

// point is one checkpoint: the decompressed offset it represents, the
// matching compressed byte offset, and the marshaled Inflater state needed
// to resume decoding from there. The very first point (decodedOffset 0) has
// a nil state, meaning "a freshly constructed Inflater".
type point struct {
	decodedOffset    int64
	compressedOffset int64
	state            []byte
}

func (p point) toInflater() (*flate.Inflater, error) {
	inf := flate.New()
	if len(p.state) > 0 {
		if err := inf.UnmarshalBinary(p.state); err != nil {
			return nil, fmt.Errorf("checkpoint: restoring snapshot at offset %d: %w", p.decodedOffset, err)
		}
	}
	return inf, nil
}

// Store is a random-access decompressed view over a compressed io.ReaderAt.
// The zero value is not usable; construct one with Open. A Store is safe
// for concurrent use.
type Store struct {
	src            io.ReaderAt
	compressedBase int64
	stride         int64
	debugName      string

	mu     sync.Mutex
	points []point
	eof    bool

	cache *tinylfu.T[uint64, point]
	db    *pebble.DB
	group singleflight.Group
}

// Open prepares a Store over src. If WithZlibFraming was passed, Open
// parses (and validates) the leading zlib header immediately, so a
// malformed header is reported at construction time rather than on the
// first ReadAt.
func Open(src io.ReaderAt, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	base := int64(0)
	if cfg.zlibFramed {
		b, err := zlibHeaderBase(src)
		if err != nil {
			return nil, err
		}
		base = b
	}

	s := &Store{
		src:            src,
		compressedBase: base,
		stride:         cfg.stride,
		debugName:      cfg.debugName,
		points:         []point{{decodedOffset: 0, compressedOffset: base}},
		db:             cfg.db,
	}
	s.cache = tinylfu.New[uint64, point](cfg.cacheSize, cfg.cacheSize*10, identityHash)
	return s, nil
}

func identityHash(k uint64) uint64 { return k }

// zlibHeaderBase reads just enough of src to parse its zlib header and
// returns the compressed byte offset immediately following it.
func zlibHeaderBase(src io.ReaderAt) (int64, error) {
	buf := make([]byte, 6)
	n, err := src.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return 0, err
	}
	zs := &byteSliceSource{b: buf[:n]}
	_, ok, err := zlib.ParseHeader(zs)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("checkpoint: source too short for a zlib header")
	}
	return int64(zs.off), nil
}

// ReadAt implements io.ReaderAt over the decompressed bytes, decoding
// forward from the checkpoint nearest to, and at or before, off.
func (s *Store) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("checkpoint: negative offset %d", off)
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := s.ensureUpTo(off + int64(len(p))); err != nil {
		return 0, err
	}

	s.mu.Lock()
	points := append([]point(nil), s.points...)
	s.mu.Unlock()

	i := sort.Search(len(points), func(i int) bool {
		return points[i].decodedOffset > off
	}) - 1
	if i < 0 {
		i = 0
	}
	from := points[i]

	inf, err := from.toInflater()
	if err != nil {
		return 0, err
	}
	src := newReaderAtSource(s.src, from.compressedOffset)
	sink := &captureSink{out: p, skip: off - from.decodedOffset}

	for !sink.full() {
		result, err := inf.Inflate(src, sink)
		if err != nil {
			return sink.n, err
		}
		switch result {
		case flate.Done:
			if sink.n == 0 {
				return 0, io.EOF
			}
			return sink.n, io.EOF
		case flate.NeedMoreInput:
			return sink.n, fmt.Errorf("checkpoint: truncated compressed stream at decoded offset %d", off+int64(sink.n))
		}
	}
	return sink.n, nil
}

// builtPoint is the result of decoding forward from one checkpoint to the
// next, returned through the singleflight group so concurrent requests for
// the same checkpoint share one decode.
type builtPoint struct {
	point      point
	reachedEOF bool
}

// ensureUpTo grows the checkpoint ladder, one stride at a time, until it
// covers decoded offset target or the stream is known to have ended.
func (s *Store) ensureUpTo(target int64) error {
	for {
		s.mu.Lock()
		last := s.points[len(s.points)-1]
		done := s.eof
		s.mu.Unlock()

		if done || last.decodedOffset >= target {
			return nil
		}

		next := last.decodedOffset + s.stride

		if cached, ok := s.lookupPoint(next); ok {
			s.appendPoint(cached)
			continue
		}

		key := fmt.Sprintf("%s@%d", s.debugName, next)
		v, err, _ := s.group.Do(key, func() (any, error) {
			return s.buildForward(last, next)
		})
		if err != nil {
			return err
		}
		built := v.(builtPoint)

		if built.point.decodedOffset <= last.decodedOffset {
			s.mu.Lock()
			s.eof = true
			s.mu.Unlock()
			return nil
		}

		s.appendPoint(built.point)
		s.storePoint(built.point)
		if built.reachedEOF {
			s.mu.Lock()
			s.eof = true
			s.mu.Unlock()
		}
	}
}

func (s *Store) appendPoint(p point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.points) > 0 && s.points[len(s.points)-1].decodedOffset >= p.decodedOffset {
		return
	}
	s.points = append(s.points, p)
}

// buildForward decodes from the state captured in from, stopping once
// targetDecoded decompressed bytes have been produced (returning the new
// checkpoint) or the stream ends first (reachedEOF).
func (s *Store) buildForward(from point, targetDecoded int64) (any, error) {
	inf, err := from.toInflater()
	if err != nil {
		return builtPoint{}, err
	}
	src := newReaderAtSource(s.src, from.compressedOffset)
	sink := &discardSink{}

	want := targetDecoded - from.decodedOffset
	for sink.n < want {
		sink.limit = want - sink.n
		result, err := inf.Inflate(src, sink)
		if err != nil {
			return builtPoint{}, err
		}
		if result == flate.Done {
			state, err := inf.MarshalBinary()
			if err != nil {
				return builtPoint{}, err
			}
			return builtPoint{
				point: point{
					decodedOffset:    from.decodedOffset + sink.n,
					compressedOffset: src.consumed(),
					state:            state,
				},
				reachedEOF: true,
			}, nil
		}
		if result == flate.NeedMoreInput {
			return builtPoint{}, fmt.Errorf("checkpoint: truncated compressed stream at decoded offset %d", from.decodedOffset+sink.n)
		}
	}

	state, err := inf.MarshalBinary()
	if err != nil {
		return builtPoint{}, err
	}
	return builtPoint{point: point{
		decodedOffset:    from.decodedOffset + sink.n,
		compressedOffset: src.consumed(),
		state:            state,
	}}, nil
}

func (s *Store) keyFor(decodedOffset int64) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s@%d", s.debugName, decodedOffset))
}

func (s *Store) lookupPoint(decodedOffset int64) (point, bool) {
	key := s.keyFor(decodedOffset)
	if p, ok := s.cache.Get(key); ok {
		return p, true
	}
	if s.db == nil {
		return point{}, false
	}
	val, closer, err := s.db.Get(dbKey(key))
	if err != nil {
		// pebble.ErrNotFound is the expected case on a cold cache; any other
		// error (e.g. a closed or corrupt store) is treated the same way
		// here, since a checkpoint is always reconstructible from an
		// earlier one and losing the persistent copy is never fatal.
		return point{}, false
	}
	defer closer.Close()
	if len(val) < 8 {
		return point{}, false
	}
	p := point{
		decodedOffset:    decodedOffset,
		compressedOffset: int64(binary.LittleEndian.Uint64(val[:8])),
		state:            append([]byte(nil), val[8:]...),
	}
	s.cache.Add(key, p)
	return p, true
}

func (s *Store) storePoint(p point) {
	key := s.keyFor(p.decodedOffset)
	s.cache.Add(key, p)
	if s.db == nil {
		return
	}
	val := make([]byte, 8+len(p.state))
	binary.LittleEndian.PutUint64(val[:8], uint64(p.compressedOffset))
	copy(val[8:], p.state)
	// Checkpoints are reconstructible from any earlier surviving one, so a
	// missed write after a crash just costs a recompute, not correctness;
	// an unsynced write is an acceptable trade for not blocking ReadAt on
	// fsync.
	_ = s.db.Set(dbKey(key), val, pebble.NoSync)
}

func dbKey(k uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], k)
	return b[:]
}
