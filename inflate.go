package flate

import (
	"math/bits"

	"github.com/google/pjflate/internal/bitreader"
	"github.com/google/pjflate/internal/historywindow"
	"github.com/google/pjflate/internal/huffman"
)

// phase is the Inflater's current position in the DEFLATE block state
// machine. The zero value, phaseReadBlockHeader, is the initial phase.
type phase int

const (
	phaseReadBlockHeader phase = iota
	phaseStoredBlock
	phaseDynamicHeader
	phaseLenSymbol
	phaseDistSymbol
	phaseCopy
)

// Inflater is the resumable DEFLATE (RFC 1951) decoder. It owns a
// BitReader, two reusable Huffman tables for the literal/length and
// distance alphabets, a scratch table for the code-length meta-alphabet,
// a 32 KiB history window, and the partial-decode scratch state needed to
// suspend and resume at any phase.
//
// The zero value is ready to use. A single Inflater must not be used
// concurrently from more than one goroutine; independent instances are
// independent.
type Inflater struct {
	br bitreader.Reader

	litLen  huffman.Table // literal/length table, valid when !useFixed
	dist    huffman.Table // distance table, valid when !useFixed
	clTable huffman.Table // scratch: code-length meta-alphabet, current block only

	useFixed bool // true: this block uses the shared fixed tables

	window historywindow.Window

	phase      phase
	finalBlock bool

	// PROCESS_STORED_BLOCK scratch.
	storedHeaderRead bool
	storedRemaining  int

	// PROCESS_LEN_SYMBOL / PROCESS_DIST_SYMBOL / PROCESS_COPY scratch.
	pendingLength   int
	pendingDistance int

	// READ_DYNAMIC_HEADER scratch.
	dynCountsRead     bool
	dynNLit           int
	dynNDist          int
	dynNCLen          int
	dynCLBits         [numClCodes]int
	dynCodesRead      int // progress through the HCLEN*3-bit code-length reads
	clTableBuilt      bool
	dynLengths        [maxNumLit + maxNumDist]int
	dynLengthsDecoded int // progress through the combined HLIT+HDIST decode

	drainBuf [4096]byte // reusable scratch for window -> OutputSink transfers

	offset int64 // diagnostic count of compressed bytes consumed so far

	yield Result // Result to report when a phase handler can't proceed
}

// New constructs an Inflater in its initial state.
func New() *Inflater {
	return &Inflater{}
}

// Reset returns the Inflater to its initial state, reusing its buffers
// (the history window and the drain scratch buffer are not reallocated).
func (f *Inflater) Reset() {
	*f = Inflater{}
}

// countingSource wraps the caller's InputSource so the Inflater can track
// how many compressed bytes it has consumed, purely for diagnostics
// attached to InvalidFormat.
type countingSource struct {
	src     InputSource
	counter *int64
}

func (c *countingSource) Len() int { return c.src.Len() }

func (c *countingSource) ReadByte() byte {
	b := c.src.ReadByte()
	*c.counter++
	return b
}

func (c *countingSource) ReadBytes(p []byte) int {
	n := c.src.ReadBytes(p)
	*c.counter += int64(n)
	return n
}

// Inflate decodes as much as it can from src into dst before suspending.
// It installs src as the borrowed byte source for the duration of the
// call and clears it before returning: no reference to src survives the
// call.
func (f *Inflater) Inflate(src InputSource, dst OutputSink) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if inv, ok := r.(*InvalidFormat); ok {
				result, err = 0, inv
				return
			}
			panic(r)
		}
	}()

	cs := countingSource{src: src, counter: &f.offset}
	f.br.SetSource(&cs)
	defer f.br.ClearSource()

	for {
		if f.window.Pending() > 0 {
			if !f.drain(dst) {
				return NeedMoreOutput, nil
			}
		}

		if f.phase == phaseReadBlockHeader && f.finalBlock {
			return Done, nil
		}

		var proceed bool
		switch f.phase {
		case phaseReadBlockHeader:
			proceed = f.readBlockHeader()
		case phaseStoredBlock:
			proceed = f.processStoredBlock()
		case phaseDynamicHeader:
			proceed = f.readDynamicHeader()
		case phaseLenSymbol:
			proceed = f.processLenSymbol()
		case phaseDistSymbol:
			proceed = f.processDistSymbol()
		case phaseCopy:
			proceed = f.processCopy()
		}
		if !proceed {
			// A handler yielding NeedMoreOutput may have just filled the
			// window without draining it (it only checks WriteAvailable,
			// never dst directly). Loop back to the drain at the top of
			// this loop instead of returning straight away, so Inflate
			// only ever reports NeedMoreOutput once dst itself is full.
			if f.yield == NeedMoreOutput {
				continue
			}
			return f.yield, nil
		}
	}
}

// yield is set by a phase handler immediately before it returns false, to
// tell Inflate which Result to report.
//
// It's a field rather than a return value purely so every phase handler
// shares the same `bool` "did I make progress" signature.
func (f *Inflater) setYield(r Result) bool {
	f.yield = r
	return false
}

// drain pushes the window's pending bytes into dst through the reusable
// scratch buffer, stopping when either the window empties or dst fills.
// It returns false (NeedMoreOutput) if dst filled before the window did.
func (f *Inflater) drain(dst OutputSink) bool {
	for f.window.Pending() > 0 {
		avail := dst.Available()
		if avail == 0 {
			return false
		}
		chunk := len(f.drainBuf)
		if chunk > avail {
			chunk = avail
		}
		n, _ := f.window.WriteTo(f.drainBuf[:chunk])
		dst.Write(f.drainBuf[:n])
	}
	return true
}

func (f *Inflater) readBlockHeader() bool {
	if !f.br.Need(3) {
		return f.setYield(NeedMoreInput)
	}
	v := f.br.Take(3)
	f.finalBlock = v&1 == 1
	btype := (v >> 1) & 3
	switch btype {
	case 0:
		f.br.DiscardToByteBoundary()
		f.storedHeaderRead = false
		f.phase = phaseStoredBlock
	case 1:
		f.useFixed = true
		f.phase = phaseLenSymbol
	case 2:
		f.useFixed = false
		f.dynCountsRead = false
		f.clTableBuilt = false
		f.phase = phaseDynamicHeader
	default:
		panic(newInvalidFormat(f.offset, "reserved block type (BTYPE=11)"))
	}
	return true
}

func (f *Inflater) processStoredBlock() bool {
	if !f.storedHeaderRead {
		src := f.br.Source()
		if src.Len() < 4 {
			return f.setYield(NeedMoreInput)
		}
		var hdr [4]byte
		src.ReadBytes(hdr[:])
		length := int(hdr[0]) | int(hdr[1])<<8
		nlength := int(hdr[2]) | int(hdr[3])<<8
		if uint16(nlength) != ^uint16(length) {
			panic(newInvalidFormat(f.offset, "stored block NLEN is not the complement of LEN"))
		}
		f.storedRemaining = length
		f.storedHeaderRead = true
	}

	for f.storedRemaining > 0 {
		avail := f.window.WriteAvailable()
		if avail == 0 {
			return f.setYield(NeedMoreOutput)
		}
		src := f.br.Source()
		if src.Len() == 0 {
			return f.setYield(NeedMoreInput)
		}
		want := f.storedRemaining
		if want > avail {
			want = avail
		}
		dst := f.window.DirectWrite(want)
		n := src.ReadBytes(dst)
		f.window.CommitWrite(n)
		f.storedRemaining -= n
	}

	f.phase = phaseReadBlockHeader
	return true
}

func (f *Inflater) readDynamicHeader() bool {
	if !f.dynCountsRead {
		if !f.br.Need(5 + 5 + 4) {
			return f.setYield(NeedMoreInput)
		}
		nlit := int(f.br.Peek(5)) + 257
		ndist := int(f.br.Peek(10)>>5) + 1
		nclen := int(f.br.Peek(14)>>10) + 4
		if nlit > maxNumLit {
			panic(newInvalidFormat(f.offset, "HLIT exceeds the literal/length alphabet size"))
		}
		if ndist > maxNumDist {
			panic(newInvalidFormat(f.offset, "HDIST exceeds the distance alphabet size"))
		}
		f.br.Consume(5 + 5 + 4)

		f.dynNLit, f.dynNDist, f.dynNCLen = nlit, ndist, nclen
		f.dynCLBits = [numClCodes]int{}
		f.dynCodesRead = 0
		f.dynCountsRead = true
	}

	for f.dynCodesRead < f.dynNCLen {
		if !f.br.Need(3) {
			return f.setYield(NeedMoreInput)
		}
		f.dynCLBits[codeOrder[f.dynCodesRead]] = int(f.br.Take(3))
		f.dynCodesRead++
	}

	if !f.clTableBuilt {
		if !f.clTable.Init(f.dynCLBits[:]) {
			panic(newInvalidFormat(f.offset, "incomplete code-length alphabet"))
		}
		f.clTableBuilt = true
		f.dynLengthsDecoded = 0
	}

	total := f.dynNLit + f.dynNDist
	for f.dynLengthsDecoded < total {
		sym, length, ok, invalid := f.clTable.Lookup(&f.br)
		if invalid {
			panic(newInvalidFormat(f.offset, "empty Huffman slot in code-length alphabet"))
		}
		if !ok {
			return f.setYield(NeedMoreInput)
		}

		if sym < 16 {
			f.br.Consume(length)
			f.dynLengths[f.dynLengthsDecoded] = sym
			f.dynLengthsDecoded++
			continue
		}

		var rep int
		var extraBits uint
		var fill int
		switch sym {
		case 16:
			if f.dynLengthsDecoded == 0 {
				panic(newInvalidFormat(f.offset, "repeat code-length with no previous length"))
			}
			rep, extraBits = 3, 2
			fill = f.dynLengths[f.dynLengthsDecoded-1]
		case 17:
			rep, extraBits = 3, 3
		case 18:
			rep, extraBits = 11, 7
		default:
			panic(newInvalidFormat(f.offset, "invalid code-length symbol"))
		}

		need := length + extraBits
		if !f.br.Need(need) {
			return f.setYield(NeedMoreInput)
		}
		extra := int(f.br.Peek(need) >> length)
		rep += extra
		if f.dynLengthsDecoded+rep > f.dynNLit+f.dynNDist {
			panic(newInvalidFormat(f.offset, "code-length run overflows HLIT+HDIST"))
		}
		f.br.Consume(need)
		for j := 0; j < rep; j++ {
			f.dynLengths[f.dynLengthsDecoded] = fill
			f.dynLengthsDecoded++
		}
	}

	if !f.litLen.Init(f.dynLengths[:f.dynNLit]) || !f.dist.Init(f.dynLengths[f.dynNLit:total]) {
		panic(newInvalidFormat(f.offset, "incomplete literal/length or distance code"))
	}

	f.clTableBuilt = false
	f.phase = phaseLenSymbol
	return true
}

func (f *Inflater) processLenSymbol() bool {
	table := &f.litLen
	if f.useFixed {
		table = huffman.Fixed()
	}

	sym, length, ok, invalid := table.Lookup(&f.br)
	if invalid {
		panic(newInvalidFormat(f.offset, "empty Huffman slot in literal/length alphabet"))
	}
	if !ok {
		return f.setYield(NeedMoreInput)
	}

	switch {
	case sym < 256:
		if f.window.WriteAvailable() == 0 {
			return f.setYield(NeedMoreOutput)
		}
		f.br.Consume(length)
		f.window.Write(byte(sym))
		return true
	case sym == 256:
		f.br.Consume(length)
		f.phase = phaseReadBlockHeader
		return true
	case sym < maxNumLit:
		base, extra := lengthBaseExtra(sym)
		total := length + extra
		if !f.br.Need(total) {
			return f.setYield(NeedMoreInput)
		}
		addend := int(f.br.Peek(total) >> length)
		f.br.Consume(total)
		f.pendingLength = base + addend
		f.phase = phaseDistSymbol
		return true
	default:
		panic(newInvalidFormat(f.offset, "reserved literal/length symbol"))
	}
}

func (f *Inflater) processDistSymbol() bool {
	var code int
	var codeLen uint
	if f.useFixed {
		if !f.br.Need(5) {
			return f.setYield(NeedMoreInput)
		}
		raw := uint8(f.br.Peek(5))
		code = int(bits.Reverse8(raw << 3))
		codeLen = 5
	} else {
		sym, length, ok, invalid := f.dist.Lookup(&f.br)
		if invalid {
			panic(newInvalidFormat(f.offset, "empty Huffman slot in distance alphabet"))
		}
		if !ok {
			return f.setYield(NeedMoreInput)
		}
		code, codeLen = sym, length
	}

	if code >= maxNumDist {
		panic(newInvalidFormat(f.offset, "reserved distance code"))
	}

	base, extra := distBase[code], distExtraBits[code]
	total := codeLen + extra
	if !f.br.Need(total) {
		return f.setYield(NeedMoreInput)
	}
	addend := int(f.br.Peek(total) >> codeLen)
	dist := base + addend
	if dist > f.window.HistorySize() {
		panic(newInvalidFormat(f.offset, "back-reference distance exceeds history size"))
	}
	f.br.Consume(total)
	f.pendingDistance = dist
	f.phase = phaseCopy
	return true
}

func (f *Inflater) processCopy() bool {
	n := f.window.WriteCopy(f.pendingDistance, f.pendingLength)
	f.pendingLength -= n
	if f.pendingLength > 0 {
		return f.setYield(NeedMoreOutput)
	}
	f.phase = phaseLenSymbol
	return true
}
