// Package flate implements a streaming, pull-mode decoder for the DEFLATE
// compressed data format, RFC 1951. It consumes compressed input in
// arbitrarily sized chunks and produces uncompressed output in arbitrarily
// sized chunks, suspending and resuming cleanly at any byte boundary of
// either stream.
//
// The decoder never owns its I/O: callers supply an InputSource to pull
// compressed bytes from and an OutputSink to push decoded bytes into, and
// call Inflate repeatedly, refilling or draining between calls as the
// three-valued Result directs. Internal state lives entirely on the
// Inflater value, so a call can suspend and resume at any byte boundary
// of either stream, not just at a block boundary.
package flate

import "fmt"

// InputSource is the chunked compressed byte stream Inflate pulls from. A
// single InputSource is borrowed for the duration of one Inflate call and
// must not be shared across concurrent calls.
type InputSource interface {
	// Len reports how many bytes remain without consuming any.
	Len() int
	// ReadByte consumes and returns one byte. Callers of InputSource must
	// not invoke it when Len() == 0; Inflate never does.
	ReadByte() byte
	// ReadBytes bulk-copies up to len(p) bytes into p, consuming them from
	// the source, and returns the number of bytes copied.
	ReadBytes(p []byte) int
}

// OutputSink is the chunked byte sink Inflate pushes decoded bytes into.
type OutputSink interface {
	// Available reports how much space remains.
	Available() int
	// Write appends up to len(p) bytes, already capped to Available(), and
	// returns the number actually appended.
	Write(p []byte) (n int)
}

// Result is the three-valued outcome of a single Inflate call.
type Result int

const (
	// NeedMoreInput means the InputSource was fully consumed before the
	// decoder could make further progress. Refill it and call Inflate
	// again.
	NeedMoreInput Result = iota
	// NeedMoreOutput means the OutputSink's Available() reached zero
	// before the decoder ran out of decoded bytes to deliver. Drain it
	// and call Inflate again.
	NeedMoreOutput
	// Done means the final block has been fully decoded and drained.
	Done
)

func (r Result) String() string {
	switch r {
	case NeedMoreInput:
		return "NeedMoreInput"
	case NeedMoreOutput:
		return "NeedMoreOutput"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// InvalidFormat is the single error kind the decoder raises. It is fatal
// for the Inflater instance that returned it: the caller must discard and
// reconstruct a new Inflater to recover.
type InvalidFormat struct {
	// Offset is the number of compressed input bytes consumed by this
	// Inflater across its lifetime, up to the point the error was
	// detected. It is diagnostic only.
	Offset int64
	Reason string
}

func (e *InvalidFormat) Error() string {
	return fmt.Sprintf("flate: invalid format at input offset %d: %s", e.Offset, e.Reason)
}

func newInvalidFormat(offset int64, reason string) *InvalidFormat {
	return &InvalidFormat{Offset: offset, Reason: reason}
}
