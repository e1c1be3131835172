package historywindow

import (
	"bytes"
	"testing"
)

func writeString(t *testing.T, w *Window, s string) {
	t.Helper()
	for i := 0; i < len(s); i++ {
		if w.WriteAvailable() == 0 {
			t.Fatal("window unexpectedly full")
		}
		w.Write(s[i])
	}
}

func drainAll(w *Window) []byte {
	var out []byte
	for {
		var buf [4096]byte
		n, drained := w.WriteTo(buf[:])
		out = append(out, buf[:n]...)
		if drained {
			return out
		}
	}
}

func TestBackReferenceCopy(t *testing.T) {
	var w Window
	writeString(t, &w, "abc")
	got := w.WriteCopy(3, 3)
	if got != 3 {
		t.Fatalf("WriteCopy returned %d, want 3", got)
	}
	out := drainAll(&w)
	if string(out) != "abcabc" {
		t.Fatalf("got %q, want %q", out, "abcabc")
	}
}

func TestSelfOverlappingCopy(t *testing.T) {
	var w Window
	writeString(t, &w, "a")
	got := w.WriteCopy(1, 10)
	if got != 10 {
		t.Fatalf("WriteCopy returned %d, want 10", got)
	}
	out := drainAll(&w)
	if string(out) != "aaaaaaaaaaa" { // 1 original + 10 copied = 11 a's
		t.Fatalf("got %q, want 11 a's", out)
	}
}

func TestWriteCopySuspendsWhenFull(t *testing.T) {
	var w Window
	writeString(t, &w, "a")
	// Fill the window to within 5 bytes of the end, then ask for a copy
	// longer than the remaining room.
	for w.WriteAvailable() > 5 {
		w.Write('x')
	}
	length := 20
	got := w.WriteCopy(1, length)
	if got != 5 {
		t.Fatalf("WriteCopy should have copied exactly the 5 remaining slots, got %d", got)
	}
	if w.WriteAvailable() != 0 {
		t.Fatalf("window should now be completely full")
	}
}

func TestPartialDrainFreesRoomIncrementally(t *testing.T) {
	var w Window
	// Fill the window completely.
	for w.WriteAvailable() > 0 {
		w.Write('z')
	}
	if w.WriteAvailable() != 0 {
		t.Fatal("window should be full")
	}
	if w.HistorySize() != Size {
		t.Fatalf("HistorySize() = %d, want %d", w.HistorySize(), Size)
	}

	// A ring buffer frees room as soon as any of it drains, not only once
	// the whole window has drained.
	buf := make([]byte, 10)
	n, drained := w.WriteTo(buf)
	if n != 10 || drained {
		t.Fatalf("partial drain: n=%d drained=%v", n, drained)
	}
	if w.WriteAvailable() != 10 {
		t.Fatalf("WriteAvailable() = %d after draining 10 bytes, want 10", w.WriteAvailable())
	}
	w.Write('y')
	if w.WriteAvailable() != 9 {
		t.Fatalf("WriteAvailable() = %d after writing into freed room, want 9", w.WriteAvailable())
	}
}

// TestBackReferenceAcrossPhysicalWrap is a regression test for the window
// actually being circular: it produces several times Size bytes total,
// draining just enough to keep pace, then issues a back-reference at the
// maximum legal distance (Size) long after the physical buffer has wrapped
// many times over, and checks the copied bytes are exactly what was
// written Size bytes ago rather than a slice-bounds panic or garbage.
func TestBackReferenceAcrossPhysicalWrap(t *testing.T) {
	var w Window
	var want, out []byte

	drainSome := func() {
		for w.Pending() > 0 {
			var buf [1024]byte
			n, drained := w.WriteTo(buf[:])
			out = append(out, buf[:n]...)
			if drained {
				return
			}
		}
	}

	write := func(b byte) {
		for w.WriteAvailable() == 0 {
			drainSome()
		}
		w.Write(b)
		want = append(want, b)
	}

	for i := 0; i < Size+5000; i++ {
		write(byte(i))
	}

	const length = 50
	base := len(want)
	remaining := length
	for remaining > 0 {
		for w.WriteAvailable() == 0 {
			drainSome()
		}
		n := w.WriteCopy(Size, remaining)
		if n == 0 {
			t.Fatal("WriteCopy made no progress with room available")
		}
		remaining -= n
	}
	want = append(want, want[base-Size:base-Size+length]...)

	for w.Pending() > 0 {
		var buf [4096]byte
		n, _ := w.WriteTo(buf[:])
		out = append(out, buf[:n]...)
	}

	if !bytes.Equal(out, want) {
		t.Fatalf("output mismatch after back-reference across physical wrap: got %d bytes, want %d", len(out), len(want))
	}
}

func TestHistorySizeMonotoneBeforeWrap(t *testing.T) {
	var w Window
	prev := 0
	for i := 0; i < 100; i++ {
		w.Write(byte(i))
		got := w.HistorySize()
		if got < prev {
			t.Fatalf("HistorySize decreased: %d -> %d", prev, got)
		}
		prev = got
	}
}

func TestWriteFromCapsAtWindowEnd(t *testing.T) {
	var w Window
	for w.WriteAvailable() > 3 {
		w.Write('q')
	}
	src := bytes.Repeat([]byte{'r'}, 10)
	n := w.WriteFrom(src, len(src))
	if n != 3 {
		t.Fatalf("WriteFrom should cap at WriteAvailable(), got %d", n)
	}
}
