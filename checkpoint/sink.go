package checkpoint

// discardSink is a flate.OutputSink that throws away every byte it's given,
// used while fast-forwarding to the next checkpoint: only the Inflater's
// resulting state matters, not the bytes produced along the way. limit
// bounds Available() so Inflate stops with NeedMoreOutput exactly at a
// checkpoint's decoded-byte boundary, rather than running to the next
// natural block boundary or end of stream.
type discardSink struct {
	n     int64
	limit int64
}

func (d *discardSink) Available() int {
	if d.limit <= 0 {
		return 0
	}
	if d.limit > 1<<30 {
		return 1 << 30
	}
	return int(d.limit)
}

func (d *discardSink) Write(p []byte) int {
	n := len(p)
	d.n += int64(n)
	d.limit -= int64(n)
	return n
}

// captureSink is a flate.OutputSink that discards the first skip decoded
// bytes (the distance from the nearest checkpoint back to the caller's
// requested offset) and then fills out.
type captureSink struct {
	out  []byte
	skip int64
	n    int
}

func (c *captureSink) full() bool {
	return c.n >= len(c.out)
}

func (c *captureSink) Available() int {
	room := len(c.out) - c.n
	if c.skip <= 0 {
		return room
	}
	if c.skip > 1<<30 {
		return 1 << 30
	}
	return int(c.skip) + room
}

func (c *captureSink) Write(p []byte) int {
	total := 0
	if c.skip > 0 {
		d := int64(len(p))
		if d > c.skip {
			d = c.skip
		}
		p = p[d:]
		c.skip -= d
		total += int(d)
	}
	n := copy(c.out[c.n:], p)
	c.n += n
	total += n
	return total
}
