package rle

// bitReader reads MSB-first bit fields from a byte slice. Reads past the
// end yield zero bits and set eof.
type bitReader struct {
	data []byte
	pos  int // byte position
	cnt  uint8
	eof  bool
}

func (r *bitReader) bit() int {
	if r.cnt == 0 {
		if r.pos >= len(r.data) {
			r.eof = true
			return 0
		}
		r.pos++
		r.cnt = 8
	}
	r.cnt--
	return int(r.data[r.pos-1]>>r.cnt) & 1
}

func (r *bitReader) bits(n int) int {
	v := 0
	for range n {
		v = v<<1 | r.bit()
	}
	return v
}

// align discards the remaining bits of the current byte.
func (r *bitReader) align() {
	r.cnt = 0
}

// offset returns the position of the byte holding the next bit.
func (r *bitReader) offset() int64 {
	if r.cnt == 0 {
		return int64(r.pos)
	}
	return int64(r.pos - 1)
}

// bitWriter appends MSB-first bit fields to a byte slice.
type bitWriter struct {
	buf []byte
	acc byte
	cnt uint8
}

func (w *bitWriter) bits(v, n int) {
	for i := n - 1; i >= 0; i-- {
		w.acc = w.acc<<1 | byte(v>>i)&1
		w.cnt++
		if w.cnt == 8 {
			w.buf = append(w.buf, w.acc)
			w.acc, w.cnt = 0, 0
		}
	}
}

// align pads the current byte with zero bits.
func (w *bitWriter) align() {
	if w.cnt > 0 {
		w.buf = append(w.buf, w.acc<<(8-w.cnt))
		w.acc, w.cnt = 0, 0
	}
}
