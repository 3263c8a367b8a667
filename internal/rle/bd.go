package rle

import "github.com/gogpu/subpic/bitmap"

// maxBDRun is the longest run a single BD code can express.
const maxBDRun = 0x3fff

// DecodeBD decodes a BD (PGS) object of the given size. The fragments are
// read in order as one buffer.
//
// Every line is terminated by 00 00. Lines with fewer pixels are padded with
// index 0; a truncated final line is padded the same way. An object of
// height 0 decodes to an empty bitmap.
func DecodeBD(width, height int, fragments ...[]byte) (*bitmap.Bitmap, Stats, error) {
	bm := bitmap.New(width, height)
	var st Stats
	if width <= 0 || height <= 0 {
		return bm, st, nil
	}

	r := newFragmentReader(fragments)
	w := newLineWriter(bm.Pix(), width, height)
	for !w.done() {
		start := r.off
		b, ok := r.next()
		if !ok {
			st.Truncated = true
			break
		}
		if b != 0 {
			w.put(b, 1)
			continue
		}
		b, ok = r.next()
		if !ok {
			st.Truncated = true
			break
		}
		if b == 0 {
			w.newline()
			continue
		}

		n := int(b & 0x3f)
		if b&0x40 != 0 {
			lo, ok := r.next()
			if !ok {
				st.Truncated = true
				break
			}
			n = n<<8 | int(lo)
		}
		var c byte
		if b&0x80 != 0 {
			c, ok = r.next()
			if !ok {
				st.Truncated = true
				break
			}
		}
		if n == 0 {
			return bm, st, &CorruptError{Offset: start, Reason: "zero length run"}
		}
		w.put(c, n)
	}
	st.Clipped = w.clipped
	return bm, st, nil
}

// EncodeBD encodes a bitmap with the BD alphabet.
// Runs of one or two non-zero pixels are stored as plain bytes, all other
// runs with the shortest escape code.
func EncodeBD(bm *bitmap.Bitmap) []byte {
	out := make([]byte, 0, bm.Width()*bm.Height()/4+2*bm.Height())
	for y := range bm.Height() {
		row := bm.Row(y)
		for x := 0; x < len(row); {
			c := row[x]
			n := 1
			for x+n < len(row) && row[x+n] == c && n < maxBDRun {
				n++
			}
			out = appendBDRun(out, c, n)
			x += n
		}
		out = append(out, 0, 0)
	}
	return out
}

func appendBDRun(out []byte, c uint8, n int) []byte {
	switch {
	case c == 0 && n < 64:
		return append(out, 0, byte(n))
	case c == 0:
		return append(out, 0, 0x40|byte(n>>8), byte(n))
	case n < 3:
		for range n {
			out = append(out, c)
		}
		return out
	case n < 64:
		return append(out, 0, 0x80|byte(n), c)
	default:
		return append(out, 0, 0xc0|byte(n>>8), byte(n), c)
	}
}
