package rle

import "github.com/gogpu/subpic/bitmap"

// HD-DVD run lengths
const (
	hdShortMin = 2
	hdLongMin  = 9
	hdLongMax  = hdLongMin + 0x7f
)

// DecodeHD decodes an HD-DVD sub-picture with up to 256 colors.
// even and odd hold the RLE data of the two fields.
func DecodeHD(width, height int, even, odd []byte) (*bitmap.Bitmap, Stats) {
	bm := bitmap.New(width, height)
	var st Stats
	if width <= 0 || height <= 0 {
		return bm, st
	}
	for field, data := range [2][]byte{even, odd} {
		w := newFieldWriter(bm.Pix(), width, height, field)
		decodeHDField(w, data, &st)
		st.Clipped += w.clipped
	}
	return bm, st
}

func decodeHDField(w *lineWriter, data []byte, st *Stats) {
	r := &bitReader{data: data}
	for !w.done() {
		run := r.bit() == 1
		var c int
		if r.bit() == 1 {
			c = r.bits(8)
		} else {
			c = r.bits(2)
		}
		n := 1
		if run {
			if r.bit() == 1 {
				n = r.bits(7) + hdLongMin
				if n == hdLongMin {
					n = w.width - w.x
				}
			} else {
				n = r.bits(3) + hdShortMin
			}
		}
		if r.eof {
			st.Truncated = true
			return
		}
		w.put(uint8(c), n)
		if w.x >= w.width {
			r.align()
			w.newline()
		}
	}
}

// EncodeHD encodes a bitmap into HD-DVD even and odd field buffers.
func EncodeHD(bm *bitmap.Bitmap) (even, odd []byte) {
	var fields [2]bitWriter
	for y := range bm.Height() {
		encodeHDLine(&fields[y&1], bm.Row(y))
	}
	return fields[0].buf, fields[1].buf
}

func hdColor(bw *bitWriter, c int) {
	if c < 4 {
		bw.bits(0, 1)
		bw.bits(c, 2)
	} else {
		bw.bits(1, 1)
		bw.bits(c, 8)
	}
}

func encodeHDLine(bw *bitWriter, row []uint8) {
	for x := 0; x < len(row); {
		c := int(row[x])
		n := 1
		for x+n < len(row) && int(row[x+n]) == c {
			n++
		}
		x += n
		if x == len(row) && n > hdLongMin {
			// run to end of line
			bw.bits(1, 1)
			hdColor(bw, c)
			bw.bits(1, 1)
			bw.bits(0, 7)
			break
		}
		for n > 0 {
			k := min(n, hdLongMax)
			switch {
			case k == 1:
				bw.bits(0, 1)
				hdColor(bw, c)
			case k <= hdLongMin:
				bw.bits(1, 1)
				hdColor(bw, c)
				bw.bits(0, 1)
				bw.bits(k-hdShortMin, 3)
			default:
				bw.bits(1, 1)
				hdColor(bw, c)
				bw.bits(1, 1)
				bw.bits(k-hdLongMin, 7)
			}
			n -= k
		}
	}
	bw.align()
}
