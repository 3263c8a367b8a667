package rle

import "github.com/gogpu/subpic/bitmap"

// DecodeDVD decodes a 4 color DVD sub-picture. even and odd hold the RLE
// data of the two fields starting at the field offsets; trailing bytes are
// ignored. Pixel values are 0..3.
func DecodeDVD(width, height int, even, odd []byte) (*bitmap.Bitmap, Stats) {
	bm := bitmap.New(width, height)
	var st Stats
	if width <= 0 || height <= 0 {
		return bm, st
	}
	for field, data := range [2][]byte{even, odd} {
		w := newFieldWriter(bm.Pix(), width, height, field)
		decodeDVDField(w, data, &st)
		st.Clipped += w.clipped
	}
	return bm, st
}

func decodeDVDField(w *lineWriter, data []byte, st *Stats) {
	r := &bitReader{data: data}
	for !w.done() {
		v := r.bits(4)
		if v < 0x4 {
			v = v<<4 | r.bits(4)
			if v < 0x10 {
				v = v<<4 | r.bits(4)
				if v < 0x40 {
					v = v<<4 | r.bits(4)
				}
			}
		}
		if r.eof {
			st.Truncated = true
			return
		}
		n := v >> 2
		if n == 0 {
			n = w.width - w.x
		}
		w.put(uint8(v&3), n)
		if w.x >= w.width {
			r.align()
			w.newline()
		}
	}
}

// EncodeDVD encodes a 4 color bitmap into the even and odd field buffers.
// Only the two low bits of every pixel are stored.
func EncodeDVD(bm *bitmap.Bitmap) (even, odd []byte) {
	var fields [2]bitWriter
	for y := range bm.Height() {
		f := &fields[y&1]
		encodeDVDLine(f, bm.Row(y))
	}
	return fields[0].buf, fields[1].buf
}

func encodeDVDLine(bw *bitWriter, row []uint8) {
	for x := 0; x < len(row); {
		c := int(row[x] & 3)
		n := 1
		for x+n < len(row) && int(row[x+n]&3) == c {
			n++
		}
		x += n
		if x == len(row) && n >= 64 {
			// run to end of line
			bw.bits(c, 16)
			break
		}
		for n > 0 {
			k := min(n, 255)
			v := k<<2 | c
			switch {
			case k < 4:
				bw.bits(v, 4)
			case k < 16:
				bw.bits(v, 8)
			case k < 64:
				bw.bits(v, 12)
			default:
				bw.bits(v, 16)
			}
			n -= k
		}
	}
	bw.align()
}
