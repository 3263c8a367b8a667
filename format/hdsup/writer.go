package hdsup

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/internal/rle"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
)

// Writer writes captions as HD-DVD sub-picture packets.
type Writer struct {
	bw     *bufio.Writer
	closer io.Closer
	cfg    format.Config
	log    *slog.Logger
}

// Create creates the SUP file at path.
func Create(path string, opts ...format.Option) (*Writer, error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("hdsup: create: %w", err)
	}
	w := NewWriter(f, opts...)
	w.closer = f
	return w, nil
}

// NewWriter returns a writer emitting to w.
func NewWriter(w io.Writer, opts ...format.Option) *Writer {
	cfg := format.NewConfig(opts...)
	return &Writer{bw: bufio.NewWriter(w), cfg: cfg, log: cfg.Logger}
}

// WritePicture writes one caption. Alpha values are stored with 4 bits of
// precision.
func (w *Writer) WritePicture(pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette) error {
	if pal.Size() > 256 {
		return fmt.Errorf("hdsup: %w: %d palette entries", picture.ErrCapacity, pal.Size())
	}
	x, y := pic.Image.X, pic.Image.Y
	if bm.Width() == 0 || bm.Height() == 0 || x < 0 || y < 0 ||
		x+bm.Width() > frameWidth || y+bm.Height() > frameHeight {
		return fmt.Errorf("hdsup: %w: %dx%d image at %d,%d", picture.ErrInvalid, bm.Width(), bm.Height(), x, y)
	}
	if pal.ColorSpace() != w.cfg.ColorSpace {
		pal = pal.Clone()
		pal.SetColorSpace(w.cfg.ColorSpace)
	}

	even, odd := rle.EncodeHD(bm)
	ctrl := unitHeader + len(even) + len(odd)
	ctrl += ctrl & 1
	const seq1 = 6 + 1 + 1 + paletteSize + 1 + alphaSize + 1 + 6 + 1 + 8 + 1
	const seq2 = 6 + 1 + 1
	size := ctrl + seq1 + seq2

	out := make([]byte, packetHeader+size)
	out[0], out[1] = 'S', 'P'
	binary.LittleEndian.PutUint32(out[2:], uint32(pic.Start))
	u := out[packetHeader:]
	binary.BigEndian.PutUint32(u[2:], uint32(size))
	binary.BigEndian.PutUint32(u[6:], uint32(ctrl))
	copy(u[unitHeader:], even)
	copy(u[unitHeader+len(even):], odd)

	p := u[ctrl:]
	binary.BigEndian.PutUint32(p[2:], uint32(ctrl+seq1))
	p = p[6:]
	p[0], p[1] = cmdStart, cmdPalette
	p = p[2:]
	for i := range min(pal.Size(), 256) {
		yy, cb, cr := pal.YCbCr(i)
		p[i*3], p[i*3+1], p[i*3+2] = yy, cr, cb
	}
	p = p[paletteSize:]
	p[0] = cmdAlpha
	p = p[1:]
	for i := range pal.Size() {
		a := uint8((int(pal.Alpha(i)) + 8) / 17)
		if i%2 == 0 {
			p[i/2] |= a << 4
		} else {
			p[i/2] |= a
		}
	}
	p = p[alphaSize:]
	x2, y2 := x+bm.Width()-1, y+bm.Height()-1
	p[0] = cmdArea
	p[1], p[2], p[3] = byte(x>>4), byte(x<<4)|byte(x2>>8&0x0f), byte(x2)
	p[4], p[5], p[6] = byte(y>>4), byte(y<<4)|byte(y2>>8&0x0f), byte(y2)
	p[7] = cmdOffsets
	binary.BigEndian.PutUint32(p[8:], uint32(unitHeader))
	binary.BigEndian.PutUint32(p[12:], uint32(unitHeader+len(even)))
	p[16] = cmdEnd

	p = u[ctrl+seq1:]
	stop := min(max((pic.End-pic.Start)/delayTicks, 0), 0xffff)
	binary.BigEndian.PutUint16(p, uint16(stop))
	binary.BigEndian.PutUint32(p[2:], uint32(ctrl+seq1))
	p[6], p[7] = cmdStop, cmdEnd

	if _, err := w.bw.Write(out); err != nil {
		return fmt.Errorf("hdsup: write: %w", err)
	}
	return nil
}

// Close flushes buffered output and closes the file opened by Create.
func (w *Writer) Close() error {
	err := w.bw.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	if err != nil {
		return fmt.Errorf("hdsup: close: %w", err)
	}
	return nil
}
