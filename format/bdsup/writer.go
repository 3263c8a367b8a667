package bdsup

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/internal/logging"
	"github.com/gogpu/subpic/internal/rle"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// maxObjectData is the largest RLE buffer a single object can declare.
const maxObjectData = 0xffffff - 4

// Writer writes captions as BD SUP display sets. Every caption is written
// as an epoch start display set at its start time followed by an empty
// display set at its end time.
type Writer struct {
	bw     *bufio.Writer
	closer io.Closer
	cfg    format.Config
	log    *slog.Logger
	number int
	last   int64
	buf    []byte
}

// Create creates the SUP file at path.
func Create(path string, opts ...format.Option) (*Writer, error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("bdsup: create: %w", err)
	}
	w := NewWriter(f, opts...)
	w.closer = f
	return w, nil
}

// NewWriter returns a writer emitting to w.
func NewWriter(w io.Writer, opts ...format.Option) *Writer {
	cfg := format.NewConfig(opts...)
	return &Writer{bw: bufio.NewWriter(w), cfg: cfg, log: cfg.Logger, last: -1}
}

// WritePicture writes one caption. pal may hold up to 256 entries and
// bm must fit into the video frame at pic.Image.X, pic.Image.Y.
func (w *Writer) WritePicture(pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette) error {
	if pal.Size() > 256 {
		return fmt.Errorf("bdsup: %w: %d palette entries", picture.ErrCapacity, pal.Size())
	}
	x, y := pic.Image.X, pic.Image.Y
	if x < 0 || y < 0 || x+bm.Width() > pic.Width || y+bm.Height() > pic.Height {
		return fmt.Errorf("bdsup: %w: %dx%d image at %d,%d outside %dx%d frame",
			picture.ErrInvalid, bm.Width(), bm.Height(), x, y, pic.Width, pic.Height)
	}
	data := rle.EncodeBD(bm)
	if len(data) > maxObjectData {
		return fmt.Errorf("bdsup: %w: %d bytes of RLE data", picture.ErrCapacity, len(data))
	}
	if pic.Start < w.last {
		w.log.Warn("bdsup: caption written out of order", "start", timecode.PTSToTimeStr(pic.Start))
	}
	w.last = pic.Start

	win := []window{{ID: 0, X: x, Y: y, Width: bm.Width(), Height: bm.Height()}}
	fps := timecode.BDCode(w.cfg.FrameRate)

	out := w.buf[:0]
	start := pcs{
		Width:     pic.Width,
		Height:    pic.Height,
		FrameRate: fps,
		Number:    w.number,
		State:     StateEpochStart,
		Objects:   []compositionObject{{Forced: pic.Forced, X: x, Y: y}},
	}
	out = appendSegment(out, SegPCS, pic.Start, 0, start.marshal())
	out = appendSegment(out, SegWDS, pic.Start, 0, marshalWDS(win))
	out = appendSegment(out, SegPDS, pic.Start, 0, w.pds(pal))
	out = appendODS(out, pic.Start, bm, data)
	out = appendSegment(out, SegEND, pic.Start, 0, nil)

	end := pcs{
		Width:     pic.Width,
		Height:    pic.Height,
		FrameRate: fps,
		Number:    w.number + 1,
		State:     StateNormal,
	}
	out = appendSegment(out, SegPCS, pic.End, 0, end.marshal())
	out = appendSegment(out, SegWDS, pic.End, 0, marshalWDS(win))
	out = appendSegment(out, SegEND, pic.End, 0, nil)
	w.number += 2
	w.buf = out

	logging.Trace(w.log, "bdsup: wrote caption", "start", timecode.PTSToTimeStr(pic.Start),
		"bytes", len(out), "rle", len(data))
	if _, err := w.bw.Write(out); err != nil {
		return fmt.Errorf("bdsup: write: %w", err)
	}
	return nil
}

// pds builds a palette segment in the configured YCbCr matrix.
func (w *Writer) pds(pal *palette.Palette) []byte {
	if pal.ColorSpace() != w.cfg.ColorSpace {
		pal = pal.Clone()
		pal.SetColorSpace(w.cfg.ColorSpace)
	}
	out := make([]byte, 2, 2+pal.Size()*pdsEntrySize)
	for i := range pal.Size() {
		yy, cb, cr := pal.YCbCr(i)
		out = append(out, byte(i), yy, cr, cb, pal.Alpha(i))
	}
	return out
}

// appendODS splits data into object definition segments.
func appendODS(out []byte, pts int64, bm *bitmap.Bitmap, data []byte) []byte {
	first := true
	for first || len(data) > 0 {
		n := min(len(data), maxFragment)
		var seq uint8
		if first {
			seq |= seqFirst
		}
		if n == len(data) {
			seq |= seqLast
		}
		hdr := []byte{0, 0, 0, seq}
		if first {
			l := len(data) + 4
			hdr = append(hdr, byte(l>>16), byte(l>>8), byte(l),
				byte(bm.Width()>>8), byte(bm.Width()), byte(bm.Height()>>8), byte(bm.Height()))
		}
		out = appendSegment(out, SegODS, pts, 0, append(hdr, data[:n]...))
		data = data[n:]
		first = false
	}
	return out
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
		return fmt.Errorf("bdsup: close: %w", err)
	}
	return nil
}
