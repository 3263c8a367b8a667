package dvdsup

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
	"github.com/gogpu/subpic/internal/spu"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
)

// Writer writes captions as DVD SUP packets. Images must already be
// reduced to four colors.
type Writer struct {
	bw      *bufio.Writer
	closer  io.Closer
	ifoPath string
	cfg     format.Config
	log     *slog.Logger
}

// Create creates the SUP file at path. With [format.WithIFO] an IFO file
// holding the palette is written next to it on Close.
func Create(path string, opts ...format.Option) (*Writer, error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("dvdsup: create: %w", err)
	}
	w := NewWriter(f, opts...)
	w.closer = f
	if w.cfg.WriteIFO {
		w.ifoPath = ifoPath(path)
	}
	return w, nil
}

// NewWriter returns a writer emitting to w.
func NewWriter(w io.Writer, opts ...format.Option) *Writer {
	cfg := format.NewConfig(opts...)
	return &Writer{bw: bufio.NewWriter(w), cfg: cfg, log: cfg.Logger}
}

func (w *Writer) frameHeight() int {
	if w.cfg.Height == 480 {
		return 480
	}
	return 576
}

// WritePicture writes one caption.
func (w *Writer) WritePicture(pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette) error {
	if pic.Image.X+bm.Width() > 720 || pic.Image.Y+bm.Height() > w.frameHeight() {
		return fmt.Errorf("dvdsup: %w: %dx%d image at %d,%d outside frame", picture.ErrInvalid,
			bm.Width(), bm.Height(), pic.Image.X, pic.Image.Y)
	}
	unit, err := spu.Encode(pic, bm, pal, w.cfg.Palette)
	if err != nil {
		return fmt.Errorf("dvdsup: %w", err)
	}
	var hdr [packetHeader]byte
	hdr[0], hdr[1] = 'S', 'P'
	binary.LittleEndian.PutUint32(hdr[2:], uint32(pic.Start))
	if _, err := w.bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("dvdsup: write: %w", err)
	}
	if _, err := w.bw.Write(unit); err != nil {
		return fmt.Errorf("dvdsup: write: %w", err)
	}
	return nil
}

// Close flushes buffered output, writes the IFO file if requested and
// closes the file opened by Create.
func (w *Writer) Close() error {
	err := w.bw.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	if err == nil && w.ifoPath != "" {
		err = w.writeIFO()
		w.ifoPath = ""
	}
	if err != nil {
		return fmt.Errorf("dvdsup: close: %w", err)
	}
	return nil
}

func (w *Writer) writeIFO() error {
	lang, err := format.ISO639_1(w.cfg.Language)
	if err != nil {
		w.log.Warn("dvdsup: IFO without language", "language", w.cfg.Language, "err", err)
		lang = ""
	}
	ifo := &IFO{Palette: w.cfg.Palette, Width: 720, Height: w.frameHeight(), Language: lang}
	return os.WriteFile(w.ifoPath, MarshalIFO(ifo), 0o644)
}
