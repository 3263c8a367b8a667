package vobsub

import (
	"bufio"
	"errors"
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

// Writer writes a single track VobSub pair. The SUB data is streamed; the
// IDX file is written on Close. Images must already be reduced to four
// colors.
type Writer struct {
	sub     *bufio.Writer
	idx     io.Writer
	closers []io.Closer
	cfg     format.Config
	log     *slog.Logger
	index   Index
	pos     int64
}

// Create creates the SUB and IDX files for path, which may carry either
// extension or none.
func Create(path string, opts ...format.Option) (*Writer, error) {
	base := basePath(path)
	sub, err := os.Create(filepath.Clean(base + ".sub"))
	if err != nil {
		return nil, fmt.Errorf("vobsub: create: %w", err)
	}
	idx, err := os.Create(filepath.Clean(base + ".idx"))
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("vobsub: create: %w", err)
	}
	w, err := NewWriter(sub, idx, opts...)
	if err != nil {
		_ = sub.Close()
		_ = idx.Close()
		return nil, err
	}
	w.closers = []io.Closer{sub, idx}
	return w, nil
}

// NewWriter returns a writer emitting the SUB stream to sub and the index
// to idx. The language set with [format.WithLanguage] must be a valid ISO
// 639 code.
func NewWriter(sub, idx io.Writer, opts ...format.Option) (*Writer, error) {
	cfg := format.NewConfig(opts...)
	lang, err := format.ISO639_1(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("vobsub: %w", err)
	}
	w := &Writer{sub: bufio.NewWriter(sub), idx: idx, cfg: cfg, log: cfg.Logger}
	w.index = Index{
		Width:   cfg.Width,
		Height:  cfg.Height,
		Palette: cfg.Palette,
		Streams: []Stream{{Language: lang}},
	}
	return w, nil
}

// WritePicture writes one caption.
func (w *Writer) WritePicture(pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette) error {
	if pic.Image.X+bm.Width() > w.cfg.Width || pic.Image.Y+bm.Height() > w.cfg.Height {
		return fmt.Errorf("vobsub: %w: %dx%d image at %d,%d outside %dx%d frame", picture.ErrInvalid,
			bm.Width(), bm.Height(), pic.Image.X, pic.Image.Y, w.cfg.Width, w.cfg.Height)
	}
	unit, err := spu.Encode(pic, bm, pal, w.cfg.Palette)
	if err != nil {
		return fmt.Errorf("vobsub: %w", err)
	}
	packs := packUnit(unit, pic.Start, substreamBase)
	if _, err := w.sub.Write(packs); err != nil {
		return fmt.Errorf("vobsub: write: %w", err)
	}
	s := &w.index.Streams[0]
	s.Entries = append(s.Entries, Entry{PTS: pic.Start, FilePos: w.pos})
	w.pos += int64(len(packs))
	return nil
}

// Close flushes the SUB stream, writes the index and closes the files
// opened by Create.
func (w *Writer) Close() error {
	err := w.sub.Flush()
	if err == nil {
		_, err = w.index.WriteTo(w.idx)
	}
	for _, c := range w.closers {
		err = errors.Join(err, c.Close())
	}
	w.closers = nil
	if err != nil {
		return fmt.Errorf("vobsub: close: %w", err)
	}
	return nil
}
