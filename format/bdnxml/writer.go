package bdnxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/internal/pngio"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// Writer writes one PNG file per caption and the XML document on Close.
type Writer struct {
	w      io.Writer
	closer io.Closer
	dir    string
	prefix string
	cfg    format.Config
	log    *slog.Logger
	lang   string
	events []event
}

// Create creates the XML file name. Images are written next to it, named
// after the XML file with a running number.
func Create(name string, opts ...format.Option) (*Writer, error) {
	f, err := os.Create(filepath.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("bdnxml: create: %w", err)
	}
	prefix := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	w, err := NewWriter(f, filepath.Dir(name), prefix, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter returns a writer emitting the XML document to w and the images
// to dir. The language set with [format.WithLanguage] must be a valid ISO
// 639 code.
func NewWriter(w io.Writer, dir, prefix string, opts ...format.Option) (*Writer, error) {
	cfg := format.NewConfig(opts...)
	lang, err := format.ISO639_2(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("bdnxml: %w", err)
	}
	return &Writer{w: w, dir: dir, prefix: prefix, cfg: cfg, log: cfg.Logger, lang: lang}, nil
}

// WritePicture writes the image of one caption and records its event.
func (w *Writer) WritePicture(pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette) error {
	if pic.Image.X < 0 || pic.Image.Y < 0 ||
		pic.Image.X+bm.Width() > w.cfg.Width || pic.Image.Y+bm.Height() > w.cfg.Height {
		return fmt.Errorf("bdnxml: %w: %dx%d image at %d,%d outside %dx%d frame", picture.ErrInvalid,
			bm.Width(), bm.Height(), pic.Image.X, pic.Image.Y, w.cfg.Width, w.cfg.Height)
	}
	if pal.Size() > 256 {
		return fmt.Errorf("bdnxml: %w: %d palette entries", picture.ErrCapacity, pal.Size())
	}
	file := fmt.Sprintf("%s_%04d.png", w.prefix, len(w.events)+1)
	if err := pngio.Save(filepath.Join(w.dir, file), bm, pal); err != nil {
		return fmt.Errorf("bdnxml: %w", err)
	}
	w.events = append(w.events, event{
		InTC:   timecode.PTSToTimecode(pic.Start, w.cfg.FrameRate),
		OutTC:  timecode.PTSToTimecode(pic.End, w.cfg.FrameRate),
		Forced: formatBool(pic.Forced),
		Graphics: []graphic{{
			Width: bm.Width(), Height: bm.Height(),
			X: pic.Image.X, Y: pic.Image.Y,
			File: file,
		}},
	})
	return nil
}

func (w *Writer) document() *document {
	fps := w.cfg.FrameRate
	zero := timecode.PTSToTimecode(0, fps)
	doc := &document{
		Version: Version,
		Description: description{
			Name:     nameInfo{Title: w.prefix},
			Language: langInfo{Code: w.lang},
			Format: formatInfo{
				VideoFormat: videoFormat(w.cfg.Height),
				FrameRate:   fps.String(),
				DropFrame:   formatBool(false),
			},
			Events: eventsInfo{
				FirstEventInTC: zero,
				LastEventOutTC: zero,
				ContentInTC:    zero,
				ContentOutTC:   zero,
				NumberofEvents: len(w.events),
				Type:           "Graphic",
			},
		},
		Events: w.events,
	}
	if n := len(w.events); n > 0 {
		info := &doc.Description.Events
		info.FirstEventInTC = w.events[0].InTC
		info.LastEventOutTC = w.events[n-1].OutTC
		info.ContentOutTC = w.events[n-1].OutTC
	}
	return doc
}

// Close writes the XML document and closes the file opened by Create.
func (w *Writer) Close() error {
	out, err := xml.MarshalIndent(w.document(), "", "  ")
	if err == nil {
		_, err = io.WriteString(w.w, xml.Header)
	}
	if err == nil {
		_, err = w.w.Write(append(out, '\n'))
	}
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
		w.closer = nil
	}
	if err != nil {
		return fmt.Errorf("bdnxml: close: %w", err)
	}
	return nil
}
