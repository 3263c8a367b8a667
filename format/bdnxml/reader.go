package bdnxml

import (
	"encoding/xml"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/filter"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/internal/pngio"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// Reader parses a BDN XML file. Images are loaded from the file system
// holding the XML file when a caption is decoded.
type Reader struct {
	fsys     fs.FS
	cfg      format.Config
	log      *slog.Logger
	fps      timecode.FrameRate
	language string
	title    string
	pics     []*picture.SubPicture
}

// Open parses the XML file name.
func Open(name string, opts ...format.Option) (*Reader, error) {
	f, err := os.Open(filepath.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("bdnxml: open: %w", err)
	}
	defer func() { _ = f.Close() }()
	return NewReader(f, os.DirFS(filepath.Dir(name)), opts...)
}

// NewReader parses the XML document read from r. PNG file names are
// resolved in fsys.
func NewReader(r io.Reader, fsys fs.FS, opts ...format.Option) (*Reader, error) {
	cfg := format.NewConfig(opts...)
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &picture.ParseError{Offset: -1, Index: -1, Err: fmt.Errorf("bdnxml: %w", err)}
	}
	rd := &Reader{fsys: fsys, cfg: cfg, log: cfg.Logger, fps: cfg.FrameRate,
		language: doc.Description.Language.Code, title: doc.Description.Name.Title}

	f := doc.Description.Format
	if f.FrameRate != "" {
		fps, err := timecode.ParseFrameRate(f.FrameRate)
		if err != nil {
			return nil, &picture.ParseError{Offset: -1, Index: -1, Err: fmt.Errorf("bdnxml: %w", err)}
		}
		rd.fps = fps
	}
	if parseBool(f.DropFrame) {
		rd.log.Warn("bdnxml: drop frame timecodes are read as non drop frame")
	}
	width, height, ok := frameSize(f.VideoFormat)
	if !ok {
		return nil, &picture.ParseError{Offset: -1, Index: -1,
			Err: fmt.Errorf("bdnxml: %w: video format %q", picture.ErrUnsupported, f.VideoFormat)}
	}

	for i, ev := range doc.Events {
		pic, err := rd.picture(ev, width, height)
		if err != nil {
			rd.log.Warn("bdnxml: skipping event", "index", i, "in", ev.InTC, "err", err)
			continue
		}
		if n := len(rd.pics); n > 0 && pic.Start < rd.pics[n-1].Start {
			rd.log.Warn("bdnxml: events out of order", "in", ev.InTC)
		}
		rd.pics = append(rd.pics, pic)
	}
	return rd, nil
}

func (r *Reader) picture(ev event, width, height int) (*picture.SubPicture, error) {
	start, err := timecode.TimecodeToPTS(ev.InTC, r.fps)
	if err != nil {
		return nil, err
	}
	end, err := timecode.TimecodeToPTS(ev.OutTC, r.fps)
	if err != nil {
		return nil, err
	}
	if len(ev.Graphics) == 0 {
		return nil, fmt.Errorf("event without graphic")
	}
	if len(ev.Graphics) > 1 {
		r.log.Warn("bdnxml: only the first graphic of an event is used", "in", ev.InTC, "graphics", len(ev.Graphics))
	}
	g := ev.Graphics[0]
	img := picture.Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
	pic := &picture.SubPicture{
		Kind:   picture.KindXML,
		Start:  start,
		End:    end,
		Width:  width,
		Height: height,
		Forced: parseBool(ev.Forced),
		Window: img,
		Image:  img,
		XML:    &picture.XMLPayload{File: strings.TrimSpace(g.File)},
	}
	if err := pic.Validate(); err != nil {
		return nil, err
	}
	return pic, nil
}

// Pictures returns the captions in document order.
func (r *Reader) Pictures() []*picture.SubPicture { return r.pics }

// FrameRate returns the frame rate of the timecodes.
func (r *Reader) FrameRate() timecode.FrameRate { return r.fps }

// Language returns the language code of the description, as written.
func (r *Reader) Language() string { return r.language }

// Title returns the title of the description.
func (r *Reader) Title() string { return r.title }

// Close is a no-op; image files are opened only while decoding.
func (r *Reader) Close() error { return nil }

// Decode loads the PNG image of pic.
func (r *Reader) Decode(pic *picture.SubPicture) (*bitmap.Bitmap, *palette.Palette, error) {
	if pic.XML == nil {
		return nil, nil, fmt.Errorf("bdnxml: %w: not a BDN caption", picture.ErrUnsupported)
	}
	f, err := r.fsys.Open(path.Clean(filepath.ToSlash(pic.XML.File)))
	if err != nil {
		return nil, nil, fmt.Errorf("bdnxml: %w", err)
	}
	defer func() { _ = f.Close() }()
	bm, pal, err := pngio.Decode(f, r.cfg.ColorSpace)
	if err != nil {
		return nil, nil, fmt.Errorf("bdnxml: %s: %w", pic.XML.File, err)
	}
	if bm.Width() != pic.Image.Width || bm.Height() != pic.Image.Height {
		r.log.Warn("bdnxml: image size differs from event", "file", pic.XML.File,
			"png", fmt.Sprintf("%dx%d", bm.Width(), bm.Height()),
			"event", fmt.Sprintf("%dx%d", pic.Image.Width, pic.Image.Height))
		bm, pal = scale(bm, pal, pic.Image.Width, pic.Image.Height, r.cfg.Filter)
	}
	pic.WasDecoded = true
	return bm, pal, nil
}

// scale resamples bm to w x h with f and quantizes the result again.
func scale(bm *bitmap.Bitmap, pal *palette.Palette, w, h int, f filter.Filter) (*bitmap.Bitmap, *palette.Palette) {
	if w <= 0 || h <= 0 {
		return bitmap.New(max(w, 0), max(h, 0)), pal
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	filter.ScaleInto(dst, dst.Bounds(), bm.ToNRGBA(pal), f)
	return palette.Quantize(dst, pngio.MaxColors, pal.ColorSpace())
}
