package subpic

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/filter"
	"github.com/gogpu/subpic/internal/parallel"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// Session runs conversions with one immutable set of [Settings].
//
// DecodeSubPicture and Transform may be called from several goroutines.
// EncodeAndWrite and Convert may not.
type Session struct {
	settings Settings
	log      *slog.Logger

	// written numbers the captions passed to EncodeAndWrite for
	// EncodeError.Index. Convert numbers captions by their position in
	// its own output instead.
	written int
}

// NewSession starts a session. s is copied.
func NewSession(s Settings) *Session {
	if s.Filter == nil {
		s.Filter = filter.Bilinear
	}
	if s.DVDPalette == nil {
		s.DVDPalette = palette.DefaultDVD(s.ColorSpace)
	}
	return &Session{settings: s, log: s.logger()}
}

// Settings returns the settings of the session.
func (s *Session) Settings() Settings {
	return s.settings
}

// Open parses the file at path with the session's settings.
func (s *Session) Open(path string) (*Stream, error) {
	return parseSource(path, &s.settings)
}

// Create creates an output file for a conversion of in.
func (s *Session) Create(path string, in *Stream) (picture.Writer, error) {
	return Create(path, in, s.settings)
}

// Target returns the output format, frame size and frame rate of a
// conversion of st.
func (s *Session) Target(st *Stream) Target {
	return st.target(&s.settings)
}

// DecodeSubPicture decodes the image and palette of pic.
//
// A caption with corrupt image data does not stop a conversion: the problem
// is logged and a transparent bitmap of the caption's size is returned in
// its place. Errors reading the underlying files are returned as
// *picture.DecodeError.
func (s *Session) DecodeSubPicture(st *Stream, pic *picture.SubPicture) (*bitmap.Bitmap, *palette.Palette, error) {
	index := -1
	for i, p := range st.pics {
		if p == pic {
			index = i
			break
		}
	}
	bm, pal, _, err := s.decode(st, index, pic)
	return bm, pal, err
}

// decode is DecodeSubPicture with a known caption index. blank reports
// whether the caption was replaced by a transparent one.
func (s *Session) decode(st *Stream, index int, pic *picture.SubPicture) (bm *bitmap.Bitmap, pal *palette.Palette, blank bool, err error) {
	bm, pal, err = st.reader.Decode(pic)
	if err == nil {
		return bm, pal, false, nil
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return nil, nil, false, &picture.DecodeError{Index: index, Err: err}
	}
	s.log.Warn("subpic: blanking caption with corrupt image", "index", index,
		"start", timecode.PTSToTimeStr(pic.Start), "err", err)
	bm, pal = blankPicture(pic, s.settings.ColorSpace)
	return bm, pal, true, nil
}

// blankPicture returns a transparent image covering pic.Image.
func blankPicture(pic *picture.SubPicture, cs palette.ColorSpace) (*bitmap.Bitmap, *palette.Palette) {
	return bitmap.New(max(pic.Image.Width, 1), max(pic.Image.Height, 1)), palette.New(1, cs)
}

// EncodeAndWrite writes one transformed caption to w.
//
// A palette or image that exceeds the capacity of the target is reduced to
// four colors and written again. Other failures are returned as
// *picture.EncodeError carrying the number of captions written before by
// EncodeAndWrite.
func (s *Session) EncodeAndWrite(w picture.Writer, pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette) error {
	if err := s.encodeAndWrite(w, s.written, pic, bm, pal); err != nil {
		return err
	}
	s.written++
	return nil
}

// encodeAndWrite writes the caption at output position index.
func (s *Session) encodeAndWrite(w picture.Writer, index int, pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette) error {
	err := w.WritePicture(pic, bm, pal)
	if errors.Is(err, picture.ErrCapacity) {
		s.log.Warn("subpic: reducing caption to four colors", "index", index,
			"colors", pal.Size(), "err", err)
		bm, pal = palette.Normalize(bm, pal, s.settings.thresholds())
		err = w.WritePicture(pic, bm, pal)
	}
	if err != nil {
		return &picture.EncodeError{Index: index, Err: err}
	}
	return nil
}

// Report summarizes a conversion.
type Report struct {
	// Read is the number of captions in the source.
	Read int

	// Skipped captions were excluded, not forced in forced-only mode, or
	// moved before zero by a negative delay.
	Skipped int

	// Blanked captions had corrupt image data and were written transparent.
	Blanked int

	// Written is the number of captions written.
	Written int
}

// frame is one caption ready to be written.
type frame struct {
	bm  *bitmap.Bitmap
	pal *palette.Palette
}

// Convert reads every caption of in that goes to the output, transforms it
// to the target of the session and writes it to out. out is not closed.
//
// With more than one worker, captions are decoded and transformed in
// parallel and written in presentation order. When ctx is done, the
// remaining captions are abandoned and the report covers what was written.
func (s *Session) Convert(ctx context.Context, in *Stream, out picture.Writer) (Report, error) {
	target := in.target(&s.settings)
	tp := s.params(target)
	pics := s.settings.selectPictures(in)
	rep := Report{Read: len(in.Pictures())}
	rep.Skipped = rep.Read - len(pics)
	s.log.Info("subpic: converting", "from", in.Format, "to", target.Format,
		"frame", target.Resolution, "fps", target.FrameRate, "captions", len(pics))

	var blanked atomic.Int64
	produce := func(i int) (frame, error) {
		pic := pics[i]
		bm, pal, blank, err := s.decode(in, i, pic)
		if err != nil {
			return frame{}, err
		}
		if blank {
			blanked.Add(1)
		}
		bm, pal = s.Transform(pic, bm, pal, tp)
		return frame{bm, pal}, nil
	}
	consume := func(i int, f frame) error {
		return s.encodeAndWrite(out, i, pics[i], f.bm, f.pal)
	}

	var (
		n   int
		err error
	)
	if s.settings.Workers > 1 {
		pool := parallel.NewWorkerPool(s.settings.Workers)
		defer pool.Close()
		n, err = parallel.Ordered(ctx, pool, len(pics), produce, consume)
	} else {
		n, err = convertSerial(ctx, len(pics), produce, consume)
	}
	rep.Written = n
	rep.Blanked = int(blanked.Load())
	if err != nil {
		s.log.Error("subpic: conversion stopped", "written", n, "err", err)
		return rep, fmt.Errorf("subpic: convert %s: %w", in.Path, err)
	}
	s.log.Info("subpic: conversion done", "written", rep.Written, "skipped", rep.Skipped, "blanked", rep.Blanked)
	return rep, nil
}

func convertSerial(ctx context.Context, n int, produce func(int) (frame, error), consume func(int, frame) error) (int, error) {
	for i := range n {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		f, err := produce(i)
		if err != nil {
			return i, err
		}
		if err := consume(i, f); err != nil {
			return i, err
		}
	}
	return n, nil
}
