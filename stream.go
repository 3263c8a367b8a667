package subpic

import (
	"github.com/gogpu/subpic/format/bdnxml"
	"github.com/gogpu/subpic/format/bdsup"
	"github.com/gogpu/subpic/format/dvdsup"
	"github.com/gogpu/subpic/format/vobsub"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// Stream is a parsed subtitle stream. The caption images stay in the
// source until they are decoded.
type Stream struct {
	Path   string
	Format Format

	reader picture.Reader
	pics   []*picture.SubPicture
}

// ParseSource detects the container of the file at path and parses its
// captions. Structural errors that stop parsing are returned as
// *picture.ParseError; problems with single captions are logged and the
// captions are skipped.
func ParseSource(path string, opts ...Option) (*Stream, error) {
	s := NewSettings(opts...)
	return parseSource(path, &s)
}

func parseSource(path string, s *Settings) (*Stream, error) {
	f, err := DetectFile(path)
	if err != nil {
		return nil, err
	}
	r, err := openReader(path, f, s, s.Workers > 1)
	if err != nil {
		return nil, err
	}
	st := NewStream(path, f, r)
	s.logger().Info("subpic: parsed stream", "path", path, "format", f, "captions", len(st.pics))
	return st, nil
}

// NewStream wraps a reader that is already open. f is the container of
// the reader.
func NewStream(path string, f Format, r picture.Reader) *Stream {
	return &Stream{Path: path, Format: f, reader: r, pics: r.Pictures()}
}

// Pictures returns the captions in presentation order.
func (st *Stream) Pictures() []*picture.SubPicture {
	return st.pics
}

// Reader returns the format reader of the stream.
func (st *Stream) Reader() picture.Reader {
	return st.reader
}

// Close releases the source of the stream.
func (st *Stream) Close() error {
	return st.reader.Close()
}

// FrameRate returns the frame rate stored in the stream, or a guess from
// the frame height of the first caption.
func (st *Stream) FrameRate() timecode.FrameRate {
	switch r := st.reader.(type) {
	case *bdsup.Reader:
		return r.FrameRate()
	case *bdnxml.Reader:
		return r.FrameRate()
	}
	return DefaultFrameRate(st.FrameSize().Height)
}

// FrameSize returns the video frame size of the first caption, or of the
// stream header if there are no captions.
func (st *Stream) FrameSize() Resolution {
	if len(st.pics) > 0 {
		return Resolution{st.pics[0].Width, st.pics[0].Height}
	}
	switch r := st.reader.(type) {
	case *vobsub.Reader:
		return Resolution{r.Index().Width, r.Index().Height}
	case *dvdsup.Reader:
		if ifo := r.IFO(); ifo != nil {
			return Resolution{ifo.Width, ifo.Height}
		}
	}
	return HD1080
}

// Palette returns the 16 color palette of a DVD stream, or nil for other
// streams.
func (st *Stream) Palette() *palette.Palette {
	switch r := st.reader.(type) {
	case *dvdsup.Reader:
		return r.Palette()
	case *vobsub.Reader:
		return r.Index().Palette
	}
	return nil
}

// sourceFPS returns the frame rate used to convert timestamps.
func (st *Stream) sourceFPS(s *Settings) timecode.FrameRate {
	if s.SourceFPS != 0 {
		return s.SourceFPS
	}
	return st.FrameRate()
}

// target resolves the output format, frame size and frame rate of a
// conversion of st with settings s.
func (st *Stream) target(s *Settings) Target {
	t := Target{Format: s.OutputFormat, Resolution: s.Resolution, FrameRate: s.TargetFPS}
	if t.FrameRate == 0 {
		t.FrameRate = st.sourceFPS(s)
	}
	switch {
	case t.Format == FormatHDSUP:
		t.Resolution = HD1080
	case t.Format.IsDVD():
		if t.Resolution != NTSC && t.Resolution != PAL {
			t.Resolution = DVDResolution(t.FrameRate)
		}
	case t.Resolution.IsZero():
		t.Resolution = st.FrameSize()
	}
	return t
}

// outputPalette returns the 16 color palette of a DVD target.
func (st *Stream) outputPalette(s *Settings) *palette.Palette {
	if s.WritePalette {
		if p := st.Palette(); p != nil && p.Size() == 16 {
			return p
		}
	}
	return s.DVDPalette
}
