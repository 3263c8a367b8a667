// Package dvdsup reads and writes DVD sub-picture streams in the SUP
// container used by DVD authoring tools.
//
// Every packet is a 10 byte header, "SP", a little endian 32-bit PTS and
// four reserved bytes, followed by one sub-picture unit. The 16 color
// palette the units index into is not part of the stream; it is taken from
// the companion IFO file when one exists.
package dvdsup

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/internal/logging"
	"github.com/gogpu/subpic/internal/spu"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

const packetHeader = 10

// fallbackDuration is the display time of a last caption without a stop
// command.
const fallbackDuration = 2 * timecode.Clock

// Reader parses a DVD SUP stream.
type Reader struct {
	src     *picture.Source
	cfg     format.Config
	log     *slog.Logger
	palette *palette.Palette
	ifo     *IFO
	pics    []*picture.SubPicture
}

// Open opens and parses the SUP file at path. The palette and frame size
// are read from an IFO file with the same base name if there is one.
func Open(path string, opts ...format.Option) (*Reader, error) {
	cfg := format.NewConfig(opts...)
	var ifo *IFO
	if p, ok := FindIFO(path); ok {
		var err error
		if ifo, err = LoadIFO(p, cfg.ColorSpace); err != nil {
			cfg.Logger.Warn("dvdsup: ignoring IFO file", "path", p, "err", err)
			ifo = nil
		}
	}
	src, err := picture.OpenSource(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(src, cfg, ifo)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return r, nil
}

// NewReader parses the stream held by src and takes ownership of it.
// ifo may be nil, in which case the palette of the options is used.
func NewReader(src *picture.Source, ifo *IFO, opts ...format.Option) (*Reader, error) {
	return newReader(src, format.NewConfig(opts...), ifo)
}

func newReader(src *picture.Source, cfg format.Config, ifo *IFO) (*Reader, error) {
	r := &Reader{src: src, cfg: cfg, log: cfg.Logger, palette: cfg.Palette, ifo: ifo}
	if ifo != nil {
		r.palette = ifo.Palette
	}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return r, nil
}

// Pictures returns the captions in presentation order.
func (r *Reader) Pictures() []*picture.SubPicture { return r.pics }

// Palette returns the 16 color palette the captions index into.
func (r *Reader) Palette() *palette.Palette { return r.palette }

// IFO returns the companion IFO file, or nil.
func (r *Reader) IFO() *IFO { return r.ifo }

// Close closes the underlying source.
func (r *Reader) Close() error { return r.src.Close() }

// frameSize returns the video frame size: from the IFO if present,
// otherwise PAL unless NTSC was configured.
func (r *Reader) frameSize() (int, int) {
	if r.ifo != nil {
		return r.ifo.Width, r.ifo.Height
	}
	if r.cfg.Height == 480 {
		return 720, 480
	}
	return 720, 576
}

func (r *Reader) parse() error {
	size := r.src.Size()
	width, height := r.frameSize()
	var hdr [packetHeader + spu.HeaderSize]byte
	for off := int64(0); off < size; {
		if off+int64(len(hdr)) > size {
			r.log.Warn("dvdsup: truncated packet header", "offset", off)
			break
		}
		if _, err := r.src.ReadAt(hdr[:], off); err != nil {
			return &picture.ParseError{Offset: off, Index: len(r.pics), Err: err}
		}
		if hdr[0] != 'S' || hdr[1] != 'P' {
			return &picture.ParseError{Offset: off, Index: len(r.pics),
				Err: fmt.Errorf("dvdsup: missing SP marker, found % x", hdr[:2])}
		}
		pts := int64(binary.LittleEndian.Uint32(hdr[2:]))
		unitOff := off + packetHeader
		unitSize := int64(binary.BigEndian.Uint16(hdr[packetHeader:]))
		if unitSize < spu.HeaderSize || unitOff+unitSize > size {
			r.log.Warn("dvdsup: unit exceeds stream", "offset", off, "size", unitSize)
			break
		}
		logging.Trace(r.log, "dvdsup: packet", "offset", off, "pts", timecode.PTSToTimeStr(pts), "size", unitSize)
		off = unitOff + unitSize

		buf, err := r.src.Bytes(unitOff, unitSize)
		if err != nil {
			return &picture.ParseError{Offset: unitOff, Index: len(r.pics), Err: err}
		}
		u, err := spu.Parse(buf)
		if err != nil {
			r.log.Warn("dvdsup: skipping unit", "offset", unitOff, "err", err)
			continue
		}
		pic := u.Picture(picture.KindDVD, pts)
		pic.Width, pic.Height = width, height
		pic.Objects = []picture.ImageObject{{
			BufferSize: unitSize,
			Width:      pic.Image.Width,
			Height:     pic.Image.Height,
			X:          pic.Image.X,
			Y:          pic.Image.Y,
			Fragments:  []picture.Fragment{{Offset: unitOff, Size: unitSize}},
		}}
		r.pics = appendPicture(r.log, r.pics, pic)
	}
	closeLast(r.log, r.pics)
	return nil
}

// appendPicture adds pic, closing the previous caption if it had no stop
// time. Invalid captions are dropped.
func appendPicture(log *slog.Logger, pics []*picture.SubPicture, pic *picture.SubPicture) []*picture.SubPicture {
	if n := len(pics); n > 0 {
		prev := pics[n-1]
		if pic.Start < prev.Start {
			log.Warn("dvdsup: captions out of order", "start", timecode.PTSToTimeStr(pic.Start))
		} else if prev.End == prev.Start {
			prev.End = pic.Start
		}
	}
	if err := pic.Validate(); err != nil {
		log.Warn("dvdsup: dropping caption", "start", timecode.PTSToTimeStr(pic.Start), "err", err)
		return pics
	}
	return append(pics, pic)
}

func closeLast(log *slog.Logger, pics []*picture.SubPicture) {
	if n := len(pics); n > 0 && pics[n-1].End == pics[n-1].Start {
		last := pics[n-1]
		last.End = last.Start + fallbackDuration
		log.Warn("dvdsup: last caption has no end time", "start", timecode.PTSToTimeStr(last.Start))
	}
}

// Decode reads and decodes the image of pic. The palette has four entries.
func (r *Reader) Decode(pic *picture.SubPicture) (*bitmap.Bitmap, *palette.Palette, error) {
	if pic.SPU == nil || len(pic.Objects) != 1 {
		return nil, nil, fmt.Errorf("dvdsup: %w: not a DVD caption", picture.ErrUnsupported)
	}
	frags, err := r.src.ReadFragments(pic.Objects[0].Fragments)
	if err != nil {
		return nil, nil, fmt.Errorf("dvdsup: %w", err)
	}
	bm, pal, st, err := spu.Decode(frags[0], r.palette)
	if err != nil {
		return nil, nil, fmt.Errorf("dvdsup: %w", err)
	}
	if st.Clipped > 0 || st.Truncated {
		r.log.Warn("dvdsup: irregular RLE data", "start", timecode.PTSToTimeStr(pic.Start),
			"clipped", st.Clipped, "truncated", st.Truncated)
	}
	pic.WasDecoded = true
	return bm, pal, nil
}
