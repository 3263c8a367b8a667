package hdsup

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/internal/logging"
	"github.com/gogpu/subpic/internal/rle"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// fallbackDuration is the display time of a last caption without a stop
// command.
const fallbackDuration = 2 * timecode.Clock

// HD-DVD video is always 1920x1080.
const (
	frameWidth  = 1920
	frameHeight = 1080
)

// Reader parses an HD-DVD SUP stream.
type Reader struct {
	src  *picture.Source
	cfg  format.Config
	log  *slog.Logger
	pics []*picture.SubPicture
}

// Open opens and parses the SUP file at path.
func Open(path string, opts ...format.Option) (*Reader, error) {
	src, err := picture.OpenSource(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(src, opts...)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return r, nil
}

// NewReader parses the stream held by src and takes ownership of it.
func NewReader(src *picture.Source, opts ...format.Option) (*Reader, error) {
	cfg := format.NewConfig(opts...)
	r := &Reader{src: src, cfg: cfg, log: cfg.Logger}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return r, nil
}

// Pictures returns the captions in presentation order.
func (r *Reader) Pictures() []*picture.SubPicture { return r.pics }

// Close closes the underlying source.
func (r *Reader) Close() error { return r.src.Close() }

func (r *Reader) parse() error {
	size := r.src.Size()
	var hdr [packetHeader + unitHeader]byte
	for off := int64(0); off < size; {
		if off+int64(len(hdr)) > size {
			r.log.Warn("hdsup: truncated packet header", "offset", off)
			break
		}
		if _, err := r.src.ReadAt(hdr[:], off); err != nil {
			return &picture.ParseError{Offset: off, Index: len(r.pics), Err: err}
		}
		if hdr[0] != 'S' || hdr[1] != 'P' {
			return &picture.ParseError{Offset: off, Index: len(r.pics),
				Err: fmt.Errorf("hdsup: missing SP marker, found % x", hdr[:2])}
		}
		pts := int64(binary.LittleEndian.Uint32(hdr[2:]))
		unitOff := off + packetHeader
		unitSize := int64(binary.BigEndian.Uint32(hdr[packetHeader+2:]))
		ctrl := int(binary.BigEndian.Uint32(hdr[packetHeader+6:]))
		if unitSize < unitHeader || unitOff+unitSize > size {
			r.log.Warn("hdsup: unit exceeds stream", "offset", off, "size", unitSize)
			break
		}
		logging.Trace(r.log, "hdsup: packet", "offset", off, "pts", timecode.PTSToTimeStr(pts), "size", unitSize)
		next := unitOff + unitSize

		if ctrl < unitHeader || int64(ctrl) >= unitSize {
			r.log.Warn("hdsup: skipping unit with bad control offset", "offset", off, "control", ctrl)
			off = next
			continue
		}
		unit, err := r.src.Bytes(unitOff, unitSize)
		if err != nil {
			return &picture.ParseError{Offset: unitOff, Index: len(r.pics), Err: err}
		}
		c, err := parseControl(unit, ctrl)
		if err != nil {
			r.log.Warn("hdsup: skipping unit", "offset", off, "err", err)
			off = next
			continue
		}
		r.add(pts, unitOff, ctrl, c)
		off = next
	}
	if n := len(r.pics); n > 0 && r.pics[n-1].End == r.pics[n-1].Start {
		last := r.pics[n-1]
		last.End = last.Start + fallbackDuration
		r.log.Warn("hdsup: last caption has no end time", "start", timecode.PTSToTimeStr(last.Start))
	}
	return nil
}

func (r *Reader) add(pts, unitOff int64, ctrl int, c control) {
	img := picture.Rect{X: c.x1, Y: c.y1, Width: max(c.x2-c.x1+1, 0), Height: max(c.y2-c.y1+1, 0)}
	pic := &picture.SubPicture{
		Kind:   picture.KindHD,
		Start:  pts + c.startDelay,
		End:    pts + c.stopDelay,
		Width:  frameWidth,
		Height: frameHeight,
		Window: img,
		Image:  img,
		SPU: &picture.SPUPayload{
			Even:          picture.Fragment{Offset: unitOff + int64(c.even), Size: int64(c.fieldEnd(c.even, ctrl) - c.even)},
			Odd:           picture.Fragment{Offset: unitOff + int64(c.odd), Size: int64(c.fieldEnd(c.odd, ctrl) - c.odd)},
			ControlOffset: unitOff + int64(ctrl),
		},
	}
	if c.palette > 0 {
		pic.SPU.PaletteOffset = unitOff + int64(c.palette)
	}
	if c.alpha > 0 {
		pic.SPU.AlphaOffset = unitOff + int64(c.alpha)
	}
	if !c.hasStop || c.stopDelay <= c.startDelay {
		pic.End = pic.Start
	}
	if n := len(r.pics); n > 0 {
		prev := r.pics[n-1]
		if pic.Start < prev.Start {
			r.log.Warn("hdsup: captions out of order", "start", timecode.PTSToTimeStr(pic.Start))
		} else if prev.End == prev.Start {
			prev.End = pic.Start
		}
	}
	if err := pic.Validate(); err != nil {
		r.log.Warn("hdsup: dropping caption", "start", timecode.PTSToTimeStr(pic.Start), "err", err)
		return
	}
	r.pics = append(r.pics, pic)
}

// Decode reads the image, palette and alpha tables of pic.
func (r *Reader) Decode(pic *picture.SubPicture) (*bitmap.Bitmap, *palette.Palette, error) {
	if pic.SPU == nil {
		return nil, nil, fmt.Errorf("hdsup: %w: not an HD-DVD caption", picture.ErrUnsupported)
	}
	pal := palette.New(256, r.cfg.ColorSpace)
	if pic.SPU.PaletteOffset > 0 {
		b, err := r.src.Bytes(pic.SPU.PaletteOffset, paletteSize)
		if err != nil {
			return nil, nil, fmt.Errorf("hdsup: palette: %w", err)
		}
		for i := range 256 {
			e := b[i*3:]
			_ = pal.SetYCbCr(i, e[0], e[2], e[1])
		}
	}
	if pic.SPU.AlphaOffset > 0 {
		b, err := r.src.Bytes(pic.SPU.AlphaOffset, 128)
		if err != nil {
			return nil, nil, fmt.Errorf("hdsup: alpha: %w", err)
		}
		for i := range 256 {
			a := b[i/2] >> 4
			if i%2 == 1 {
				a = b[i/2] & 0x0f
			}
			_ = pal.SetAlpha(i, a*17)
		}
	}
	frags, err := r.src.ReadFragments([]picture.Fragment{pic.SPU.Even, pic.SPU.Odd})
	if err != nil {
		return nil, nil, fmt.Errorf("hdsup: %w", err)
	}
	bm, st := rle.DecodeHD(pic.Image.Width, pic.Image.Height, frags[0], frags[1])
	if st.Clipped > 0 || st.Truncated {
		r.log.Warn("hdsup: irregular RLE data", "start", timecode.PTSToTimeStr(pic.Start),
			"clipped", st.Clipped, "truncated", st.Truncated)
	}
	pic.WasDecoded = true
	return bm, pal, nil
}
