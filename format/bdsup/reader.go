package bdsup

import (
	"errors"
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

// fallbackDuration is the display time of a last caption that is never
// ended by an empty composition.
const fallbackDuration = 2 * timecode.Clock

// Reader parses a BD SUP stream. Image data is read from the source on
// demand by Decode.
type Reader struct {
	src  *picture.Source
	cfg  format.Config
	log  *slog.Logger
	pics []*picture.SubPicture
	fps  timecode.FrameRate

	// open is the caption still waiting for its end time.
	open *picture.SubPicture
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

// NewReader parses the stream held by src. The reader takes ownership of
// src and closes it in Close.
func NewReader(src *picture.Source, opts ...format.Option) (*Reader, error) {
	cfg := format.NewConfig(opts...)
	r := &Reader{src: src, cfg: cfg, log: cfg.Logger, fps: cfg.FrameRate}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return r, nil
}

// Pictures returns the captions in presentation order.
func (r *Reader) Pictures() []*picture.SubPicture {
	return r.pics
}

// FrameRate returns the frame rate declared by the first composition.
func (r *Reader) FrameRate() timecode.FrameRate {
	return r.fps
}

// Close closes the underlying source.
func (r *Reader) Close() error {
	return r.src.Close()
}

// epoch holds the objects and palettes defined since the last epoch start.
type epoch struct {
	objects  map[int]*picture.ImageObject
	palettes map[int][]picture.PaletteInfo
	versions map[int]int
}

func newEpoch() *epoch {
	return &epoch{
		objects:  make(map[int]*picture.ImageObject),
		palettes: make(map[int][]picture.PaletteInfo),
		versions: make(map[int]int),
	}
}

// displaySet collects the segments between a PCS and the next END.
type displaySet struct {
	offset   int64
	pts      int64
	pcs      *pcs
	windows  []window
	newPal   []picture.PaletteInfo
	defined  int
	building *picture.ImageObject
}

func (r *Reader) parse() error {
	var (
		size = r.src.Size()
		off  int64
		hb   [HeaderSize]byte
		ep   = newEpoch()
		ds   displaySet
	)
	firstPCS := true

	for off < size {
		if off+HeaderSize > size {
			r.log.Warn("bdsup: truncated segment header", "offset", off)
			break
		}
		if _, err := r.src.ReadAt(hb[:], off); err != nil {
			return &picture.ParseError{Offset: off, Index: len(r.pics), Err: err}
		}
		h, err := parseHeader(hb[:])
		if err != nil {
			return &picture.ParseError{Offset: off, Index: len(r.pics), Err: err}
		}
		payloadOff := off + HeaderSize
		if payloadOff+int64(h.Size) > size {
			r.log.Warn("bdsup: segment exceeds stream", "offset", off,
				"type", segmentName(h.Type), "size", h.Size)
			break
		}
		logging.Trace(r.log, "bdsup: segment", "offset", off, "type", segmentName(h.Type),
			"pts", timecode.PTSToTimeStr(h.PTS), "size", h.Size)

		switch h.Type {
		case SegPCS:
			p, err := r.src.Bytes(payloadOff, int64(h.Size))
			if err != nil {
				return &picture.ParseError{Offset: payloadOff, Index: len(r.pics), Err: err}
			}
			c, err := parsePCS(p)
			if err != nil {
				r.log.Warn("bdsup: skipping display set", "offset", off, "err", err)
				ds = displaySet{}
				break
			}
			if ds.pcs != nil {
				r.log.Warn("bdsup: display set without END", "offset", ds.offset)
			}
			if c.State == StateEpochStart {
				ep = newEpoch()
			}
			if firstPCS {
				if f, ok := timecode.FromBDCode(c.FrameRate); ok {
					r.fps = f
				}
				firstPCS = false
			}
			ds = displaySet{offset: off, pts: h.PTS, pcs: &c}

		case SegWDS:
			p, err := r.src.Bytes(payloadOff, int64(h.Size))
			if err != nil {
				return &picture.ParseError{Offset: payloadOff, Index: len(r.pics), Err: err}
			}
			ws, err := parseWDS(p)
			if err != nil {
				r.log.Warn("bdsup: bad window definition", "offset", off, "err", err)
				break
			}
			ds.windows = append(ds.windows, ws...)

		case SegPDS:
			if h.Size < 2 {
				r.log.Warn("bdsup: empty palette segment", "offset", off)
				break
			}
			p, err := r.src.Bytes(payloadOff, 2)
			if err != nil {
				return &picture.ParseError{Offset: payloadOff, Index: len(r.pics), Err: err}
			}
			id := int(p[0])
			info := picture.PaletteInfo{Offset: payloadOff + 2, Size: (h.Size - 2) / pdsEntrySize}
			if ds.pcs != nil && ds.pcs.PaletteUpdate {
				ds.newPal = append(ds.newPal, info)
			}
			ep.versions[id] = int(p[1])
			ep.palettes[id] = append(ep.palettes[id], info)

		case SegODS:
			p, err := r.src.Bytes(payloadOff, int64(min(h.Size, 11)))
			if err != nil {
				return &picture.ParseError{Offset: payloadOff, Index: len(r.pics), Err: err}
			}
			o, err := parseODS(p)
			if err != nil {
				r.log.Warn("bdsup: bad object definition", "offset", off, "err", err)
				break
			}
			frag := picture.Fragment{Offset: payloadOff + int64(o.size()), Size: int64(h.Size - o.size())}
			if o.first() {
				obj := &picture.ImageObject{
					ID:         o.ID,
					BufferSize: int64(o.DataLen - 4),
					Width:      o.Width,
					Height:     o.Height,
					Fragments:  []picture.Fragment{frag},
				}
				ep.objects[o.ID] = obj
				ds.building = obj
				ds.defined++
			} else if ds.building != nil && ds.building.ID == o.ID {
				ds.building.Fragments = append(ds.building.Fragments, frag)
			} else {
				r.log.Warn("bdsup: continuation of unknown object", "offset", off, "object", o.ID)
				break
			}
			if o.Sequence&seqLast != 0 {
				if b := ds.building; b.FragmentSize() != b.BufferSize {
					r.log.Warn("bdsup: object size mismatch", "offset", off, "object", b.ID,
						"declared", b.BufferSize, "fragments", b.FragmentSize())
				}
				ds.building = nil
			}

		case SegEND:
			if ds.pcs == nil {
				r.log.Warn("bdsup: END without composition", "offset", off)
				break
			}
			r.finish(&ds, ep)
			ds = displaySet{}

		default:
			r.log.Warn("bdsup: unknown segment type", "offset", off, "type", segmentName(h.Type))
		}
		off = payloadOff + int64(h.Size)
	}

	if r.open != nil {
		r.open.End = r.open.Start + fallbackDuration
		r.log.Warn("bdsup: last caption has no end time",
			"start", timecode.PTSToTimeStr(r.open.Start))
	}
	return nil
}

// finish turns a complete display set into a caption, or applies it to the
// caption currently shown.
func (r *Reader) finish(ds *displaySet, ep *epoch) {
	c := ds.pcs
	open := r.open

	if len(c.Objects) == 0 {
		if open != nil {
			open.End = ds.pts
			r.open = nil
		}
		return
	}
	if c.PaletteUpdate {
		if open == nil {
			r.log.Warn("bdsup: palette update outside a caption", "offset", ds.offset)
			return
		}
		for _, info := range ds.newPal {
			open.PaletteUpdates = append(open.PaletteUpdates, picture.PaletteUpdate{PTS: ds.pts, Palette: info})
		}
		return
	}
	if ds.defined == 0 && open != nil {
		// acquisition point repeating the shown caption
		return
	}

	pic := &picture.SubPicture{
		Kind:              picture.KindBD,
		Start:             ds.pts,
		End:               ds.pts,
		Width:             c.Width,
		Height:            c.Height,
		CompositionNumber: c.Number,
		BD: &picture.BDPayload{
			Palettes:         append([]picture.PaletteInfo(nil), ep.palettes[c.PaletteID]...),
			PaletteID:        c.PaletteID,
			PaletteVersion:   ep.versions[c.PaletteID],
			CompositionState: int(c.State),
			FrameRateCode:    int(c.FrameRate),
		},
	}
	for _, co := range c.Objects {
		def, ok := ep.objects[co.ObjectID]
		if !ok {
			r.log.Warn("bdsup: composition references undefined object",
				"offset", ds.offset, "object", co.ObjectID)
			continue
		}
		obj := *def
		obj.Fragments = append([]picture.Fragment(nil), def.Fragments...)
		obj.PaletteID = c.PaletteID
		obj.X, obj.Y = co.X, co.Y
		pic.Objects = append(pic.Objects, obj)
		pic.Forced = pic.Forced || co.Forced
	}
	if len(pic.Objects) == 0 {
		return
	}

	img := objectRect(&pic.Objects[0])
	for i := range pic.Objects[1:] {
		img = union(img, objectRect(&pic.Objects[i+1]))
	}
	pic.Image = img
	pic.Window = img
	for _, w := range ds.windows {
		pic.Window = union(pic.Window, picture.Rect{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height})
	}

	if err := pic.Validate(); err != nil && !errors.Is(err, picture.ErrFragmentSize) {
		r.log.Warn("bdsup: dropping caption", "offset", ds.offset, "err", err)
		return
	}
	if n := len(r.pics); n > 0 && pic.Start < r.pics[n-1].Start {
		r.log.Warn("bdsup: captions out of order", "offset", ds.offset,
			"start", timecode.PTSToTimeStr(pic.Start), "previous", timecode.PTSToTimeStr(r.pics[n-1].Start))
	}
	if open != nil {
		open.End = pic.Start
	}
	r.pics = append(r.pics, pic)
	r.open = pic
}

func objectRect(o *picture.ImageObject) picture.Rect {
	return picture.Rect{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
}

func union(a, b picture.Rect) picture.Rect {
	x0, y0 := min(a.X, b.X), min(a.Y, b.Y)
	x1, y1 := max(a.X+a.Width, b.X+b.Width), max(a.Y+a.Height, b.Y+b.Height)
	return picture.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Palette reads the palette of pic from the stream. Entries not defined
// by the stream are transparent black.
func (r *Reader) Palette(pic *picture.SubPicture) (*palette.Palette, error) {
	pal := palette.New(256, r.cfg.ColorSpace)
	if pic.BD == nil {
		return pal, nil
	}
	for _, info := range pic.BD.Palettes {
		b, err := r.src.Bytes(info.Offset, int64(info.Size*pdsEntrySize))
		if err != nil {
			return nil, fmt.Errorf("bdsup: palette at %d: %w", info.Offset, err)
		}
		for i := 0; i+pdsEntrySize <= len(b); i += pdsEntrySize {
			e := b[i : i+pdsEntrySize]
			_ = pal.SetYCbCr(int(e[0]), e[1], e[3], e[2])
			_ = pal.SetAlpha(int(e[0]), e[4])
		}
	}
	return pal, nil
}

// Decode reads and decodes the image and palette of pic. The objects of a
// caption are composed into one bitmap covering pic.Image.
func (r *Reader) Decode(pic *picture.SubPicture) (*bitmap.Bitmap, *palette.Palette, error) {
	pal, err := r.Palette(pic)
	if err != nil {
		return nil, nil, err
	}
	bm := bitmap.New(pic.Image.Width, pic.Image.Height)
	for i := range pic.Objects {
		o := &pic.Objects[i]
		if o.FragmentSize() != o.BufferSize {
			return nil, nil, fmt.Errorf("bdsup: object %d: %w: fragments hold %d bytes, declared %d",
				o.ID, picture.ErrFragmentSize, o.FragmentSize(), o.BufferSize)
		}
		frags, err := r.src.ReadFragments(o.Fragments)
		if err != nil {
			return nil, nil, fmt.Errorf("bdsup: object %d: %w", o.ID, err)
		}
		ob, st, err := rle.DecodeBD(o.Width, o.Height, frags...)
		if err != nil {
			return nil, nil, fmt.Errorf("bdsup: object %d: %w", o.ID, err)
		}
		if st.Clipped > 0 || st.Truncated {
			r.log.Warn("bdsup: irregular RLE data", "object", o.ID,
				"start", timecode.PTSToTimeStr(pic.Start), "clipped", st.Clipped, "truncated", st.Truncated)
		}
		bm.Paste(ob, o.X-pic.Image.X, o.Y-pic.Image.Y)
	}
	pic.WasDecoded = true
	return bm, pal, nil
}
