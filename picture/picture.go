// Package picture defines the format independent subtitle data model.
//
// A [SubPicture] describes one caption: its display interval, geometry and
// where its compressed image lives in the source stream. Image data is
// referenced by [Fragment] byte ranges into a [Source] and only read when
// the caption is decoded.
//
// SubPicture is a tagged variant. The fields shared by all containers are
// stored directly; the container specific part is held in exactly one of
// the BD, SPU or XML payload fields, selected by Kind.
package picture

import (
	"fmt"
	"image"

	"github.com/gogpu/subpic/bitmap"
)

// Kind identifies the container a SubPicture was read from.
type Kind uint8

const (
	// KindBD is a Blu-ray PGS caption.
	KindBD Kind = iota
	// KindHD is an HD-DVD sub-picture.
	KindHD
	// KindDVD is a DVD sub-picture unit from a SUP file.
	KindDVD
	// KindVobSub is a DVD sub-picture unit from a VobSub SUB file.
	KindVobSub
	// KindXML is a BDN XML event with a PNG image.
	KindXML
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBD:
		return "BD"
	case KindHD:
		return "HD-DVD"
	case KindDVD:
		return "DVD"
	case KindVobSub:
		return "VobSub"
	case KindXML:
		return "XML"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Rect is a rectangle in video frame coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Contains reports whether o lies completely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width && o.Y+o.Height <= r.Y+r.Height
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Fragment is a byte range in the source stream.
type Fragment struct {
	Offset int64
	Size   int64
}

// PaletteInfo locates a palette segment in the source stream.
// Size is the number of palette entries.
type PaletteInfo struct {
	Offset int64
	Size   int
}

// PaletteUpdate is a palette change that takes effect at PTS while the
// caption is shown.
type PaletteUpdate struct {
	PTS     int64
	Palette PaletteInfo
}

// ImageObject is one compressed image of a caption.
type ImageObject struct {
	ID         int
	PaletteID  int
	BufferSize int64 // declared RLE size, the sum of the fragment sizes
	Width      int
	Height     int
	X, Y       int
	Fragments  []Fragment
}

// FragmentSize returns the total size of all fragments.
func (o *ImageObject) FragmentSize() int64 {
	var n int64
	for _, f := range o.Fragments {
		n += f.Size
	}
	return n
}

// Geometry is the part of a SubPicture changed by transformations.
type Geometry struct {
	Width, Height int
	Window        Rect
	Image         Rect
}

// SubPicture is a single caption.
type SubPicture struct {
	Kind Kind

	// Start and End are presentation timestamps in 90 kHz ticks.
	Start, End int64

	// Width and Height are the dimensions of the video frame.
	Width, Height int

	Window Rect
	Image  Rect

	CompositionNumber int

	Forced     bool
	Excluded   bool
	WasDecoded bool

	ErasePatches   []bitmap.ErasePatch
	PaletteUpdates []PaletteUpdate
	Objects        []ImageObject

	// Original holds the geometry before the first transformation.
	Original *Geometry

	BD  *BDPayload
	SPU *SPUPayload
	XML *XMLPayload
}

// BDPayload is the Blu-ray specific part of a caption.
type BDPayload struct {
	Palettes         []PaletteInfo
	PaletteID        int
	PaletteVersion   int
	CompositionState int
	FrameRateCode    int
}

// SPUPayload is the DVD and HD-DVD specific part of a caption.
type SPUPayload struct {
	// Even and Odd locate the RLE data of the two interlaced fields. Their
	// sizes extend to the start of the control sequence table. For DVD and
	// VobSub captions the offsets are relative to the unit, which is
	// located by the fragments of Objects[0]; HD-DVD offsets are absolute.
	Even, Odd Fragment

	// ControlOffset is the start of the control sequence table, with the
	// same base as Even and Odd.
	ControlOffset int64

	// Colors are palette indices for background, pattern, emphasis-1 and
	// emphasis-2; Alphas are their 4-bit contrast values.
	Colors [4]uint8
	Alphas [4]uint8

	// PaletteOffset and AlphaOffset locate the 256 entry tables of HD-DVD
	// captions. They are zero for DVD captions.
	PaletteOffset int64
	AlphaOffset   int64

	// StreamID is the VobSub substream id (0x20 + language index).
	StreamID int
}

// XMLPayload is the BDN XML specific part of a caption.
type XMLPayload struct {
	// File is the PNG file name relative to the XML file.
	File string
}

// Duration returns End - Start.
func (p *SubPicture) Duration() int64 {
	return p.End - p.Start
}

// Geometry returns the current geometry.
func (p *SubPicture) Geometry() Geometry {
	return Geometry{Width: p.Width, Height: p.Height, Window: p.Window, Image: p.Image}
}

// SaveOriginal records the current geometry unless it was saved before.
func (p *SubPicture) SaveOriginal() {
	if p.Original == nil {
		g := p.Geometry()
		p.Original = &g
	}
}

// Revert restores the geometry saved by SaveOriginal.
func (p *SubPicture) Revert() {
	if p.Original == nil {
		return
	}
	g := *p.Original
	p.Width, p.Height = g.Width, g.Height
	p.Window, p.Image = g.Window, g.Image
	p.Original = nil
}

// Clone returns a deep copy of the caption.
func (p *SubPicture) Clone() *SubPicture {
	c := *p
	c.ErasePatches = append([]bitmap.ErasePatch(nil), p.ErasePatches...)
	c.PaletteUpdates = append([]PaletteUpdate(nil), p.PaletteUpdates...)
	c.Objects = make([]ImageObject, len(p.Objects))
	for i, o := range p.Objects {
		o.Fragments = append([]Fragment(nil), o.Fragments...)
		c.Objects[i] = o
	}
	if p.Original != nil {
		g := *p.Original
		c.Original = &g
	}
	if p.BD != nil {
		bd := *p.BD
		bd.Palettes = append([]PaletteInfo(nil), p.BD.Palettes...)
		c.BD = &bd
	}
	if p.SPU != nil {
		spu := *p.SPU
		c.SPU = &spu
	}
	if p.XML != nil {
		x := *p.XML
		c.XML = &x
	}
	return &c
}

// Validate checks the geometric and structural invariants of the caption.
func (p *SubPicture) Validate() error {
	frame := Rect{Width: p.Width, Height: p.Height}
	if p.End < p.Start {
		return fmt.Errorf("%w: end %d before start %d", ErrInvalid, p.End, p.Start)
	}
	if !frame.Contains(p.Window) {
		return fmt.Errorf("%w: window %+v outside %dx%d frame", ErrInvalid, p.Window, p.Width, p.Height)
	}
	if !p.Window.Contains(p.Image) {
		return fmt.Errorf("%w: image %+v outside window %+v", ErrInvalid, p.Image, p.Window)
	}
	for i := range p.Objects {
		o := &p.Objects[i]
		if len(o.Fragments) > 0 && o.FragmentSize() != o.BufferSize {
			return fmt.Errorf("%w: object %d fragments hold %d bytes, declared %d",
				ErrFragmentSize, o.ID, o.FragmentSize(), o.BufferSize)
		}
	}
	for i := 1; i < len(p.PaletteUpdates); i++ {
		if p.PaletteUpdates[i].PTS < p.PaletteUpdates[i-1].PTS {
			return fmt.Errorf("%w: palette updates out of order", ErrInvalid)
		}
	}
	return nil
}
