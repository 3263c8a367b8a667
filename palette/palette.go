// Package palette implements the indexed color tables used by subtitle
// bitmaps.
//
// A [Palette] keeps every entry in RGB and YCbCr at the same time, plus an
// independent alpha plane. Writing either representation recomputes the
// other with the palette's [ColorSpace], so readers of binary formats can
// store YCbCr as found in the stream while writers of PNG files read RGB
// without further conversion.
//
// The package also contains the palette reduction algorithms used before
// encoding: [Normalize] maps a bitmap to the four DVD color slots and
// [Reduce] fits a bitmap into a palette of limited size. Both are
// deterministic.
package palette

import (
	"fmt"
	"image/color"
)

// IndexError is returned when a palette index is out of range.
type IndexError struct {
	Index int
	Size  int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("palette: index %d out of range [0,%d)", e.Index, e.Size)
}

// Palette is a fixed-size color table.
//
// The zero value is an empty palette. Palettes are not safe for concurrent
// mutation.
type Palette struct {
	space ColorSpace

	r, g, b   []uint8
	y, cb, cr []uint8
	a         []uint8
}

// New creates a palette with size entries, all transparent black.
func New(size int, cs ColorSpace) *Palette {
	if size < 0 {
		size = 0
	}
	p := &Palette{
		space: cs,
		r:     make([]uint8, size),
		g:     make([]uint8, size),
		b:     make([]uint8, size),
		y:     make([]uint8, size),
		cb:    make([]uint8, size),
		cr:    make([]uint8, size),
		a:     make([]uint8, size),
	}
	y, cb, cr := RGBToYCbCr(0, 0, 0, cs)
	for i := range size {
		p.y[i], p.cb[i], p.cr[i] = y, cb, cr
	}
	return p
}

// FromColors creates a palette holding the given colors.
func FromColors(colors []color.NRGBA, cs ColorSpace) *Palette {
	p := New(len(colors), cs)
	for i, c := range colors {
		p.set(i, c.R, c.G, c.B)
		p.a[i] = c.A
	}
	return p
}

// Size returns the number of entries.
func (p *Palette) Size() int {
	return len(p.a)
}

// ColorSpace returns the transform used to keep the planes in sync.
func (p *Palette) ColorSpace() ColorSpace {
	return p.space
}

// SetColorSpace changes the transform. The RGB plane is kept and the
// YCbCr plane is recomputed.
func (p *Palette) SetColorSpace(cs ColorSpace) {
	p.space = cs
	for i := range p.r {
		p.y[i], p.cb[i], p.cr[i] = RGBToYCbCr(p.r[i], p.g[i], p.b[i], cs)
	}
}

func (p *Palette) check(i int) error {
	if i < 0 || i >= len(p.a) {
		return &IndexError{Index: i, Size: len(p.a)}
	}
	return nil
}

func (p *Palette) set(i int, r, g, b uint8) {
	p.r[i], p.g[i], p.b[i] = r, g, b
	p.y[i], p.cb[i], p.cr[i] = RGBToYCbCr(r, g, b, p.space)
}

// SetRGB sets the color of entry i and updates its YCbCr values.
func (p *Palette) SetRGB(i int, r, g, b uint8) error {
	if err := p.check(i); err != nil {
		return err
	}
	p.set(i, r, g, b)
	return nil
}

// SetYCbCr sets the color of entry i and updates its RGB values.
func (p *Palette) SetYCbCr(i int, y, cb, cr uint8) error {
	if err := p.check(i); err != nil {
		return err
	}
	p.y[i], p.cb[i], p.cr[i] = y, cb, cr
	p.r[i], p.g[i], p.b[i] = YCbCrToRGB(y, cb, cr, p.space)
	return nil
}

// SetAlpha sets the alpha value of entry i.
func (p *Palette) SetAlpha(i int, a uint8) error {
	if err := p.check(i); err != nil {
		return err
	}
	p.a[i] = a
	return nil
}

// SetColor sets entry i from a non-premultiplied color.
func (p *Palette) SetColor(i int, c color.NRGBA) error {
	if err := p.check(i); err != nil {
		return err
	}
	p.set(i, c.R, c.G, c.B)
	p.a[i] = c.A
	return nil
}

// RGB returns the RGB values of entry i. Out-of-range indices yield black.
func (p *Palette) RGB(i int) (r, g, b uint8) {
	if p.check(i) != nil {
		return 0, 0, 0
	}
	return p.r[i], p.g[i], p.b[i]
}

// YCbCr returns the YCbCr values of entry i.
// Out-of-range indices yield the YCbCr values of black.
func (p *Palette) YCbCr(i int) (y, cb, cr uint8) {
	if p.check(i) != nil {
		return RGBToYCbCr(0, 0, 0, p.space)
	}
	return p.y[i], p.cb[i], p.cr[i]
}

// Alpha returns the alpha value of entry i; 0 for out-of-range indices.
func (p *Palette) Alpha(i int) uint8 {
	if p.check(i) != nil {
		return 0
	}
	return p.a[i]
}

// Color returns entry i as a non-premultiplied color.
// Out-of-range indices yield transparent black.
func (p *Palette) Color(i int) color.NRGBA {
	if p.check(i) != nil {
		return color.NRGBA{}
	}
	return color.NRGBA{R: p.r[i], G: p.g[i], B: p.b[i], A: p.a[i]}
}

// ARGB returns entry i packed as 0xAARRGGBB.
func (p *Palette) ARGB(i int) uint32 {
	c := p.Color(i)
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// Alphas returns a copy of the alpha plane.
func (p *Palette) Alphas() []uint8 {
	return append([]uint8(nil), p.a...)
}

// Lumas returns a copy of the Y plane.
func (p *Palette) Lumas() []uint8 {
	return append([]uint8(nil), p.y...)
}

// Colors returns all entries as an [color.Palette], suitable for
// [image.Paletted].
func (p *Palette) Colors() color.Palette {
	out := make(color.Palette, p.Size())
	for i := range out {
		out[i] = p.Color(i)
	}
	return out
}

// TransparentIndex returns the lowest index whose alpha is 0, or 0 if no
// entry is fully transparent.
func (p *Palette) TransparentIndex() int {
	for i, a := range p.a {
		if a == 0 {
			return i
		}
	}
	return 0
}

// Clone returns a deep copy of the palette.
func (p *Palette) Clone() *Palette {
	return &Palette{
		space: p.space,
		r:     append([]uint8(nil), p.r...),
		g:     append([]uint8(nil), p.g...),
		b:     append([]uint8(nil), p.b...),
		y:     append([]uint8(nil), p.y...),
		cb:    append([]uint8(nil), p.cb...),
		cr:    append([]uint8(nil), p.cr...),
		a:     append([]uint8(nil), p.a...),
	}
}

// Equal reports whether both palettes hold the same entries in the same
// color space.
func (p *Palette) Equal(o *Palette) bool {
	if p.space != o.space || p.Size() != o.Size() {
		return false
	}
	for i := range p.a {
		if p.r[i] != o.r[i] || p.g[i] != o.g[i] || p.b[i] != o.b[i] ||
			p.y[i] != o.y[i] || p.cb[i] != o.cb[i] || p.cr[i] != o.cr[i] ||
			p.a[i] != o.a[i] {
			return false
		}
	}
	return true
}
