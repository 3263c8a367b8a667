// Package bitmap implements indexed rasters and the geometry operations
// applied to subtitle images: filling, visibility bounds, cropping and
// erase patches.
//
// A [Bitmap] stores one palette index per pixel. Classification helpers take
// alpha and luma tables indexed by palette index rather than a palette, so
// the package has no dependency on the palette implementation.
package bitmap

import (
	"errors"
	"image"
	"image/color"
)

// ErrInvalidDimensions is returned when a width or height is negative or the
// pixel data does not match the dimensions.
var ErrInvalidDimensions = errors.New("bitmap: invalid dimensions")

// Bitmap is a rectangular raster of palette indices.
type Bitmap struct {
	width  int
	height int
	pix    []uint8 // row major, one byte per pixel
}

// New creates a bitmap filled with index 0.
// Negative dimensions are treated as zero.
func New(width, height int) *Bitmap {
	width, height = max(width, 0), max(height, 0)
	return &Bitmap{
		width:  width,
		height: height,
		pix:    make([]uint8, width*height),
	}
}

// NewFilled creates a bitmap with every pixel set to index.
func NewFilled(width, height int, index uint8) *Bitmap {
	b := New(width, height)
	if index != 0 {
		for i := range b.pix {
			b.pix[i] = index
		}
	}
	return b
}

// FromPix wraps existing pixel data without copying.
func FromPix(width, height int, pix []uint8) (*Bitmap, error) {
	if width < 0 || height < 0 || len(pix) != width*height {
		return nil, ErrInvalidDimensions
	}
	return &Bitmap{width: width, height: height, pix: pix}, nil
}

// Width returns the width in pixels.
func (b *Bitmap) Width() int {
	return b.width
}

// Height returns the height in pixels.
func (b *Bitmap) Height() int {
	return b.height
}

// Pix returns the underlying pixel data.
func (b *Bitmap) Pix() []uint8 {
	return b.pix
}

// Row returns the pixels of line y. The slice aliases the bitmap.
func (b *Bitmap) Row(y int) []uint8 {
	return b.pix[y*b.width : (y+1)*b.width]
}

// At returns the index at (x, y), or 0 outside the bitmap.
func (b *Bitmap) At(x, y int) uint8 {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return 0
	}
	return b.pix[y*b.width+x]
}

// Set sets the index at (x, y). Coordinates outside the bitmap are ignored.
func (b *Bitmap) Set(x, y int, index uint8) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return
	}
	b.pix[y*b.width+x] = index
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{
		width:  b.width,
		height: b.height,
		pix:    append([]uint8(nil), b.pix...),
	}
}

// Equal reports whether both bitmaps have the same size and pixels.
func (b *Bitmap) Equal(o *Bitmap) bool {
	if b.width != o.width || b.height != o.height {
		return false
	}
	for i, v := range b.pix {
		if o.pix[i] != v {
			return false
		}
	}
	return true
}

// Lookup maps palette indices to colors.
type Lookup interface {
	Color(index int) color.NRGBA
}

// ToNRGBA expands the bitmap to true color using p.
func (b *Bitmap) ToNRGBA(p Lookup) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.width, b.height))
	var table [256]color.NRGBA
	for i := range table {
		table[i] = p.Color(i)
	}
	for i, v := range b.pix {
		c := table[v]
		j := i * 4
		img.Pix[j+0] = c.R
		img.Pix[j+1] = c.G
		img.Pix[j+2] = c.B
		img.Pix[j+3] = c.A
	}
	return img
}

// Paletted converts the bitmap to an [image.Paletted] sharing no memory.
func (b *Bitmap) Paletted(p color.Palette) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, b.width, b.height), p)
	copy(img.Pix, b.pix)
	return img
}
