package spu

import (
	"github.com/gogpu/subpic/palette"
)

// Palette builds the 4 entry palette of a unit from the 16 color DVD
// palette. Contrast nibbles are expanded to 8-bit alpha.
func (c *Control) Palette(dvd *palette.Palette) *palette.Palette {
	p := palette.New(4, dvd.ColorSpace())
	for i := range 4 {
		col := dvd.Color(int(c.Colors[i]))
		col.A = c.Alphas[i] * 17
		_ = p.SetColor(i, col)
	}
	return p
}

// SetPalette picks the DVD palette entries closest to the four slot colors
// of pal and stores them, with their alphas reduced to 4 bits, in c.
func (c *Control) SetPalette(pal, dvd *palette.Palette) {
	for i := range 4 {
		col := pal.Color(i)
		c.Colors[i] = uint8(dvd.Nearest(col))
		c.Alphas[i] = uint8((int(col.A) + 8) / 17)
	}
}
