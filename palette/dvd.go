package palette

import "image/color"

// defaultDVD is the 16 color table used when a DVD target has no palette
// of its own.
var defaultDVD = [16]color.NRGBA{
	{0x00, 0x00, 0x00, 0xff}, {0xf0, 0xf0, 0xf0, 0xff},
	{0xcc, 0xcc, 0xcc, 0xff}, {0x99, 0x99, 0x99, 0xff},
	{0x33, 0x33, 0xfa, 0xff}, {0x11, 0x11, 0xbb, 0xff},
	{0xfa, 0x33, 0x33, 0xff}, {0xbb, 0x11, 0x11, 0xff},
	{0x33, 0xfa, 0x33, 0xff}, {0x11, 0xbb, 0x11, 0xff},
	{0xfa, 0xfa, 0x33, 0xff}, {0xbb, 0xbb, 0x11, 0xff},
	{0xfa, 0x33, 0xfa, 0xff}, {0xbb, 0x11, 0xbb, 0xff},
	{0x33, 0xfa, 0xfa, 0xff}, {0x11, 0xbb, 0xbb, 0xff},
}

// DefaultDVD returns a new copy of the default 16 color DVD palette.
func DefaultDVD(cs ColorSpace) *Palette {
	return FromColors(defaultDVD[:], cs)
}

// Nearest returns the index of the entry closest to c in RGB space.
// Alpha is ignored. Ties resolve to the lowest index.
func (p *Palette) Nearest(c color.NRGBA) int {
	best, bestDist := 0, -1
	for i := range p.a {
		dr := int(p.r[i]) - int(c.R)
		dg := int(p.g[i]) - int(c.G)
		db := int(p.b[i]) - int(c.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
