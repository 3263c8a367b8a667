package palette

import "math"

// ColorSpace selects the RGB/YCbCr transform coefficients.
type ColorSpace uint8

const (
	// BT709 uses the ITU-R BT.709 coefficients (HD video, Blu-ray default).
	BT709 ColorSpace = iota

	// BT601 uses the ITU-R BT.601 coefficients (SD video, DVD).
	BT601
)

// String returns the name of the color space.
func (cs ColorSpace) String() string {
	switch cs {
	case BT601:
		return "BT.601"
	case BT709:
		return "BT.709"
	default:
		return "Unknown"
	}
}

// fixed-point precision of the transform coefficients
const (
	fpShift = 16
	fpHalf  = 1 << (fpShift - 1)
)

// Studio (video) range used by BD, HD-DVD and DVD palettes. Full-range RGB
// 0..255 maps to Y 16..235 and Cb/Cr 16..240.
const (
	yMin, yMax = 16, 235
	cMin, cMax = 16, 240
	yRange     = yMax - yMin
	cRange     = cMax - cMin
)

// matrix holds the forward and inverse coefficients of one color space,
// scaled by 1<<fpShift. The forward coefficients include the compression
// to studio range, the inverse ones the expansion back to full range.
type matrix struct {
	yr, yg, yb    int32
	cbr, cbg, cbb int32
	crr, crg, crb int32

	yy       int32
	rcr      int32
	gcb, gcr int32
	bcb      int32
}

var matrices = [...]matrix{
	BT709: newMatrix(0.2126, 0.0722),
	BT601: newMatrix(0.299, 0.114),
}

// newMatrix derives all coefficients from the luma weights of red and blue.
func newMatrix(kr, kb float64) matrix {
	kg := 1 - kr - kb
	ys := float64(yRange) / 255
	cs := float64(cRange) / 255
	fx := func(f float64) int32 { return int32(math.Round(f * (1 << fpShift))) }
	return matrix{
		yr: fx(kr * ys), yg: fx(kg * ys), yb: fx(kb * ys),
		cbr: fx(-kr / (2 * (1 - kb)) * cs), cbg: fx(-kg / (2 * (1 - kb)) * cs), cbb: fx(0.5 * cs),
		crr: fx(0.5 * cs), crg: fx(-kg / (2 * (1 - kr)) * cs), crb: fx(-kb / (2 * (1 - kr)) * cs),
		yy:  fx(1 / ys),
		rcr: fx(2 * (1 - kr) / cs),
		gcb: fx(-2 * kb * (1 - kb) / kg / cs), gcr: fx(-2 * kr * (1 - kr) / kg / cs),
		bcb: fx(2 * (1 - kb) / cs),
	}
}

func (cs ColorSpace) matrix() *matrix {
	if int(cs) < len(matrices) {
		return &matrices[cs]
	}
	return &matrices[BT709]
}

func (m *matrix) forward(r, g, b uint8) (y, cb, cr uint8) {
	ri, gi, bi := int32(r), int32(g), int32(b)
	y = clampFixed(m.yr*ri+m.yg*gi+m.yb*bi+yMin<<fpShift+fpHalf, yMin, yMax)
	cb = clampFixed(m.cbr*ri+m.cbg*gi+m.cbb*bi+128<<fpShift+fpHalf, cMin, cMax)
	cr = clampFixed(m.crr*ri+m.crg*gi+m.crb*bi+128<<fpShift+fpHalf, cMin, cMax)
	return y, cb, cr
}

func (m *matrix) inverse(y, cb, cr uint8) (r, g, b uint8) {
	yi := m.yy * (int32(y) - yMin)
	c := int32(cb) - 128
	e := int32(cr) - 128
	r = clampFixed(yi+m.rcr*e+fpHalf, 0, 255)
	g = clampFixed(yi+m.gcb*c+m.gcr*e+fpHalf, 0, 255)
	b = clampFixed(yi+m.bcb*c+fpHalf, 0, 255)
	return r, g, b
}

// miss returns the largest channel difference between (r, g, b) and the
// RGB value that (y, cb, cr) converts back to.
func (m *matrix) miss(r, g, b, y, cb, cr uint8) int {
	r2, g2, b2 := m.inverse(y, cb, cr)
	return max(absDiff(r, r2), absDiff(g, g2), absDiff(b, b2))
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// nudge is the order in which neighbouring codes are tried.
var nudge = [3]int{0, -1, 1}

// RGBToYCbCr converts a full-range RGB triple to studio-range YCbCr.
//
// Studio range has fewer code values than RGB, so the rounded result may
// convert back one step off in each component. Of the rounded code and its
// neighbours, the one that converts back closest to the input is returned;
// ties keep the rounded code.
func RGBToYCbCr(r, g, b uint8, cs ColorSpace) (y, cb, cr uint8) {
	m := cs.matrix()
	y, cb, cr = m.forward(r, g, b)
	best := m.miss(r, g, b, y, cb, cr)
	if best == 0 {
		return y, cb, cr
	}
	y0, cb0, cr0 := int(y), int(cb), int(cr)
	for _, dy := range nudge {
		ny := y0 + dy
		if ny < yMin || ny > yMax {
			continue
		}
		for _, dcb := range nudge {
			ncb := cb0 + dcb
			if ncb < cMin || ncb > cMax {
				continue
			}
			for _, dcr := range nudge {
				ncr := cr0 + dcr
				if ncr < cMin || ncr > cMax {
					continue
				}
				if d := m.miss(r, g, b, uint8(ny), uint8(ncb), uint8(ncr)); d < best {
					best, y, cb, cr = d, uint8(ny), uint8(ncb), uint8(ncr)
				}
			}
		}
	}
	return y, cb, cr
}

// YCbCrToRGB converts a studio-range YCbCr triple to full-range RGB.
// Values outside studio range are accepted and clamped after conversion.
func YCbCrToRGB(y, cb, cr uint8, cs ColorSpace) (r, g, b uint8) {
	return cs.matrix().inverse(y, cb, cr)
}

// Luma returns the studio-range Y that a palette stores for an RGB triple.
func Luma(r, g, b uint8, cs ColorSpace) uint8 {
	y, _, _ := RGBToYCbCr(r, g, b, cs)
	return y
}

// clampFixed drops the fractional bits of v and clamps to [lo, hi].
func clampFixed(v int32, lo, hi int32) uint8 {
	v >>= fpShift
	return uint8(min(max(v, lo), hi))
}
