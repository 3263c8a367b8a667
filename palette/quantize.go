package palette

import (
	"image"
	"image/color"
	"sort"

	"github.com/gogpu/subpic/bitmap"
)

// The four color slots of a DVD sub-picture.
const (
	SlotBackground = 0
	SlotPattern    = 1
	SlotEmphasis1  = 2
	SlotEmphasis2  = 3
)

// Thresholds controls [Normalize].
type Thresholds struct {
	// Alpha is the minimum alpha of a visible color.
	Alpha int

	// Luma splits visible colors into the pattern, emphasis-1 and
	// emphasis-2 slots by studio-range Y (16..235): luma > Luma[0] is
	// pattern, luma > Luma[1] is emphasis-1, anything darker is emphasis-2.
	Luma [2]int
}

// DefaultThresholds are suitable for white text with a dark outline.
var DefaultThresholds = Thresholds{Alpha: 80, Luma: [2]int{210, 160}}

// firstSeen returns the raster position of the first pixel of every index,
// or -1 for unused indices.
func firstSeen(bm *bitmap.Bitmap) [256]int {
	var pos [256]int
	for i := range pos {
		pos[i] = -1
	}
	for i, v := range bm.Pix() {
		if pos[v] < 0 {
			pos[v] = i
		}
	}
	return pos
}

// Normalize maps bm to at most four colors: background, pattern,
// emphasis-1 and emphasis-2.
//
// Colors with alpha below th.Alpha go to the background slot. Visible colors
// are assigned to a slot by their luminance. Each slot takes the color of its
// most used member; ties go to the member seen first in raster order. Slots
// without members are transparent black.
//
// The result depends only on the inputs, so normalizing the same bitmap
// twice gives identical bitmaps and palettes.
func Normalize(bm *bitmap.Bitmap, p *Palette, th Thresholds) (*bitmap.Bitmap, *Palette) {
	n := min(p.Size(), 256)
	var slot [256]uint8
	for i := range n {
		switch {
		case int(p.a[i]) < th.Alpha:
			slot[i] = SlotBackground
		case int(p.y[i]) > th.Luma[0]:
			slot[i] = SlotPattern
		case int(p.y[i]) > th.Luma[1]:
			slot[i] = SlotEmphasis1
		default:
			slot[i] = SlotEmphasis2
		}
	}

	hist := bm.Histogram()
	seen := firstSeen(bm)
	rep := [4]int{-1, -1, -1, -1}
	for i := range n {
		if hist[i] == 0 {
			continue
		}
		s := slot[i]
		r := rep[s]
		if r < 0 || hist[i] > hist[r] || (hist[i] == hist[r] && seen[i] < seen[r]) {
			rep[s] = i
		}
	}

	out := New(4, p.space)
	for s, r := range rep {
		if r >= 0 {
			out.set(s, p.r[r], p.g[r], p.b[r])
			out.a[s] = p.a[r]
		}
	}

	dst := bitmap.New(bm.Width(), bm.Height())
	dp := dst.Pix()
	for i, v := range bm.Pix() {
		dp[i] = slot[v]
	}
	return dst, out
}

// Reduce fits bm into a palette of at most maxColors entries.
//
// Index 0 of the result is transparent black and receives every invisible
// pixel (alpha 0, or an index beyond the palette). The remaining entries hold
// the most used visible colors; the primary (brightest visible) color is
// always kept. Colors that do not fit are replaced by the kept color with
// the nearest luminance, then the nearest RGB value. Ties resolve to the
// color seen first in raster order.
//
// If the palette already fits, copies of the inputs are returned.
func Reduce(bm *bitmap.Bitmap, p *Palette, maxColors int) (*bitmap.Bitmap, *Palette) {
	if p.Size() <= maxColors {
		return bm.Clone(), p.Clone()
	}
	maxColors = max(maxColors, 1)

	alpha := p.Alphas()
	highest := bm.HighestVisibleColorIndex(alpha, 1)
	primary := bm.PrimaryColorIndex(alpha, 1, p.y)
	hist := bm.Histogram()
	seen := firstSeen(bm)

	var candidates []int
	for i := 0; i <= highest && i < p.Size(); i++ {
		if hist[i] > 0 && p.a[i] > 0 {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		ia, ib := candidates[a], candidates[b]
		if (ia == primary) != (ib == primary) {
			return ia == primary
		}
		if hist[ia] != hist[ib] {
			return hist[ia] > hist[ib]
		}
		return seen[ia] < seen[ib]
	})

	kept := candidates
	if len(kept) > maxColors-1 {
		kept = kept[:maxColors-1]
	}

	out := New(len(kept)+1, p.space)
	var remap [256]uint8
	isKept := make(map[int]bool, len(kept))
	for k, i := range kept {
		out.set(k+1, p.r[i], p.g[i], p.b[i])
		out.a[k+1] = p.a[i]
		remap[i] = uint8(k + 1)
		isKept[i] = true
	}
	for _, i := range candidates {
		if !isKept[i] && len(kept) > 0 {
			remap[i] = uint8(nearestKept(p, i, kept) + 1)
		}
	}

	dst := bitmap.New(bm.Width(), bm.Height())
	dp := dst.Pix()
	for i, v := range bm.Pix() {
		dp[i] = remap[v]
	}
	return dst, out
}

// nearestKept returns the position in kept of the color closest to entry i.
func nearestKept(p *Palette, i int, kept []int) int {
	best := 0
	bestLuma, bestRGB := -1, -1
	for k, j := range kept {
		dl := int(p.y[i]) - int(p.y[j])
		if dl < 0 {
			dl = -dl
		}
		dr := int(p.r[i]) - int(p.r[j])
		dg := int(p.g[i]) - int(p.g[j])
		db := int(p.b[i]) - int(p.b[j])
		d := dr*dr + dg*dg + db*db
		if bestLuma < 0 || dl < bestLuma || (dl == bestLuma && d < bestRGB) {
			best, bestLuma, bestRGB = k, dl, d
		}
	}
	return best
}

// Quantize converts a true-color image to an indexed bitmap with at most
// maxColors palette entries (maxColors is capped at 256).
//
// Fully transparent pixels map to index 0. If the image holds too many
// distinct colors, colors are grouped by dropping low-order bits until the
// groups fit; each group is represented by the pixel-weighted mean of its
// members. Groups are numbered in raster order, so the output is
// deterministic.
func Quantize(img *image.NRGBA, maxColors int, cs ColorSpace) (*bitmap.Bitmap, *Palette) {
	maxColors = min(max(maxColors, 2), 256)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	pixel := func(i int) uint32 {
		y, x := i/max(w, 1), i%max(w, 1)
		o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
		s := img.Pix[o : o+4 : o+4]
		if s[3] == 0 {
			return 0
		}
		return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
	}

	for shift := uint(0); ; shift++ {
		mask := uint32(0xff<<shift) & 0xff
		mask = mask<<24 | mask<<16 | mask<<8 | mask
		groups := map[uint32]int{0: 0}
		order := []uint32{0}
		index := make([]uint8, w*h)
		fits := true
		for i := range index {
			key := pixel(i) & mask
			if pixel(i) != 0 && key == 0 {
				// keep nearly black, nearly transparent pixels visible
				key = 1
			}
			g, ok := groups[key]
			if !ok {
				if len(order) == maxColors {
					fits = false
					break
				}
				g = len(order)
				groups[key] = g
				order = append(order, key)
			}
			index[i] = uint8(g)
		}
		if !fits && shift < 8 {
			continue
		}

		var sum [256][5]int
		for i, g := range index {
			c := pixel(i)
			sum[g][0] += int(c >> 24)
			sum[g][1] += int(c >> 16 & 0xff)
			sum[g][2] += int(c >> 8 & 0xff)
			sum[g][3] += int(c & 0xff)
			sum[g][4]++
		}
		pal := New(len(order), cs)
		for g := 1; g < len(order); g++ {
			n := max(sum[g][4], 1)
			c := color.NRGBA{
				R: uint8((sum[g][0] + n/2) / n),
				G: uint8((sum[g][1] + n/2) / n),
				B: uint8((sum[g][2] + n/2) / n),
				A: uint8((sum[g][3] + n/2) / n),
			}
			_ = pal.SetColor(g, c)
		}
		bm, _ := bitmap.FromPix(w, h, index)
		return bm, pal
	}
}
