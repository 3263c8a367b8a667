package bitmap

// Bounds is an inclusive pixel rectangle. It never owns pixel data.
type Bounds struct {
	XMin, XMax int
	YMin, YMax int
}

// EmptyBounds is returned by [Bitmap.CroppingBounds] when no pixel is
// visible. Its maxima are smaller than its minima.
var EmptyBounds = Bounds{XMin: 0, XMax: -1, YMin: 0, YMax: -1}

// IsEmpty reports whether the bounds contain no pixel.
func (r Bounds) IsEmpty() bool {
	return r.XMax < r.XMin || r.YMax < r.YMin
}

// Width returns the number of columns covered.
func (r Bounds) Width() int {
	if r.IsEmpty() {
		return 0
	}
	return r.XMax - r.XMin + 1
}

// Height returns the number of rows covered.
func (r Bounds) Height() int {
	if r.IsEmpty() {
		return 0
	}
	return r.YMax - r.YMin + 1
}

// ErasePatch is a rectangle that is blanked while a subpicture is shown.
type ErasePatch struct {
	X, Y          int
	Width, Height int
}

// FillRectangle sets every pixel of the rectangle to index.
// The rectangle is clipped to the bitmap; nothing outside [0,W)x[0,H) is
// ever written.
func (b *Bitmap) FillRectangle(x, y, w, h int, index uint8) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, b.width), min(y+h, b.height)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	for yy := y0; yy < y1; yy++ {
		row := b.pix[yy*b.width+x0 : yy*b.width+x1]
		for i := range row {
			row[i] = index
		}
	}
}

// ApplyErasePatches fills every patch with index.
func (b *Bitmap) ApplyErasePatches(patches []ErasePatch, index uint8) {
	for _, p := range patches {
		b.FillRectangle(p.X, p.Y, p.Width, p.Height, index)
	}
}

func visible(alpha []uint8, threshold int, index uint8) bool {
	return int(index) < len(alpha) && int(alpha[index]) >= threshold
}

// CroppingBounds returns the smallest rectangle containing all visible
// pixels. A pixel is visible if alpha[index] >= threshold. If no pixel is
// visible, EmptyBounds is returned.
func (b *Bitmap) CroppingBounds(alpha []uint8, threshold int) Bounds {
	r := Bounds{XMin: b.width, XMax: -1, YMin: b.height, YMax: -1}
	for y := range b.height {
		row := b.Row(y)
		first := -1
		for x, v := range row {
			if visible(alpha, threshold, v) {
				first = x
				break
			}
		}
		if first < 0 {
			continue
		}
		last := first
		for x := len(row) - 1; x > first; x-- {
			if visible(alpha, threshold, row[x]) {
				last = x
				break
			}
		}
		if r.YMax < 0 {
			r.YMin = y
		}
		r.YMax = y
		r.XMin = min(r.XMin, first)
		r.XMax = max(r.XMax, last)
	}
	if r.YMax < 0 {
		return EmptyBounds
	}
	return r
}

// Crop returns a new bitmap holding a copy of the given rectangle.
// Parts of the rectangle outside the bitmap are filled with index 0.
func (b *Bitmap) Crop(x, y, w, h int) *Bitmap {
	out := New(w, h)
	for yy := range out.height {
		sy := y + yy
		if sy < 0 || sy >= b.height {
			continue
		}
		x0, x1 := max(x, 0), min(x+out.width, b.width)
		if x0 >= x1 {
			continue
		}
		copy(out.pix[yy*out.width+(x0-x):], b.pix[sy*b.width+x0:sy*b.width+x1])
	}
	return out
}

// Paste copies src into b with its top left corner at (x, y).
// Parts of src outside b are dropped.
func (b *Bitmap) Paste(src *Bitmap, x, y int) {
	for sy := range src.height {
		dy := y + sy
		if dy < 0 || dy >= b.height {
			continue
		}
		x0, x1 := max(x, 0), min(x+src.width, b.width)
		if x0 >= x1 {
			continue
		}
		copy(b.pix[dy*b.width+x0:dy*b.width+x1], src.pix[sy*src.width+(x0-x):])
	}
}

// HighestVisibleColorIndex returns the numerically highest index used by a
// visible pixel, or 0 if none is visible.
func (b *Bitmap) HighestVisibleColorIndex(alpha []uint8, threshold int) int {
	var used [256]bool
	for _, v := range b.pix {
		used[v] = true
	}
	for i := 255; i > 0; i-- {
		if used[i] && visible(alpha, threshold, uint8(i)) {
			return i
		}
	}
	return 0
}

// PrimaryColorIndex returns the index with the highest luminance among the
// indices used by visible pixels. Ties resolve to the lowest index. If no
// pixel is visible, 0 is returned.
func (b *Bitmap) PrimaryColorIndex(alpha []uint8, threshold int, luma []uint8) int {
	var used [256]bool
	for _, v := range b.pix {
		used[v] = true
	}
	best, bestLuma := 0, -1
	for i := range used {
		if !used[i] || !visible(alpha, threshold, uint8(i)) {
			continue
		}
		l := 0
		if i < len(luma) {
			l = int(luma[i])
		}
		if l > bestLuma {
			best, bestLuma = i, l
		}
	}
	return best
}

// Histogram returns the number of pixels per index.
func (b *Bitmap) Histogram() [256]int {
	var h [256]int
	for _, v := range b.pix {
		h[v]++
	}
	return h
}
