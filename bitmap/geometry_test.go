package bitmap

import (
	"image/color"
	"slices"
	"testing"
)

// alphaTable marks index 1 visible and everything else transparent.
func alphaTable() []uint8 {
	a := make([]uint8, 256)
	a[1] = 255
	a[2] = 40
	return a
}

func TestFillRectangle_Clipping(t *testing.T) {
	const w, h = 12, 7
	tests := []struct {
		name       string
		x, y, w, h int
		want       int // number of pixels expected to be filled
	}{
		{"inside", 2, 2, 3, 2, 6},
		{"full", 0, 0, w, h, w * h},
		{"oversized", -5, -5, 100, 100, w * h},
		{"left overlap", -2, 1, 4, 2, 4},
		{"bottom right overlap", w - 2, h - 1, 5, 5, 2},
		{"fully outside right", w, 0, 3, 3, 0},
		{"fully outside above", 0, -10, 5, 5, 0},
		{"negative size", 3, 3, -2, 4, 0},
		{"zero size", 3, 3, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(w, h)
			b.FillRectangle(tt.x, tt.y, tt.w, tt.h, 9)

			got := 0
			for y := range h {
				for x := range w {
					if b.At(x, y) != 9 {
						continue
					}
					got++
					if x < tt.x || x >= tt.x+tt.w || y < tt.y || y >= tt.y+tt.h {
						t.Errorf("pixel (%d,%d) filled outside rectangle", x, y)
					}
				}
			}
			if got != tt.want {
				t.Errorf("filled %d pixels, want %d", got, tt.want)
			}
			if len(b.Pix()) != w*h {
				t.Errorf("pixel buffer length changed to %d", len(b.Pix()))
			}
		})
	}
}

func TestCroppingBounds_Rectangle(t *testing.T) {
	const w, h = 20, 10
	alpha := alphaTable()
	for y := 0; y < h; y += 3 {
		for x := 0; x < w; x += 4 {
			for _, size := range [][2]int{{1, 1}, {3, 2}, {w - x, h - y}} {
				b := New(w, h)
				b.FillRectangle(x, y, size[0], size[1], 1)
				got := b.CroppingBounds(alpha, 128)
				want := Bounds{XMin: x, XMax: x + size[0] - 1, YMin: y, YMax: y + size[1] - 1}
				want.XMax = min(want.XMax, w-1)
				want.YMax = min(want.YMax, h-1)
				if got != want {
					t.Fatalf("rect at (%d,%d) size %v: bounds = %+v, want %+v", x, y, size, got, want)
				}
			}
		}
	}
}

func TestCroppingBounds_Threshold(t *testing.T) {
	b := New(8, 8)
	b.FillRectangle(1, 1, 2, 2, 2) // alpha 40
	b.FillRectangle(5, 5, 1, 1, 1) // alpha 255

	if got := b.CroppingBounds(alphaTable(), 128); got != (Bounds{5, 5, 5, 5}) {
		t.Errorf("threshold 128: bounds = %+v", got)
	}
	if got := b.CroppingBounds(alphaTable(), 40); got != (Bounds{1, 5, 1, 5}) {
		t.Errorf("threshold 40: bounds = %+v", got)
	}
}

func TestCroppingBounds_Empty(t *testing.T) {
	b := NewFilled(5, 5, 3)
	got := b.CroppingBounds(alphaTable(), 1)
	if got != EmptyBounds || !got.IsEmpty() {
		t.Errorf("bounds = %+v, want EmptyBounds", got)
	}
	if got.Width() != 0 || got.Height() != 0 {
		t.Errorf("empty bounds size = %dx%d", got.Width(), got.Height())
	}

	if got := New(0, 0).CroppingBounds(alphaTable(), 1); !got.IsEmpty() {
		t.Errorf("0x0 bitmap bounds = %+v", got)
	}
}

func TestCrop_IsCopy(t *testing.T) {
	b := New(6, 4)
	b.FillRectangle(2, 1, 2, 2, 7)
	c := b.Crop(2, 1, 2, 2)
	if c.Width() != 2 || c.Height() != 2 {
		t.Fatalf("crop size = %dx%d", c.Width(), c.Height())
	}
	for _, v := range c.Pix() {
		if v != 7 {
			t.Fatalf("crop pixels = %v", c.Pix())
		}
	}
	c.Set(0, 0, 1)
	if b.At(2, 1) != 7 {
		t.Error("modifying the crop changed the source")
	}
}

func TestCrop_OutsideFilledWithZero(t *testing.T) {
	b := NewFilled(3, 3, 5)
	c := b.Crop(-1, -1, 3, 3)
	want := []uint8{0, 0, 0, 0, 5, 5, 0, 5, 5}
	for i, v := range c.Pix() {
		if v != want[i] {
			t.Fatalf("crop = %v, want %v", c.Pix(), want)
		}
	}
}

func TestHighestVisibleColorIndex(t *testing.T) {
	alpha := make([]uint8, 256)
	alpha[3], alpha[5], alpha[9] = 255, 255, 10
	b := New(4, 1)
	copy(b.Pix(), []uint8{3, 9, 5, 0})

	if got := b.HighestVisibleColorIndex(alpha, 128); got != 5 {
		t.Errorf("HighestVisibleColorIndex = %d, want 5", got)
	}
	if got := b.HighestVisibleColorIndex(alpha, 1); got != 9 {
		t.Errorf("HighestVisibleColorIndex(thr 1) = %d, want 9", got)
	}
	if got := New(2, 2).HighestVisibleColorIndex(alpha, 1); got != 0 {
		t.Errorf("all-zero bitmap = %d, want 0", got)
	}
}

func TestPrimaryColorIndex(t *testing.T) {
	alpha := make([]uint8, 256)
	luma := make([]uint8, 256)
	alpha[1], luma[1] = 255, 100
	alpha[2], luma[2] = 255, 200
	alpha[3], luma[3] = 0, 250 // invisible
	alpha[4], luma[4] = 255, 200

	b := New(5, 1)
	copy(b.Pix(), []uint8{1, 2, 3, 4, 1})
	if got := b.PrimaryColorIndex(alpha, 128, luma); got != 2 {
		t.Errorf("PrimaryColorIndex = %d, want 2 (tie resolves to lowest)", got)
	}
}

func TestApplyErasePatches(t *testing.T) {
	b := NewFilled(10, 10, 1)
	b.ApplyErasePatches([]ErasePatch{{X: 0, Y: 0, Width: 2, Height: 2}, {X: 8, Y: 8, Width: 5, Height: 5}}, 0)
	h := b.Histogram()
	if h[0] != 8 || h[1] != 92 {
		t.Errorf("histogram = %d zeros, %d ones", h[0], h[1])
	}
}

type testLookup []color.NRGBA

func (l testLookup) Color(i int) color.NRGBA {
	if i < len(l) {
		return l[i]
	}
	return color.NRGBA{}
}

func TestToNRGBA(t *testing.T) {
	b := New(2, 1)
	b.Set(1, 0, 1)
	img := b.ToNRGBA(testLookup{{0, 0, 0, 0}, {10, 20, 30, 255}})
	if got := img.NRGBAAt(1, 0); got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("pixel = %v", got)
	}
	if got := img.NRGBAAt(0, 0); got.A != 0 {
		t.Errorf("transparent pixel = %v", got)
	}
}

func TestPaste(t *testing.T) {
	dst := New(4, 3)
	src := NewFilled(3, 2, 7)
	dst.Paste(src, 2, 2) // only the top left 2x1 part fits
	want := []uint8{
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 7, 7,
	}
	if !slices.Equal(dst.Pix(), want) {
		t.Errorf("pix = %v, want %v", dst.Pix(), want)
	}
	dst.Paste(src, -2, -1)
	if dst.At(0, 0) != 7 || dst.At(1, 0) != 0 {
		t.Errorf("negative offset paste: %v", dst.Pix())
	}
}
