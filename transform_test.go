package subpic

import (
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/filter"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
)

// blockImage is a transparent 20x10 bitmap with an opaque 4x2 block at 5,3.
func blockImage() (*bitmap.Bitmap, *palette.Palette) {
	bm := bitmap.New(20, 10)
	bm.FillRectangle(5, 3, 4, 2, 1)
	pal := palette.New(2, palette.BT709)
	_ = pal.SetColor(1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return bm, pal
}

func blockPicture() *picture.SubPicture {
	return &picture.SubPicture{
		Width: 100, Height: 50,
		Window: picture.Rect{X: 10, Y: 10, Width: 20, Height: 10},
		Image:  picture.Rect{X: 10, Y: 10, Width: 20, Height: 10},
	}
}

func TestTransform_Crop(t *testing.T) {
	s := NewSession(NewSettings())
	bm, pal := blockImage()
	pic := blockPicture()

	got, gotPal := s.Transform(pic, bm, pal, TransformParams{Crop: true})
	if got.Width() != 4 || got.Height() != 2 || got.At(0, 0) != 1 {
		t.Errorf("cropped to %dx%d", got.Width(), got.Height())
	}
	if want := (picture.Rect{X: 15, Y: 13, Width: 4, Height: 2}); pic.Image != want {
		t.Errorf("image = %+v, want %+v", pic.Image, want)
	}
	if pic.Window != blockPicture().Window {
		t.Errorf("window changed to %+v", pic.Window)
	}
	if !gotPal.Equal(pal) {
		t.Error("palette changed without a capacity limit")
	}
	if bm.Width() != 20 {
		t.Error("input bitmap modified")
	}

	pic.Revert()
	if diff := cmp.Diff(blockPicture(), pic); diff != "" {
		t.Errorf("revert mismatch (-want +got):\n%s", diff)
	}
}

func TestTransform_ErasePatches(t *testing.T) {
	s := NewSession(NewSettings())
	bm, pal := blockImage()
	pic := blockPicture()
	pic.ErasePatches = []bitmap.ErasePatch{{X: 4, Y: 2, Width: 3, Height: 4}}

	got, _ := s.Transform(pic, bm, pal, TransformParams{Crop: true})
	// columns 5 and 6 are blanked, 7 and 8 remain
	if got.Width() != 2 || got.Height() != 2 || pic.Image.X != 17 {
		t.Errorf("after erase: %dx%d at %d", got.Width(), got.Height(), pic.Image.X)
	}

	// explicit patches replace the caption's own
	pic = blockPicture()
	pic.ErasePatches = []bitmap.ErasePatch{{X: 0, Y: 0, Width: 20, Height: 10}}
	got, _ = s.Transform(pic, bm, pal, TransformParams{ErasePatches: []bitmap.ErasePatch{}})
	if got.At(5, 3) != 1 {
		t.Error("caption patches applied although explicit patches were given")
	}
}

func TestTransform_Scale(t *testing.T) {
	s := NewSession(NewSettings())
	bm := bitmap.NewFilled(20, 10, 1)
	_, pal := blockImage()
	pic := blockPicture()

	got, gotPal := s.Transform(pic, bm, pal, TransformParams{Width: 200, Height: 100, Filter: filter.Lanczos3})
	if got.Width() != 40 || got.Height() != 20 {
		t.Fatalf("scaled to %dx%d", got.Width(), got.Height())
	}
	if want := (picture.Rect{X: 20, Y: 20, Width: 40, Height: 20}); pic.Image != want || pic.Window != want {
		t.Errorf("image %+v window %+v, want %+v", pic.Image, pic.Window, want)
	}
	if pic.Width != 200 || pic.Height != 100 {
		t.Errorf("frame %dx%d", pic.Width, pic.Height)
	}
	if c := gotPal.Color(int(got.At(20, 10))); c != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("center pixel = %v", c)
	}
	if pic.Original == nil || pic.Original.Width != 100 {
		t.Error("original geometry not saved")
	}
}

func TestTransform_Colors(t *testing.T) {
	s := NewSession(NewSettings())
	bm := bitmap.New(8, 2)
	pal := palette.New(8, palette.BT709)
	for i := 1; i < 8; i++ {
		bm.Set(i, 0, uint8(i))
		bm.Set(i, 1, uint8(i))
		v := uint8(i * 36)
		_ = pal.SetColor(i, color.NRGBA{R: v, G: v, B: v, A: 255})
	}
	pic := &picture.SubPicture{Width: 100, Height: 100, Image: picture.Rect{Width: 8, Height: 2}}

	for _, tt := range []struct {
		max, want int
	}{
		{4, 4},
		{5, 5},
		{0, 8},
		{255, 8},
	} {
		gotBM, gotPal := s.Transform(pic.Clone(), bm, pal, TransformParams{MaxColors: tt.max})
		if gotPal.Size() != tt.want {
			t.Errorf("MaxColors %d: palette has %d entries, want %d", tt.max, gotPal.Size(), tt.want)
		}
		for _, v := range gotBM.Pix() {
			if int(v) >= gotPal.Size() {
				t.Fatalf("MaxColors %d: index %d outside palette", tt.max, v)
			}
		}
	}

	b1, p1 := s.Transform(pic.Clone(), bm, pal, TransformParams{MaxColors: 4})
	b2, p2 := s.Transform(pic.Clone(), bm, pal, TransformParams{MaxColors: 4})
	if !b1.Equal(b2) || !p1.Equal(p2) {
		t.Error("normalization is not deterministic")
	}
}

func TestFitFrame(t *testing.T) {
	tests := []struct {
		name          string
		image, window picture.Rect
		w, h          int
		wantImage     picture.Rect
		wantWindow    picture.Rect
	}{
		{"inside", picture.Rect{X: 10, Y: 10, Width: 20, Height: 10}, picture.Rect{X: 0, Y: 0, Width: 50, Height: 50}, 20, 10,
			picture.Rect{X: 10, Y: 10, Width: 20, Height: 10}, picture.Rect{X: 0, Y: 0, Width: 50, Height: 50}},
		{"right edge", picture.Rect{X: 95, Y: 10, Width: 20, Height: 10}, picture.Rect{X: 95, Y: 10, Width: 20, Height: 10}, 20, 10,
			picture.Rect{X: 80, Y: 10, Width: 20, Height: 10}, picture.Rect{X: 80, Y: 10, Width: 20, Height: 10}},
		{"negative", picture.Rect{X: -5, Y: -1, Width: 20, Height: 10}, picture.Rect{}, 20, 10,
			picture.Rect{X: 0, Y: 0, Width: 20, Height: 10}, picture.Rect{X: 0, Y: 0, Width: 20, Height: 10}},
		{"too large", picture.Rect{X: 0, Y: 0, Width: 150, Height: 10}, picture.Rect{}, 150, 10,
			picture.Rect{X: 0, Y: 0, Width: 100, Height: 10}, picture.Rect{X: 0, Y: 0, Width: 100, Height: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pic := &picture.SubPicture{Width: 100, Height: 50, Image: tt.image, Window: tt.window}
			bm := fitFrame(pic, bitmap.New(tt.w, tt.h))
			if bm.Width() != tt.wantImage.Width || pic.Image != tt.wantImage || pic.Window != tt.wantWindow {
				t.Errorf("image %+v window %+v bitmap %d wide", pic.Image, pic.Window, bm.Width())
			}
			if err := pic.Validate(); err != nil {
				t.Error(err)
			}
		})
	}
}
