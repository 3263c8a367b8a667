package subpic

import (
	"math"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/filter"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
)

// TransformParams describes how a decoded caption is fitted to the output.
type TransformParams struct {
	// Width and Height are the target frame size. Zero keeps the frame
	// size of the caption.
	Width, Height int

	// MaxColors is the palette capacity of the target. Four or fewer
	// selects DVD color normalization. Zero keeps the palette.
	MaxColors int

	// Filter resamples the caption when the frame size changes.
	Filter filter.Filter

	// ErasePatches are blanked before anything else. Nil uses the patches
	// of the caption.
	ErasePatches []bitmap.ErasePatch

	// Crop trims borders below the alpha crop threshold.
	Crop bool
}

// params returns the transform of captions written to t.
func (s *Session) params(t Target) TransformParams {
	return TransformParams{
		Width:     t.Resolution.Width,
		Height:    t.Resolution.Height,
		MaxColors: t.Format.MaxColors(),
		Filter:    s.settings.Filter,
		Crop:      s.settings.Crop,
	}
}

// Transform fits a decoded caption to the output: it blanks erase patches,
// crops transparent borders, scales to the target frame and reduces the
// palette to the target capacity. pic's geometry is updated; its original
// geometry is saved first, so [picture.SubPicture.Revert] undoes the
// change. bm and pal are not modified.
func (s *Session) Transform(pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette, tp TransformParams) (*bitmap.Bitmap, *palette.Palette) {
	pic.SaveOriginal()
	bm = bm.Clone()

	patches := tp.ErasePatches
	if patches == nil {
		patches = pic.ErasePatches
	}
	if len(patches) > 0 {
		bm.ApplyErasePatches(patches, uint8(pal.TransparentIndex()))
	}

	if tp.Crop {
		b := bm.CroppingBounds(pal.Alphas(), s.settings.AlphaCropThreshold)
		if !b.IsEmpty() && (b.Width() < bm.Width() || b.Height() < bm.Height()) {
			bm = bm.Crop(b.XMin, b.YMin, b.Width(), b.Height())
			pic.Image.X += b.XMin
			pic.Image.Y += b.YMin
			s.log.Debug("subpic: cropped", "x", pic.Image.X, "y", pic.Image.Y, "w", bm.Width(), "h", bm.Height())
		}
	}
	pic.Image.Width, pic.Image.Height = bm.Width(), bm.Height()

	w, h := tp.Width, tp.Height
	if w <= 0 || h <= 0 {
		w, h = pic.Width, pic.Height
	}
	if (w != pic.Width || h != pic.Height) && pic.Width > 0 && pic.Height > 0 {
		bm, pal = s.scale(pic, bm, pal, w, h, tp.Filter)
	}

	switch {
	case tp.MaxColors > 0 && tp.MaxColors <= 4:
		bm, pal = palette.Normalize(bm, pal, s.settings.thresholds())
	case tp.MaxColors > 0 && pal.Size() > tp.MaxColors:
		bm, pal = palette.Reduce(bm, pal, tp.MaxColors)
	}

	bm = fitFrame(pic, bm)
	return bm, pal
}

// scale resamples the caption from the frame size of pic to w×h. The
// bitmap is expanded to true color for filtering and quantized again.
func (s *Session) scale(pic *picture.SubPicture, bm *bitmap.Bitmap, pal *palette.Palette, w, h int, f filter.Filter) (*bitmap.Bitmap, *palette.Palette) {
	if f == nil {
		f = filter.Bilinear
	}
	fx := float64(w) / float64(pic.Width)
	fy := float64(h) / float64(pic.Height)
	nw := min(max(int(math.Round(float64(bm.Width())*fx)), 1), w)
	nh := min(max(int(math.Round(float64(bm.Height())*fy)), 1), h)

	img := filter.Resize(bm.ToNRGBA(pal), nw, nh, f)
	bm, pal = palette.Quantize(img, 256, pal.ColorSpace())

	pic.Image = scaleRect(pic.Image, fx, fy)
	pic.Image.Width, pic.Image.Height = nw, nh
	pic.Window = scaleRect(pic.Window, fx, fy)
	for i, p := range pic.ErasePatches {
		r := scaleRect(picture.Rect(p), fx, fy)
		pic.ErasePatches[i] = bitmap.ErasePatch(r)
	}
	pic.Width, pic.Height = w, h
	s.log.Debug("subpic: scaled", "filter", f.Name(), "w", nw, "h", nh, "frame", Resolution{w, h})
	return bm, pal
}

func scaleRect(r picture.Rect, fx, fy float64) picture.Rect {
	x0 := int(math.Round(float64(r.X) * fx))
	y0 := int(math.Round(float64(r.Y) * fy))
	x1 := int(math.Round(float64(r.X+r.Width) * fx))
	y1 := int(math.Round(float64(r.Y+r.Height) * fy))
	return picture.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// fitFrame moves the image of pic into the frame, cutting it if it is
// larger than the frame, and grows the window to hold the image.
func fitFrame(pic *picture.SubPicture, bm *bitmap.Bitmap) *bitmap.Bitmap {
	if bm.Width() > pic.Width || bm.Height() > pic.Height {
		bm = bm.Crop(0, 0, min(bm.Width(), pic.Width), min(bm.Height(), pic.Height))
	}
	img := &pic.Image
	img.Width, img.Height = bm.Width(), bm.Height()
	img.X = min(max(img.X, 0), pic.Width-img.Width)
	img.Y = min(max(img.Y, 0), pic.Height-img.Height)

	frame := picture.Rect{Width: pic.Width, Height: pic.Height}
	if !frame.Contains(pic.Window) || !pic.Window.Contains(*img) {
		pic.Window = *img
	}
	return bm
}
