package filter

import (
	"image"

	"golang.org/x/image/draw"
)

// DrawKernel adapts f to a [draw.Kernel], so it can be used with the
// golang.org/x/image/draw scalers.
func DrawKernel(f Filter) *draw.Kernel {
	return &draw.Kernel{Support: f.Radius(), At: f.Weight}
}

// ScaleInto scales src into r of dst with f using the x/image/draw
// scaler. Unlike [Resize] it works on any image types and composes with Over.
func ScaleInto(dst draw.Image, r image.Rectangle, src image.Image, f Filter) {
	DrawKernel(f).Scale(dst, r, src, src.Bounds(), draw.Over, nil)
}
