package filter

import (
	"image"
	"math"
	"strconv"

	"github.com/gogpu/subpic/internal/cache"
	"github.com/gogpu/subpic/internal/mathx"
)

// contributor lists the source samples that make up one output sample.
// Weights[k] applies to source index Start+k. The weights sum to 1.
type contributor struct {
	Start   int
	Weights []float64
}

type tableKey struct {
	filter   string
	src, dst int
}

func hashTableKey(k tableKey) uint64 {
	return cache.StringHasher(k.filter + "/" + strconv.Itoa(k.src) + "/" + strconv.Itoa(k.dst))
}

var tables = cache.NewSharded[tableKey, []contributor](32, hashTableKey)

// contributors returns the cached table for resampling src samples to dst
// samples with f.
func contributors(f Filter, src, dst int) []contributor {
	return tables.GetOrCreate(tableKey{f.Name(), src, dst}, func() []contributor {
		return buildContributors(f, src, dst)
	})
}

func buildContributors(f Filter, src, dst int) []contributor {
	out := make([]contributor, dst)
	scale := float64(dst) / float64(src)
	// when shrinking, stretch the kernel so every source sample contributes
	support := f.Radius()
	fscale := 1.0
	if scale < 1 {
		support /= scale
		fscale = scale
	}
	for i := range out {
		center := (float64(i)+0.5)/scale - 0.5
		left := int(math.Floor(center - support))
		right := int(math.Ceil(center + support))
		lo := mathx.Clamp(left, 0, src-1)
		hi := mathx.Clamp(right, 0, src-1)
		w := make([]float64, hi-lo+1)
		var sum float64
		for j := left; j <= right; j++ {
			v := f.Weight((float64(j) - center) * fscale)
			if v == 0 {
				continue
			}
			w[mathx.Clamp(j, 0, src-1)-lo] += v
			sum += v
		}
		if sum == 0 {
			// kernel vanished between samples: nearest neighbour
			w[mathx.Clamp(int(math.Round(center)), 0, src-1)-lo] = 1
			sum = 1
		}
		for k := range w {
			w[k] /= sum
		}
		out[i] = contributor{Start: lo, Weights: w}
	}
	return out
}

// Resize resamples src to w×h pixels with f.
//
// Color channels are premultiplied by alpha during convolution, so fully
// transparent pixels do not bleed their color into visible neighbours.
// Source pixels outside the image repeat the nearest edge pixel.
func Resize(src *image.NRGBA, w, h int, f Filter) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return dst
	}

	// premultiplied float copy of the source
	pm := make([]float32, sw*sh*4)
	for y := range sh {
		row := src.Pix[y*src.Stride : y*src.Stride+sw*4]
		for x := range sw {
			s := row[x*4 : x*4+4]
			a := float32(s[3]) / 255
			d := pm[(y*sw+x)*4:]
			d[0] = float32(s[0]) * a
			d[1] = float32(s[1]) * a
			d[2] = float32(s[2]) * a
			d[3] = float32(s[3])
		}
	}

	// Pass 1: horizontal (pm -> tmp, sh rows of w pixels)
	cx := contributors(f, sw, w)
	tmp := make([]float32, sh*w*4)
	for y := range sh {
		in := pm[y*sw*4:]
		for x, c := range cx {
			var r, g, b, a float32
			for k, wt := range c.Weights {
				p := in[(c.Start+k)*4:]
				fw := float32(wt)
				r += p[0] * fw
				g += p[1] * fw
				b += p[2] * fw
				a += p[3] * fw
			}
			o := tmp[(y*w+x)*4:]
			o[0], o[1], o[2], o[3] = r, g, b, a
		}
	}

	// Pass 2: vertical (tmp -> dst)
	cy := contributors(f, sh, h)
	for y, c := range cy {
		out := dst.Pix[y*dst.Stride:]
		for x := range w {
			var r, g, b, a float32
			for k, wt := range c.Weights {
				p := tmp[((c.Start+k)*w+x)*4:]
				fw := float32(wt)
				r += p[0] * fw
				g += p[1] * fw
				b += p[2] * fw
				a += p[3] * fw
			}
			o := out[x*4 : x*4+4]
			alpha := mathx.ClampByte(float64(a))
			if alpha == 0 {
				o[0], o[1], o[2], o[3] = 0, 0, 0, 0
				continue
			}
			inv := 255 / float64(a)
			o[0] = mathx.ClampByte(float64(r) * inv)
			o[1] = mathx.ClampByte(float64(g) * inv)
			o[2] = mathx.ClampByte(float64(b) * inv)
			o[3] = alpha
		}
	}
	return dst
}
