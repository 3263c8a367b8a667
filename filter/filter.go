// Package filter provides the resampling kernels used to change the
// resolution of subtitle images.
//
// A [Filter] is a symmetric 1D kernel with finite support. [Resize] applies a
// filter separably: rows first, then columns. Weights for every output
// position are precomputed into contributor tables, normalized to sum to 1,
// and cached, since a stream usually resizes many captions with the same
// dimensions.
//
// Available kernels:
//
//	Bilinear   radius 1
//	Triangle   radius 1
//	Bell       radius 1.5
//	Bicubic    radius 2 (a = -0.5)
//	BSpline    radius 2
//	Hermite    radius 1
//	Lanczos3   radius 3
//	Mitchell   radius 2 (B = C = 1/3)
package filter

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Filter is a resampling kernel.
type Filter interface {
	// Name returns the registry name of the filter.
	Name() string

	// Radius returns the support: Weight(x) is zero for |x| >= Radius().
	Radius() float64

	// Weight evaluates the kernel at distance x from the sample center.
	Weight(x float64) float64
}

type kernel struct {
	name   string
	radius float64
	fn     func(x float64) float64
}

func (k *kernel) Name() string    { return k.name }
func (k *kernel) Radius() float64 { return k.radius }

func (k *kernel) Weight(x float64) float64 {
	x = math.Abs(x)
	if x >= k.radius {
		return 0
	}
	return k.fn(x)
}

func (k *kernel) String() string { return k.name }

func triangle(x float64) float64 {
	return 1 - x
}

func bell(x float64) float64 {
	if x < 0.5 {
		return 0.75 - x*x
	}
	x -= 1.5
	return 0.5 * x * x
}

// cubic is the Keys cubic convolution kernel with parameter a.
func cubic(a float64) func(float64) float64 {
	return func(x float64) float64 {
		if x < 1 {
			return ((a+2)*x-(a+3))*x*x + 1
		}
		return ((a*x-5*a)*x+8*a)*x - 4*a
	}
}

func bspline(x float64) float64 {
	if x < 1 {
		return (0.5*x-1)*x*x + 2.0/3
	}
	x = 2 - x
	return x * x * x / 6
}

func hermite(x float64) float64 {
	return (2*x-3)*x*x + 1
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	x *= math.Pi
	return math.Sin(x) / x
}

func lanczos3(x float64) float64 {
	return sinc(x) * sinc(x/3)
}

// mitchell is the Mitchell-Netravali kernel with parameters b and c.
func mitchell(b, c float64) func(float64) float64 {
	return func(x float64) float64 {
		x2 := x * x
		x3 := x2 * x
		if x < 1 {
			return ((12-9*b-6*c)*x3 + (-18+12*b+6*c)*x2 + (6 - 2*b)) / 6
		}
		return ((-b-6*c)*x3 + (6*b+30*c)*x2 + (-12*b-48*c)*x + (8*b + 24*c)) / 6
	}
}

// The built-in filters.
var (
	Bilinear Filter = &kernel{"bilinear", 1, triangle}
	Triangle Filter = &kernel{"triangle", 1, triangle}
	Bell     Filter = &kernel{"bell", 1.5, bell}
	Bicubic  Filter = &kernel{"bicubic", 2, cubic(-0.5)}
	BSpline  Filter = &kernel{"bicubic-spline", 2, bspline}
	Hermite  Filter = &kernel{"hermite", 1, hermite}
	Lanczos3 Filter = &kernel{"lanczos3", 3, lanczos3}
	Mitchell Filter = &kernel{"mitchell", 2, mitchell(1.0/3, 1.0/3)}
)

var registry = map[string]Filter{}

func init() {
	for _, f := range []Filter{Bilinear, Triangle, Bell, Bicubic, BSpline, Hermite, Lanczos3, Mitchell} {
		registry[f.Name()] = f
	}
	registry["bspline"] = BSpline
}

// ByName looks up a filter by name, ignoring case.
func ByName(name string) (Filter, error) {
	if f, ok := registry[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("filter: unknown filter %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Names returns the canonical filter names in sorted order.
func Names() []string {
	var names []string
	for k, f := range registry {
		if k == f.Name() {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
