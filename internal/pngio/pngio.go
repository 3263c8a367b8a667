// Package pngio loads and stores indexed caption images as PNG files.
//
// Paletted PNGs map directly to a bitmap and palette. True color images are
// normalized to NRGBA and quantized.
package pngio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/palette"
)

// MaxColors is the palette size used when quantizing true color images.
// Blu-ray streams reserve palette entry 0xff.
const MaxColors = 255

// I/O errors.
var (
	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("pngio: empty data")

	// ErrPaletteSize is returned when a palette does not fit a PNG.
	ErrPaletteSize = errors.New("pngio: palette has more than 256 entries")
)

// Load loads the PNG file at path.
func Load(path string, cs palette.ColorSpace) (*bitmap.Bitmap, *palette.Palette, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("pngio: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f, cs)
}

// LoadFromBytes decodes PNG data held in memory.
func LoadFromBytes(data []byte, cs palette.ColorSpace) (*bitmap.Bitmap, *palette.Palette, error) {
	if len(data) == 0 {
		return nil, nil, ErrEmptyData
	}
	return Decode(bytes.NewReader(data), cs)
}

// Decode decodes a PNG image from r.
func Decode(r io.Reader, cs palette.ColorSpace) (*bitmap.Bitmap, *palette.Palette, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, nil, fmt.Errorf("pngio: decode PNG: %w", err)
	}
	if p, ok := img.(*image.Paletted); ok && len(p.Palette) > 0 {
		bm, pal := fromPaletted(p, cs)
		return bm, pal, nil
	}
	bm, pal := palette.Quantize(ToNRGBA(img), MaxColors, cs)
	return bm, pal, nil
}

func fromPaletted(img *image.Paletted, cs palette.ColorSpace) (*bitmap.Bitmap, *palette.Palette) {
	b := img.Bounds()
	bm := bitmap.New(b.Dx(), b.Dy())
	for y := range b.Dy() {
		start := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(bm.Row(y), img.Pix[start:start+b.Dx()])
	}
	pal := palette.New(len(img.Palette), cs)
	for i, c := range img.Palette {
		_ = pal.SetColor(i, color.NRGBAModel.Convert(c).(color.NRGBA))
	}
	return bm, pal
}

// ToNRGBA converts img to a non-premultiplied image with its origin at 0,0.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Save saves bm as a paletted PNG file.
func Save(path string, bm *bitmap.Bitmap, pal *palette.Palette) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("pngio: create file: %w", err)
	}

	if err := Encode(f, bm, pal); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

// Encode encodes bm as a paletted PNG to w.
func Encode(w io.Writer, bm *bitmap.Bitmap, pal *palette.Palette) error {
	if pal.Size() > 256 {
		return ErrPaletteSize
	}
	colors := pal.Colors()
	if len(colors) == 0 {
		colors = color.Palette{color.NRGBA{}}
	}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(w, bm.Paletted(colors)); err != nil {
		return fmt.Errorf("pngio: encode PNG: %w", err)
	}
	return nil
}

// EncodeToBytes encodes bm as a paletted PNG and returns the bytes.
func EncodeToBytes(bm *bitmap.Bitmap, pal *palette.Palette) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, bm, pal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
