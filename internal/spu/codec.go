package spu

import (
	"fmt"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/internal/rle"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
)

// maxCoord is the largest coordinate the 12-bit area fields can hold.
const maxCoord = 0xfff

// Picture returns the caption described by the unit. pts is the timestamp
// of the packet that carried the unit. The frame size is left for the
// caller. End equals Start when the unit has no stop command.
func (u *Unit) Picture(kind picture.Kind, pts int64) *picture.SubPicture {
	img := picture.Rect{X: u.X1, Y: u.Y1, Width: u.Width(), Height: u.Height()}
	pic := &picture.SubPicture{
		Kind:   kind,
		Start:  pts + u.StartDelay,
		End:    pts + u.StopDelay,
		Forced: u.Forced,
		Window: img,
		Image:  img,
		SPU: &picture.SPUPayload{
			ControlOffset: int64(u.ControlOffset),
			Colors:        u.Colors,
			Alphas:        u.Alphas,
		},
	}
	if !u.HasStop || u.StopDelay <= u.StartDelay {
		pic.End = pic.Start
	}
	pic.SPU.Even = picture.Fragment{Offset: int64(u.EvenOffset), Size: int64(u.fieldEnd(u.EvenOffset) - u.EvenOffset)}
	pic.SPU.Odd = picture.Fragment{Offset: int64(u.OddOffset), Size: int64(u.fieldEnd(u.OddOffset) - u.OddOffset)}
	return pic
}

// Decode parses the unit in buf and decodes its image. The returned palette
// has four entries taken from dvd.
func Decode(buf []byte, dvd *palette.Palette) (*bitmap.Bitmap, *palette.Palette, rle.Stats, error) {
	u, err := Parse(buf)
	if err != nil {
		return nil, nil, rle.Stats{}, err
	}
	even, odd := u.Fields(buf)
	bm, st := rle.DecodeDVD(u.Width(), u.Height(), even, odd)
	return bm, u.Palette(dvd), st, nil
}

// Encode builds the unit for a caption. bm may only use the indices 0..3;
// their colors are mapped to the closest entries of the 16 color dvd
// palette.
func Encode(pic *picture.SubPicture, bm *bitmap.Bitmap, pal, dvd *palette.Palette) ([]byte, error) {
	if hi := highestIndex(bm); hi > 3 {
		return nil, fmt.Errorf("%w: color index %d in a 4 color image", picture.ErrCapacity, hi)
	}
	x, y := pic.Image.X, pic.Image.Y
	x2, y2 := x+bm.Width()-1, y+bm.Height()-1
	if bm.Width() == 0 || bm.Height() == 0 || x < 0 || y < 0 || x2 > maxCoord || y2 > maxCoord {
		return nil, fmt.Errorf("%w: %dx%d image at %d,%d", picture.ErrInvalid, bm.Width(), bm.Height(), x, y)
	}
	c := Control{Forced: pic.Forced, X1: x, X2: x2, Y1: y, Y2: y2}
	c.SetPalette(pal, dvd)
	even, odd := rle.EncodeDVD(bm)
	return Build(even, odd, c, pic.End-pic.Start)
}

func highestIndex(bm *bitmap.Bitmap) int {
	hi := 0
	for _, v := range bm.Pix() {
		hi = max(hi, int(v))
	}
	return hi
}
