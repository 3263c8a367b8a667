package spu

import (
	"errors"
	"image/color"
	"testing"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
)

func TestEncodeDecode(t *testing.T) {
	bm := bitmap.New(64, 9)
	bm.FillRectangle(2, 2, 60, 5, 1)
	bm.FillRectangle(10, 3, 4, 3, 3)
	pal := palette.New(4, palette.BT709)
	_ = pal.SetColor(1, color.NRGBA{0xfa, 0xfa, 0x33, 0xff})
	_ = pal.SetColor(3, color.NRGBA{0, 0, 0, 0xff})
	dvd := palette.DefaultDVD(palette.BT709)

	pic := &picture.SubPicture{Start: 1000, End: 1000 + 3*DelayTicks, Forced: true,
		Image: picture.Rect{X: 30, Y: 400, Width: 64, Height: 9}}
	unit, err := Encode(pic, bm, pal, dvd)
	if err != nil {
		t.Fatal(err)
	}
	u, err := Parse(unit)
	if err != nil {
		t.Fatal(err)
	}
	got := u.Picture(picture.KindVobSub, 1000)
	if got.Start != 1000 || got.End != pic.End || !got.Forced || got.Image != pic.Image {
		t.Errorf("picture = %d..%d forced=%v %+v", got.Start, got.End, got.Forced, got.Image)
	}
	if got.SPU.Colors != [4]uint8{0, 10, 0, 0} {
		t.Errorf("colors = %v", got.SPU.Colors)
	}
	if got.SPU.Even.Offset != HeaderSize || got.SPU.Odd.Offset != HeaderSize+got.SPU.Even.Size {
		t.Errorf("fields = %+v %+v", got.SPU.Even, got.SPU.Odd)
	}

	dbm, dpal, st, err := Decode(unit, dvd)
	if err != nil {
		t.Fatal(err)
	}
	if !dbm.Equal(bm) || st.Clipped != 0 || st.Truncated {
		t.Errorf("decoded bitmap differs, stats %+v", st)
	}
	if dpal.Size() != 4 || dpal.Color(1) != dvd.Color(10) || dpal.Alpha(0) != 0 {
		t.Errorf("palette = %v", dpal.Colors())
	}
}

func TestEncode_Rejects(t *testing.T) {
	dvd := palette.DefaultDVD(palette.BT709)
	pal := palette.New(4, palette.BT709)
	tests := []struct {
		name string
		pic  picture.SubPicture
		bm   *bitmap.Bitmap
		want error
	}{
		{"too many colors", picture.SubPicture{}, bitmap.NewFilled(4, 4, 4), picture.ErrCapacity},
		{"empty", picture.SubPicture{}, bitmap.New(0, 0), picture.ErrInvalid},
		{"negative", picture.SubPicture{Image: picture.Rect{X: -1}}, bitmap.New(4, 4), picture.ErrInvalid},
		{"beyond 12 bits", picture.SubPicture{Image: picture.Rect{Y: 4094}}, bitmap.New(4, 4), picture.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(&tt.pic, tt.bm, pal, dvd); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
