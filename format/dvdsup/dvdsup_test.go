package dvdsup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/internal/rle"
	"github.com/gogpu/subpic/internal/spu"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

func testCaption() (*bitmap.Bitmap, *palette.Palette) {
	bm := bitmap.New(200, 31)
	bm.FillRectangle(4, 4, 192, 23, 3)
	bm.FillRectangle(6, 6, 188, 19, 1)
	bm.FillRectangle(50, 10, 20, 5, 2)
	pal := palette.New(4, palette.BT601)
	_ = pal.SetColor(1, color.NRGBA{0xf0, 0xf0, 0xf0, 0xff})
	_ = pal.SetColor(2, color.NRGBA{0xcc, 0xcc, 0xcc, 0xff})
	_ = pal.SetColor(3, color.NRGBA{0x33, 0x33, 0xfa, 0x88})
	return bm, pal
}

func TestWriteRead(t *testing.T) {
	bm, pal := testCaption()
	pics := []*picture.SubPicture{
		{Start: 90000, End: 270000, Image: picture.Rect{X: 260, Y: 500, Width: 200, Height: 31}, Forced: true},
		{Start: 300000, End: 390000, Image: picture.Rect{X: 0, Y: 0, Width: 200, Height: 31}},
	}
	var buf bytes.Buffer
	w := NewWriter(&buf, format.WithColorSpace(palette.BT601))
	for _, p := range pics {
		if err := w.WritePicture(p, bm, pal); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(picture.NewSource(buf.Bytes()), nil, format.WithColorSpace(palette.BT601))
	if err != nil {
		t.Fatal(err)
	}
	got := r.Pictures()
	if len(got) != len(pics) {
		t.Fatalf("read %d captions", len(got))
	}
	dvd := palette.DefaultDVD(palette.BT601)
	for i, p := range got {
		wantEnd := pics[i].Start + (pics[i].End-pics[i].Start)/spu.DelayTicks*spu.DelayTicks
		if p.Start != pics[i].Start || p.End != wantEnd || p.Forced != pics[i].Forced {
			t.Errorf("caption %d: %d..%d forced=%v", i, p.Start, p.End, p.Forced)
		}
		if p.Image != pics[i].Image || p.Width != 720 || p.Height != 576 || p.Kind != picture.KindDVD {
			t.Errorf("caption %d: geometry %+v in %dx%d", i, p.Image, p.Width, p.Height)
		}
		if diff := cmp.Diff([4]uint8{0, 1, 2, 4}, p.SPU.Colors); diff != "" {
			t.Errorf("caption %d colors (-want +got):\n%s", i, diff)
		}
		dbm, dpal, err := r.Decode(p)
		if err != nil {
			t.Fatal(err)
		}
		if !dbm.Equal(bm) {
			t.Errorf("caption %d: bitmap differs", i)
		}
		want := []color.NRGBA{dvd.Color(0), dvd.Color(1), dvd.Color(2), dvd.Color(4)}
		want[0].A, want[3].A = 0, 0x88
		for k, c := range want {
			if dpal.Color(k) != c {
				t.Errorf("caption %d entry %d = %v, want %v", i, k, dpal.Color(k), c)
			}
		}
	}
}

// unitWithoutStop builds a unit whose second control sequence has no stop
// command.
func unitWithoutStop(t *testing.T, bm *bitmap.Bitmap) []byte {
	t.Helper()
	even, odd := rle.EncodeDVD(bm)
	c := spu.Control{Colors: [4]uint8{0, 1, 2, 3}, Alphas: [4]uint8{0, 15, 15, 15},
		X2: bm.Width() - 1, Y2: bm.Height() - 1}
	unit, err := spu.Build(even, odd, c, 0)
	if err != nil {
		t.Fatal(err)
	}
	seq2 := int(binary.BigEndian.Uint16(unit[2:])) + 24
	unit[seq2+4] = spu.CmdEnd
	return unit
}

func packet(pts uint32, unit []byte) []byte {
	out := []byte{'S', 'P', 0, 0, 0, 0, 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(out[2:], pts)
	return append(out, unit...)
}

func TestReader_OpenEnds(t *testing.T) {
	bm, _ := testCaption()
	unit := unitWithoutStop(t, bm)
	data := append(packet(1000, unit), packet(50000, unit)...)
	r, err := NewReader(picture.NewSource(data), nil)
	if err != nil {
		t.Fatal(err)
	}
	pics := r.Pictures()
	if len(pics) != 2 {
		t.Fatalf("read %d captions", len(pics))
	}
	if pics[0].End != 50000 {
		t.Errorf("first end = %d, want start of next caption", pics[0].End)
	}
	if pics[1].End != 50000+fallbackDuration {
		t.Errorf("last end = %d, want %d", pics[1].End, 50000+fallbackDuration)
	}
}

func TestReader_Errors(t *testing.T) {
	bm, _ := testCaption()
	unit := unitWithoutStop(t, bm)

	t.Run("bad marker", func(t *testing.T) {
		data := append(packet(0, unit), append([]byte("XX"), make([]byte, 12)...)...)
		_, err := NewReader(picture.NewSource(data), nil)
		var pe *picture.ParseError
		if !errors.As(err, &pe) || pe.Offset != int64(len(unit)+packetHeader) || pe.Index != 1 {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("truncated unit", func(t *testing.T) {
		data := packet(0, unit)
		r, err := NewReader(picture.NewSource(data[:len(data)-10]), nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(r.Pictures()) != 0 {
			t.Errorf("captions = %d, want none", len(r.Pictures()))
		}
	})
	t.Run("broken unit skipped", func(t *testing.T) {
		bad := append([]byte(nil), unit...)
		bad[2], bad[3] = 0, 2 // control offset inside the header
		r, err := NewReader(picture.NewSource(append(packet(0, bad), packet(9000, unit)...)), nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(r.Pictures()) != 1 || r.Pictures()[0].Start != 9000 {
			t.Errorf("captions = %d", len(r.Pictures()))
		}
	})
}

func TestWriter_Rejects(t *testing.T) {
	_, pal := testCaption()
	w := NewWriter(&bytes.Buffer{})
	bm := bitmap.NewFilled(10, 10, 5)
	err := w.WritePicture(&picture.SubPicture{End: 9000}, bm, pal)
	if !errors.Is(err, picture.ErrCapacity) {
		t.Errorf("5th color: %v", err)
	}
	err = w.WritePicture(&picture.SubPicture{Image: picture.Rect{X: 715}}, bitmap.New(10, 10), pal)
	if !errors.Is(err, picture.ErrInvalid) {
		t.Errorf("outside frame: %v", err)
	}
}

func TestIFO(t *testing.T) {
	grays := palette.New(16, palette.BT601)
	for i := range 16 {
		_ = grays.SetRGB(i, uint8(i*17), uint8(i*17), uint8(i*17))
		_ = grays.SetAlpha(i, 255)
	}
	bm, pal := testCaption()
	_ = pal.SetColor(3, color.NRGBA{0x11, 0x11, 0x11, 0xff})

	dir := t.TempDir()
	path := filepath.Join(dir, "movie.sup")
	opts := []format.Option{
		format.WithColorSpace(palette.BT601), format.WithPalette(grays),
		format.WithLanguage("deu"), format.WithResolution(720, 480), format.WithIFO(true),
	}
	w, err := Create(path, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WritePicture(&picture.SubPicture{Start: 0, End: timecode.Clock}, bm, pal); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	ifo, err := LoadIFO(filepath.Join(dir, "movie.ifo"), palette.BT601)
	if err != nil {
		t.Fatal(err)
	}
	if ifo.Width != 720 || ifo.Height != 480 || ifo.Language != "de" {
		t.Errorf("IFO = %dx%d %q", ifo.Width, ifo.Height, ifo.Language)
	}
	for i := range 16 {
		y1, cb1, cr1 := grays.YCbCr(i)
		y2, cb2, cr2 := ifo.Palette.YCbCr(i)
		if y1 != y2 || cb1 != cb2 || cr1 != cr2 {
			t.Errorf("entry %d: %d,%d,%d want %d,%d,%d", i, y2, cb2, cr2, y1, cb1, cr1)
		}
	}

	r, err := Open(path, format.WithColorSpace(palette.BT601))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.IFO() == nil || len(r.Pictures()) != 1 || r.Pictures()[0].Height != 480 {
		t.Fatalf("IFO not picked up")
	}
	if c := r.Pictures()[0].SPU.Colors; c != [4]uint8{0, 14, 12, 1} {
		t.Errorf("colors = %v", c)
	}
}

func TestReadIFO_NotIFO(t *testing.T) {
	_, err := ReadIFO(bytes.NewReader(make([]byte, 4096)), palette.BT601)
	if !errors.Is(err, ErrNotIFO) {
		t.Errorf("err = %v", err)
	}
}
