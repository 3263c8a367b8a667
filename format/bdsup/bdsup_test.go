package bdsup

import (
	"bytes"
	"errors"
	"image/color"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/internal/rle"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// fixtureImage returns a 165x170 bitmap of alternating colors 1 and 2.
// Every pixel is encoded as a single byte, so each line takes 167 bytes and
// the whole image 28390 bytes.
func fixtureImage() *bitmap.Bitmap {
	bm := bitmap.New(165, 170)
	for i := range bm.Pix() {
		bm.Pix()[i] = uint8(1 + i%2)
	}
	return bm
}

// fixtureStream builds a single caption stream segment by segment:
//
//	0    PCS (32 bytes)
//	32   WDS (23 bytes)
//	55   PDS with 16 entries (95 bytes), entries start at 70
//	150  ODS, RLE data starts at 174
//	     END, then PCS without objects and END at the end time
func fixtureStream(t *testing.T) []byte {
	t.Helper()
	const start, end = 10 * timecode.Clock, 12*timecode.Clock + 45000
	data := rle.EncodeBD(fixtureImage())
	if len(data) != 28390 {
		t.Fatalf("fixture RLE size = %d", len(data))
	}
	show := pcs{Width: 1920, Height: 1080, FrameRate: 0x10, State: StateEpochStart,
		Objects: []compositionObject{{X: 800, Y: 900}}}
	win := []window{{X: 800, Y: 900, Width: 165, Height: 170}}

	pds := []byte{0, 0}
	for i := range 16 {
		y, cb, cr := palette.RGBToYCbCr(uint8(i*16), uint8(i*16), uint8(i*16), palette.BT709)
		a := uint8(255)
		if i == 0 {
			a = 0
		}
		pds = append(pds, byte(i), y, cr, cb, a)
	}
	ods := []byte{0, 0, 0, seqFirst | seqLast,
		byte((len(data) + 4) >> 16), byte((len(data) + 4) >> 8), byte(len(data) + 4),
		0, 165, 0, 170}

	var out []byte
	out = appendSegment(out, SegPCS, start, 0, show.marshal())
	out = appendSegment(out, SegWDS, start, 0, marshalWDS(win))
	out = appendSegment(out, SegPDS, start, 0, pds)
	if len(out) != 150 {
		t.Fatalf("ODS at %d, want 150", len(out))
	}
	out = appendSegment(out, SegODS, start, 0, append(ods, data...))
	out = appendSegment(out, SegEND, start, 0, nil)
	hide := pcs{Width: 1920, Height: 1080, FrameRate: 0x10, Number: 1}
	out = appendSegment(out, SegPCS, end, 0, hide.marshal())
	out = appendSegment(out, SegEND, end, 0, nil)
	return out
}

func TestReader_Fixture(t *testing.T) {
	r, err := NewReader(picture.NewSource(fixtureStream(t)), format.WithColorSpace(palette.BT709))
	if err != nil {
		t.Fatal(err)
	}
	pics := r.Pictures()
	if len(pics) != 1 {
		t.Fatalf("got %d captions, want 1", len(pics))
	}
	p := pics[0]
	if p.Start != 900000 || p.End != 1125000 {
		t.Errorf("interval = %d..%d", p.Start, p.End)
	}
	wantRect := picture.Rect{X: 800, Y: 900, Width: 165, Height: 170}
	if p.Window != wantRect || p.Image != wantRect {
		t.Errorf("window %+v image %+v, want %+v", p.Window, p.Image, wantRect)
	}
	if diff := cmp.Diff([]picture.PaletteInfo{{Offset: 70, Size: 16}}, p.BD.Palettes); diff != "" {
		t.Errorf("palettes (-want +got):\n%s", diff)
	}
	if len(p.Objects) != 1 {
		t.Fatalf("got %d objects", len(p.Objects))
	}
	if diff := cmp.Diff([]picture.Fragment{{Offset: 174, Size: 28390}}, p.Objects[0].Fragments); diff != "" {
		t.Errorf("fragments (-want +got):\n%s", diff)
	}
	if p.Objects[0].BufferSize != 28390 {
		t.Errorf("buffer size = %d", p.Objects[0].BufferSize)
	}
	if r.FrameRate() != timecode.FPS23976 {
		t.Errorf("frame rate = %v", r.FrameRate())
	}

	bm, pal, err := r.Decode(p)
	if err != nil {
		t.Fatal(err)
	}
	if !bm.Equal(fixtureImage()) {
		t.Error("decoded image differs")
	}
	if c := pal.Color(2); c.A != 255 || c.R < 31 || c.R > 33 {
		t.Errorf("palette entry 2 = %v", c)
	}
	if pal.Alpha(0) != 0 || pal.Alpha(200) != 0 {
		t.Error("undefined entries must be transparent")
	}
	if !p.WasDecoded {
		t.Error("WasDecoded not set")
	}
}

// paletteUpdate builds a display set that replaces entry 1 of palette 0
// while the fixture object stays on screen.
func paletteUpdate(pts int64) []byte {
	c := pcs{Width: 1920, Height: 1080, FrameRate: 0x10, Number: 2, PaletteUpdate: true,
		Objects: []compositionObject{{X: 800, Y: 900}}}
	y, cb, cr := palette.RGBToYCbCr(255, 0, 0, palette.BT709)
	var out []byte
	out = appendSegment(out, SegPCS, pts, 0, c.marshal())
	out = appendSegment(out, SegPDS, pts, 0, []byte{0, 1, 1, y, cr, cb, 255})
	return appendSegment(out, SegEND, pts, 0, nil)
}

func TestReader_PaletteUpdates(t *testing.T) {
	stream := fixtureStream(t)
	const hideLen = 2*HeaderSize + 11 // empty PCS and END
	show, hide := stream[:len(stream)-hideLen], stream[len(stream)-hideLen:]

	var data []byte
	data = append(data, show...)
	first := int64(len(data)) + HeaderSize + 19 + HeaderSize + 2
	data = append(data, paletteUpdate(11*timecode.Clock)...)
	second := int64(len(data)) + HeaderSize + 19 + HeaderSize + 2
	data = append(data, paletteUpdate(12*timecode.Clock)...)
	data = append(data, hide...)
	data = append(data, paletteUpdate(20*timecode.Clock)...) // nothing on screen

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	r, err := NewReader(picture.NewSource(data), format.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Pictures()) != 1 {
		t.Fatalf("got %d captions, want 1", len(r.Pictures()))
	}
	p := r.Pictures()[0]
	if p.Start != 900000 || p.End != 1125000 {
		t.Errorf("interval = %d..%d", p.Start, p.End)
	}
	want := []picture.PaletteUpdate{
		{PTS: 11 * timecode.Clock, Palette: picture.PaletteInfo{Offset: first, Size: 1}},
		{PTS: 12 * timecode.Clock, Palette: picture.PaletteInfo{Offset: second, Size: 1}},
	}
	if diff := cmp.Diff(want, p.PaletteUpdates); diff != "" {
		t.Errorf("palette updates (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]picture.PaletteInfo{{Offset: 70, Size: 16}}, p.BD.Palettes); diff != "" {
		t.Errorf("updates leaked into the caption palette (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "palette update outside a caption") {
		t.Errorf("no warning for the stray update, log:\n%s", logs.String())
	}

	// the caption still decodes with its original palette
	_, pal, err := r.Decode(p)
	if err != nil {
		t.Fatal(err)
	}
	if c := pal.Color(1); c.R != c.G {
		t.Errorf("entry 1 = %v, want the original gray", c)
	}
}

func TestReader_Errors(t *testing.T) {
	stream := fixtureStream(t)

	t.Run("bad marker", func(t *testing.T) {
		bad := bytes.Clone(stream)
		bad[32] = 'X'
		_, err := NewReader(picture.NewSource(bad))
		var pe *picture.ParseError
		if !errors.As(err, &pe) || pe.Offset != 32 || pe.Index != 0 {
			t.Errorf("err = %v, want ParseError at 32", err)
		}
	})

	t.Run("truncated stream", func(t *testing.T) {
		r, err := NewReader(picture.NewSource(stream[:1000]))
		if err != nil {
			t.Fatal(err)
		}
		if len(r.Pictures()) != 0 {
			t.Errorf("got %d captions from a truncated display set", len(r.Pictures()))
		}
	})

	t.Run("fragment size mismatch", func(t *testing.T) {
		bad := bytes.Clone(stream)
		bad[150+HeaderSize+6]++ // declared object length
		r, err := NewReader(picture.NewSource(bad))
		if err != nil {
			t.Fatal(err)
		}
		if len(r.Pictures()) != 1 {
			t.Fatalf("got %d captions", len(r.Pictures()))
		}
		if _, _, err := r.Decode(r.Pictures()[0]); !errors.Is(err, picture.ErrFragmentSize) {
			t.Errorf("Decode() = %v, want ErrFragmentSize", err)
		}
	})
}

func testPalette() *palette.Palette {
	p := palette.New(256, palette.BT709)
	for i := 1; i < 256; i++ {
		_ = p.SetColor(i, color.NRGBA{uint8(i), uint8(255 - i), uint8(i * 7), 255})
	}
	return p
}

func TestWriteRead(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	big := bitmap.New(400, 300) // RLE data spans several ODS segments
	for i := range big.Pix() {
		big.Pix()[i] = uint8(rng.Intn(256))
	}
	small := fixtureImage()
	pal := testPalette()

	in := []*picture.SubPicture{
		{Start: 90000, End: 180000, Width: 1920, Height: 1080,
			Image: picture.Rect{X: 10, Y: 20, Width: 400, Height: 300}},
		{Start: 270000, End: 300000, Width: 1920, Height: 1080, Forced: true,
			Image: picture.Rect{X: 100, Y: 800, Width: 165, Height: 170}},
	}
	bms := []*bitmap.Bitmap{big, small}

	path := filepath.Join(t.TempDir(), "out.sup")
	w, err := Create(path, format.WithFrameRate(timecode.FPS25))
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range in {
		if err := w.WritePicture(p, bms[i], pal); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.FrameRate() != timecode.FPS25 {
		t.Errorf("frame rate = %v", r.FrameRate())
	}
	got := r.Pictures()
	if len(got) != len(in) {
		t.Fatalf("read %d captions, wrote %d", len(got), len(in))
	}
	if n := len(got[0].Objects[0].Fragments); n < 2 {
		t.Errorf("large object stored in %d fragment(s)", n)
	}
	for i, p := range got {
		if p.Start != in[i].Start || p.End != in[i].End || p.Forced != in[i].Forced {
			t.Errorf("caption %d: %d..%d forced=%v", i, p.Start, p.End, p.Forced)
		}
		if p.Image != in[i].Image {
			t.Errorf("caption %d image = %+v, want %+v", i, p.Image, in[i].Image)
		}
		bm, gotPal, err := r.Decode(p)
		if err != nil {
			t.Fatal(err)
		}
		if !bm.Equal(bms[i]) {
			t.Errorf("caption %d: bitmap differs", i)
		}
		for k := range 256 {
			y1, cb1, cr1 := pal.YCbCr(k)
			y2, cb2, cr2 := gotPal.YCbCr(k)
			if y1 != y2 || cb1 != cb2 || cr1 != cr2 || pal.Alpha(k) != gotPal.Alpha(k) {
				t.Fatalf("caption %d: palette entry %d differs", i, k)
			}
		}
	}
}

func TestWriter_Capacity(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	pic := &picture.SubPicture{Start: 0, End: 1, Width: 100, Height: 100,
		Image: picture.Rect{X: 90, Y: 0, Width: 20, Height: 10}}
	err := w.WritePicture(pic, bitmap.New(20, 10), palette.New(4, palette.BT709))
	if !errors.Is(err, picture.ErrInvalid) {
		t.Errorf("image outside frame: %v", err)
	}
	pic.Image.X = 0
	err = w.WritePicture(pic, bitmap.New(20, 10), palette.New(300, palette.BT709))
	if !errors.Is(err, picture.ErrCapacity) {
		t.Errorf("oversized palette: %v", err)
	}
}
