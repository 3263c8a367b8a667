package picture

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validPicture() *SubPicture {
	return &SubPicture{
		Kind:   KindBD,
		Start:  90000,
		End:    180000,
		Width:  1920,
		Height: 1080,
		Window: Rect{X: 100, Y: 900, Width: 800, Height: 100},
		Image:  Rect{X: 120, Y: 910, Width: 700, Height: 80},
		Objects: []ImageObject{{
			BufferSize: 30,
			Fragments:  []Fragment{{Offset: 10, Size: 20}, {Offset: 40, Size: 10}},
		}},
		BD: &BDPayload{Palettes: []PaletteInfo{{Offset: 5, Size: 2}}},
	}
}

func TestValidate(t *testing.T) {
	if err := validPicture().Validate(); err != nil {
		t.Fatalf("valid picture: %v", err)
	}

	tests := []struct {
		name   string
		modify func(p *SubPicture)
		want   error
	}{
		{"window outside frame", func(p *SubPicture) { p.Window.X = 1500 }, ErrInvalid},
		{"image outside window", func(p *SubPicture) { p.Image.Width = 900 }, ErrInvalid},
		{"end before start", func(p *SubPicture) { p.End = 0 }, ErrInvalid},
		{"fragment sum", func(p *SubPicture) { p.Objects[0].BufferSize = 31 }, ErrFragmentSize},
		{"palette order", func(p *SubPicture) {
			p.PaletteUpdates = []PaletteUpdate{{PTS: 100000}, {PTS: 95000}}
		}, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPicture()
			tt.modify(p)
			if err := p.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSaveOriginalRevert(t *testing.T) {
	p := validPicture()
	before := p.Geometry()
	p.SaveOriginal()
	p.Width, p.Height = 720, 576
	p.Image.X = 3
	p.SaveOriginal() // second call keeps the first snapshot
	p.Revert()
	if diff := cmp.Diff(before, p.Geometry()); diff != "" {
		t.Errorf("geometry after revert (-want +got):\n%s", diff)
	}
	if p.Original != nil {
		t.Error("Original not cleared")
	}
}

func TestClone(t *testing.T) {
	p := validPicture()
	p.SaveOriginal()
	c := p.Clone()
	if diff := cmp.Diff(p, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}
	c.Objects[0].Fragments[0].Size = 99
	c.BD.Palettes[0].Size = 99
	c.Original.Width = 1
	if p.Objects[0].Fragments[0].Size == 99 || p.BD.Palettes[0].Size == 99 || p.Original.Width == 1 {
		t.Error("clone shares memory with the original")
	}
}

func TestSource_ReadFragments(t *testing.T) {
	data := []byte("0123456789abcdef")
	for name, open := range map[string]func(t *testing.T) *Source{
		"memory": func(*testing.T) *Source { return NewSource(data) },
		"reader": func(*testing.T) *Source { return NewReaderSource(bytes.NewReader(data), int64(len(data))) },
		"file": func(t *testing.T) *Source {
			path := filepath.Join(t.TempDir(), "stream.sup")
			if err := os.WriteFile(path, data, 0o600); err != nil {
				t.Fatal(err)
			}
			s, err := OpenSource(path)
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	} {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			got, err := s.ReadFragments([]Fragment{{Offset: 2, Size: 3}, {Offset: 10, Size: 6}})
			if err != nil {
				t.Fatal(err)
			}
			if string(got[0]) != "234" || string(got[1]) != "abcdef" {
				t.Errorf("fragments = %q", got)
			}
			if _, err := s.ReadFragments([]Fragment{{Offset: 12, Size: 5}}); !errors.Is(err, ErrTruncated) {
				t.Errorf("read past end: %v", err)
			}
			p, err := s.Preload()
			if err != nil || !p.Preloaded() || p.Size() != s.Size() {
				t.Errorf("Preload() = %v, %v", p, err)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{Offset: 174, Index: 2, Err: ErrTruncated}
	if !errors.Is(err, ErrTruncated) {
		t.Error("ParseError does not unwrap")
	}
	want := "parse error: picture: truncated data (at byte 174) (caption 2)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
