package format

import (
	"testing"

	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/timecode"
)

func TestNewConfig(t *testing.T) {
	c := NewConfig()
	if c.Logger == nil || c.Palette == nil || c.Palette.Size() != 16 {
		t.Fatalf("defaults not filled: %+v", c)
	}
	c = NewConfig(WithColorSpace(palette.BT601), WithFrameRate(timecode.FPS25),
		WithResolution(720, 576), WithLanguage("de"))
	if c.ColorSpace != palette.BT601 || c.FrameRate != timecode.FPS25 ||
		c.Width != 720 || c.Height != 576 || c.Language != "de" {
		t.Errorf("options not applied: %+v", c)
	}
	if c.Palette.ColorSpace() != palette.BT601 {
		t.Error("default palette ignores the color space")
	}
}

func TestLanguageCodes(t *testing.T) {
	tests := []struct {
		in, two, three string
	}{
		{"en", "en", "eng"},
		{"eng", "en", "eng"},
		{"de", "de", "deu"},
		{"fra", "fr", "fra"},
		{" ja ", "ja", "jpn"},
	}
	for _, tt := range tests {
		two, err := ISO639_1(tt.in)
		if err != nil || two != tt.two {
			t.Errorf("ISO639_1(%q) = %q, %v, want %q", tt.in, two, err, tt.two)
		}
		three, err := ISO639_2(tt.in)
		if err != nil || three != tt.three {
			t.Errorf("ISO639_2(%q) = %q, %v, want %q", tt.in, three, err, tt.three)
		}
	}
	if _, err := ISO639_1("x1"); err == nil {
		t.Error("invalid code accepted")
	}
}
