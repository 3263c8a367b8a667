package subpic

import (
	"testing"

	"github.com/gogpu/subpic/timecode"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in      string
		want    Resolution
		wantErr bool
	}{
		{"", Resolution{}, false},
		{"keep", Resolution{}, false},
		{"PAL", PAL, false},
		{"ntsc", NTSC, false},
		{"576", PAL, false},
		{" 720p ", HD720, false},
		{"1440x1080", HD1440, false},
		{"1080p", HD1080, false},
		{"640x360", Resolution{640, 360}, false},
		{"0x360", Resolution{}, true},
		{"8000x100", Resolution{}, true},
		{"big", Resolution{}, true},
	}
	for _, tt := range tests {
		got, err := ParseResolution(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseResolution(%q) = %v, %v", tt.in, got, err)
		}
	}
	if s := HD720.String(); s != "1280x720" {
		t.Errorf("String() = %q", s)
	}
}

func TestDVDResolution(t *testing.T) {
	tests := []struct {
		fps  timecode.FrameRate
		want Resolution
	}{
		{timecode.FPS23976, NTSC},
		{timecode.FPS2997, NTSC},
		{timecode.FPS24, PAL},
		{timecode.FPS25, PAL},
		{timecode.FPS50, PAL},
	}
	for _, tt := range tests {
		if got := DVDResolution(tt.fps); got != tt.want {
			t.Errorf("DVDResolution(%v) = %v, want %v", tt.fps, got, tt.want)
		}
	}
	for h, want := range map[int]timecode.FrameRate{480: timecode.FPS2997, 576: timecode.FPS25, 1080: timecode.FPS23976} {
		if got := DefaultFrameRate(h); got != want {
			t.Errorf("DefaultFrameRate(%d) = %v", h, got)
		}
	}
}
