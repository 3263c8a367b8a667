package subpic

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/subpic/internal/logging"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

func TestTiming_Convert(t *testing.T) {
	tests := []struct {
		name   string
		timing Timing
		in     int64
		want   int64
	}{
		{"same rate", Timing{Source: timecode.FPS25, Target: timecode.FPS25}, 123456, 123456},
		{"no rates", Timing{Delay: -90}, 900, 810},
		// frame 240 at 23.976 fps is frame 240 at 25 fps
		{"pal speedup", Timing{Source: timecode.FPS23976, Target: timecode.FPS25}, 900900, 864000},
		{"pal speedup with delay", Timing{Source: timecode.FPS23976, Target: timecode.FPS25, Delay: 9000}, 900900, 873000},
		{"pal slowdown", Timing{Source: timecode.FPS25, Target: timecode.FPS23976}, 864000, 900900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.timing.Convert(tt.in); got != tt.want {
				t.Errorf("Convert(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

type span struct{ Start, End int64 }

func spans(pics []*picture.SubPicture) []span {
	out := make([]span, len(pics))
	for i, p := range pics {
		out[i] = span{p.Start, p.End}
	}
	return out
}

func captions(s ...span) []*picture.SubPicture {
	out := make([]*picture.SubPicture, len(s))
	for i, v := range s {
		out[i] = &picture.SubPicture{Start: v.Start, End: v.End}
	}
	return out
}

func TestTiming_Apply(t *testing.T) {
	in := []span{{0, 9000}, {45000, 200000}, {180000, 300000}}
	tests := []struct {
		name   string
		timing Timing
		want   []span
	}{
		{"untouched", Timing{}, in},
		{"min display time", Timing{MinDisplayTime: 20000},
			[]span{{0, 20000}, {45000, 200000}, {180000, 300000}}},
		{"overlaps", Timing{FixOverlaps: true},
			[]span{{0, 9000}, {45000, 180000}, {180000, 300000}}},
		{"min display time limited by next caption", Timing{MinDisplayTime: 90000, FixOverlaps: true},
			[]span{{0, 45000}, {45000, 180000}, {180000, 300000}}},
		{"negative delay", Timing{Delay: -100000},
			[]span{{0, 100000}, {80000, 200000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := spans(tt.timing.Apply(captions(in...), logging.Nop()))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTiming_PaletteUpdates(t *testing.T) {
	pic := &picture.SubPicture{Start: 90000, End: 180000,
		PaletteUpdates: []picture.PaletteUpdate{{PTS: 90000}, {PTS: 135000}}}
	Timing{Delay: 4500}.Apply([]*picture.SubPicture{pic}, logging.Nop())
	if pic.PaletteUpdates[0].PTS != 94500 || pic.PaletteUpdates[1].PTS != 139500 {
		t.Errorf("palette updates at %d, %d", pic.PaletteUpdates[0].PTS, pic.PaletteUpdates[1].PTS)
	}
}
