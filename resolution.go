package subpic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/subpic/timecode"
)

// Resolution is a video frame size. The zero value keeps the size of the
// source stream.
type Resolution struct {
	Width, Height int
}

// Standard frame sizes.
var (
	NTSC   = Resolution{720, 480}
	PAL    = Resolution{720, 576}
	HD720  = Resolution{1280, 720}
	HD1440 = Resolution{1440, 1080}
	HD1080 = Resolution{1920, 1080}
)

var resolutionNames = []struct {
	name string
	res  Resolution
}{
	{"ntsc", NTSC},
	{"480", NTSC},
	{"pal", PAL},
	{"576", PAL},
	{"720", HD720},
	{"720p", HD720},
	{"1440x1080", HD1440},
	{"1080", HD1080},
	{"1080p", HD1080},
}

// IsZero reports whether r is the zero value.
func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0
}

func (r Resolution) String() string {
	return strconv.Itoa(r.Width) + "x" + strconv.Itoa(r.Height)
}

// ParseResolution parses a preset name ("pal", "ntsc", "720p", "1080p",
// "1440x1080") or an explicit WIDTHxHEIGHT size. "keep" and the empty
// string return the zero Resolution.
func ParseResolution(s string) (Resolution, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "keep" {
		return Resolution{}, nil
	}
	for _, n := range resolutionNames {
		if n.name == s {
			return n.res, nil
		}
	}
	ws, hs, ok := strings.Cut(s, "x")
	if ok {
		w, err1 := strconv.Atoi(ws)
		h, err2 := strconv.Atoi(hs)
		if err1 == nil && err2 == nil && w > 0 && h > 0 && w <= 4096 && h <= 4096 {
			return Resolution{w, h}, nil
		}
	}
	return Resolution{}, fmt.Errorf("subpic: invalid resolution %q", s)
}

// DVDResolution returns the DVD frame size that matches a frame rate:
// NTSC for 29.97 and 23.976 fps material, PAL otherwise.
func DVDResolution(fps timecode.FrameRate) Resolution {
	switch fps {
	case timecode.FPS2997, timecode.FPS23976, timecode.FPS5994:
		return NTSC
	}
	return PAL
}

// DefaultFrameRate guesses the frame rate of a stream that does not store
// one from its frame height.
func DefaultFrameRate(height int) timecode.FrameRate {
	switch height {
	case 480:
		return timecode.FPS2997
	case 576:
		return timecode.FPS25
	}
	return timecode.FPS23976
}
