// Package timecode converts between 90 kHz presentation timestamps and the
// textual time formats used by subtitle containers.
//
// Three notations are supported:
//   - "HH:MM:SS.mmm" for logs and reports ([PTSToTimeStr], [TimeStrToPTS])
//   - "HH:MM:SS:FF" frame timecodes used by BDN XML ([PTSToTimecode],
//     [TimecodeToPTS])
//   - "HH:MM:SS:mmm" used by VobSub index files ([PTSToIdx], [IdxToPTS])
//
// Conversions are exact at integral frame (or millisecond) boundaries.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Clock is the number of PTS ticks per second.
const Clock = 90000

// ErrSyntax is wrapped by errors for malformed time strings.
var ErrSyntax = errors.New("timecode: invalid syntax")

// FrameRate is a video frame rate in frames per second.
type FrameRate float64

// Common frame rates.
const (
	FPS23976 FrameRate = 24000.0 / 1001
	FPS24    FrameRate = 24
	FPS25    FrameRate = 25
	FPS2997  FrameRate = 30000.0 / 1001
	FPS30    FrameRate = 30
	FPS50    FrameRate = 50
	FPS5994  FrameRate = 60000.0 / 1001
	FPS60    FrameRate = 60
)

// Nominal returns the number of frame labels per second in a timecode
// (24 for 23.976, 30 for 29.97 and so on).
func (f FrameRate) Nominal() int {
	return int(math.Ceil(float64(f) - 0.01))
}

// FrameTicks returns the duration of one frame in PTS ticks.
func (f FrameRate) FrameTicks() float64 {
	return Clock / float64(f)
}

// String formats the rate the way it is written in BDN files.
func (f FrameRate) String() string {
	switch f {
	case FPS23976:
		return "23.976"
	case FPS2997:
		return "29.97"
	case FPS5994:
		return "59.94"
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 64)
}

// ParseFrameRate parses a frame rate such as "25", "23.976" or "29.97".
// The NTSC rates are snapped to their exact rational values.
func ParseFrameRate(s string) (FrameRate, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: frame rate %q", ErrSyntax, s)
	}
	for _, f := range []FrameRate{FPS23976, FPS2997, FPS5994} {
		if math.Abs(v-float64(f)) < 0.01 {
			return f, nil
		}
	}
	return FrameRate(v), nil
}

// Snap rounds pts to the nearest frame boundary.
func (f FrameRate) Snap(pts int64) int64 {
	ft := f.FrameTicks()
	return int64(math.Round(math.Round(float64(pts)/ft) * ft))
}

func split(pts int64) (h, m, s, rem int64) {
	if pts < 0 {
		pts = 0
	}
	secs := pts / Clock
	return secs / 3600, secs / 60 % 60, secs % 60, pts % Clock
}

// PTSToTimeStr formats pts as "HH:MM:SS.mmm".
func PTSToTimeStr(pts int64) string {
	h, m, s, rem := split(pts)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, rem/90)
}

// PTSToIdx formats pts as "HH:MM:SS:mmm".
func PTSToIdx(pts int64) string {
	h, m, s, rem := split(pts)
	return fmt.Sprintf("%02d:%02d:%02d:%03d", h, m, s, rem/90)
}

// PTSToTimecode formats pts as "HH:MM:SS:FF" for the given frame rate.
// The frame number is rounded to the nearest frame.
func PTSToTimecode(pts int64, fps FrameRate) string {
	h, m, s, rem := split(pts)
	frames := int64(math.Round(float64(rem) * float64(fps) / Clock))
	if frames >= int64(fps.Nominal()) {
		// rounding reached the next second
		return PTSToTimecode((pts/Clock+1)*Clock, fps)
	}
	return fmt.Sprintf("%02d:%02d:%02d:%02d", h, m, s, frames)
}

// parseFields splits "HH:MM:SS<sep>NNN" into its numeric parts.
func parseFields(s string, sep byte) (h, m, sec, last int64, err error) {
	fail := fmt.Errorf("%w: %q", ErrSyntax, s)
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return 0, 0, 0, 0, fail
	}
	parts := strings.Split(s[:i], ":")
	if len(parts) != 3 {
		return 0, 0, 0, 0, fail
	}
	var v [4]int64
	for k, p := range append(parts, s[i+1:]) {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, 0, 0, fail
		}
		v[k] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return 0, 0, 0, 0, fail
	}
	return v[0], v[1], v[2], v[3], nil
}

// TimeStrToPTS parses "HH:MM:SS.mmm".
func TimeStrToPTS(s string) (int64, error) {
	h, m, sec, ms, err := parseFields(s, '.')
	if err != nil {
		return 0, err
	}
	if ms > 999 {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return ((h*3600+m*60+sec)*1000 + ms) * 90, nil
}

// IdxToPTS parses "HH:MM:SS:mmm".
func IdxToPTS(s string) (int64, error) {
	h, m, sec, ms, err := parseFields(s, ':')
	if err != nil {
		return 0, err
	}
	if ms > 999 {
		return 0, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return ((h*3600+m*60+sec)*1000 + ms) * 90, nil
}

// TimecodeToPTS parses "HH:MM:SS:FF" for the given frame rate.
func TimecodeToPTS(s string, fps FrameRate) (int64, error) {
	h, m, sec, frames, err := parseFields(s, ':')
	if err != nil {
		return 0, err
	}
	if frames >= int64(fps.Nominal()) {
		return 0, fmt.Errorf("%w: frame %d at %v fps in %q", ErrSyntax, frames, fps, s)
	}
	return (h*3600+m*60+sec)*Clock + int64(math.Round(float64(frames)*Clock/float64(fps))), nil
}

// bdCodes maps Blu-ray PCS frame rate codes to frame rates.
var bdCodes = []struct {
	code uint8
	fps  FrameRate
}{
	{0x10, FPS23976},
	{0x20, FPS24},
	{0x30, FPS25},
	{0x40, FPS2997},
	{0x60, FPS50},
	{0x70, FPS5994},
}

// BDCode returns the Blu-ray frame rate code for f. Rates without a code
// map to the 23.976 code.
func BDCode(f FrameRate) uint8 {
	for _, c := range bdCodes {
		if c.fps == f {
			return c.code
		}
	}
	return 0x10
}

// FromBDCode returns the frame rate for a Blu-ray frame rate code.
func FromBDCode(code uint8) (FrameRate, bool) {
	for _, c := range bdCodes {
		if c.code == code {
			return c.fps, true
		}
	}
	return 0, false
}
