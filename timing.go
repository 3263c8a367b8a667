package subpic

import (
	"log/slog"
	"math"

	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

// Timing converts caption timestamps between frame rates.
type Timing struct {
	Source, Target timecode.FrameRate

	// Delay is added after the frame rate conversion.
	Delay int64

	// MinDisplayTime is the shortest display time.
	MinDisplayTime int64

	// FixOverlaps ends every caption no later than the start of the next.
	FixOverlaps bool
}

// Convert maps a timestamp of the source to the target.
//
// A frame rate change keeps frame numbers and changes the speed, so the
// timestamp is scaled by Source/Target and rounded to a target frame.
func (t Timing) Convert(pts int64) int64 {
	if t.Source != 0 && t.Target != 0 && t.Source != t.Target {
		pts = int64(math.Round(float64(pts) * float64(t.Source) / float64(t.Target)))
		pts = t.Target.Snap(pts)
	}
	return pts + t.Delay
}

// Apply converts the timestamps of pics in place and returns the captions
// that are still visible. pics must be in presentation order.
func (t Timing) Apply(pics []*picture.SubPicture, log *slog.Logger) []*picture.SubPicture {
	out := pics[:0:0]
	for _, p := range pics {
		p.Start, p.End = t.Convert(p.Start), t.Convert(p.End)
		if p.End <= 0 {
			log.Warn("subpic: caption moved before zero, dropped", "start", p.Start)
			continue
		}
		p.Start = max(p.Start, 0)
		for i := range p.PaletteUpdates {
			p.PaletteUpdates[i].PTS = max(t.Convert(p.PaletteUpdates[i].PTS), 0)
		}
		out = append(out, p)
	}

	for i, p := range out {
		next := int64(math.MaxInt64)
		if i+1 < len(out) {
			next = out[i+1].Start
		}
		if p.End-p.Start < t.MinDisplayTime {
			end := p.Start + t.MinDisplayTime
			if t.FixOverlaps {
				end = min(end, next)
			}
			p.End = max(p.End, end)
		}
		if t.FixOverlaps && p.End > next {
			log.Debug("subpic: overlap fixed", "start", timecode.PTSToTimeStr(p.Start),
				"end", timecode.PTSToTimeStr(p.End), "next", timecode.PTSToTimeStr(next))
			p.End = next
		}
	}
	return out
}

// timing returns the timestamp conversion of a stream.
func (s *Settings) timing(st *Stream) Timing {
	src := st.sourceFPS(s)
	dst := s.TargetFPS
	if dst == 0 {
		dst = src
	}
	return Timing{
		Source:         src,
		Target:         dst,
		Delay:          s.Delay,
		MinDisplayTime: s.MinDisplayTime,
		FixOverlaps:    s.FixOverlaps,
	}
}

// selectPictures returns copies of the captions of st that go to the output,
// with converted timestamps.
func (s *Settings) selectPictures(st *Stream) []*picture.SubPicture {
	log := s.logger()
	var pics []*picture.SubPicture
	for _, p := range st.Pictures() {
		if p.Excluded || (s.ForcedOnly && !p.Forced) {
			continue
		}
		pics = append(pics, p.Clone())
	}
	return s.timing(st).Apply(pics, log)
}
