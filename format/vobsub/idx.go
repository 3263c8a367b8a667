package vobsub

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/timecode"
)

const idxHeader = "# VobSub index file, v7 (do not modify this line!)"

// Entry is one caption of an index: its timestamp and the position of its
// first pack in the SUB file.
type Entry struct {
	PTS     int64
	FilePos int64
}

// Stream is one language track of an index.
type Stream struct {
	Language string // two letter code as written in the id line
	Index    int    // substream number, 0x20 + Index in the SUB file
	Entries  []Entry
}

// Index is the content of an IDX file.
type Index struct {
	Width, Height int
	Palette       *palette.Palette
	LangIdx       int
	Forced        bool
	Streams       []Stream
}

// Stream returns the track with the given substream number.
func (x *Index) Stream(index int) (*Stream, bool) {
	for i := range x.Streams {
		if x.Streams[i].Index == index {
			return &x.Streams[i], true
		}
	}
	return nil, false
}

// IdxError reports a malformed line of an IDX file.
type IdxError struct {
	Line int
	Err  error
}

func (e *IdxError) Error() string {
	return fmt.Sprintf("vobsub: idx line %d: %v", e.Line, e.Err)
}

func (e *IdxError) Unwrap() error { return e.Err }

// ParseIndex reads an IDX file. Unknown keys are ignored. "delay:" lines
// shift the timestamps that follow them within the current stream.
func ParseIndex(r io.Reader, cs palette.ColorSpace) (*Index, error) {
	x := &Index{Width: 720, Height: 576, Palette: palette.DefaultDVD(cs)}
	var cur *Stream
	var delay int64
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, val = strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(val)
		var err error
		switch key {
		case "size":
			w, h, found := strings.Cut(val, "x")
			if !found {
				err = fmt.Errorf("size %q", val)
				break
			}
			if x.Width, err = strconv.Atoi(strings.TrimSpace(w)); err == nil {
				x.Height, err = strconv.Atoi(strings.TrimSpace(h))
			}
		case "palette":
			err = parseIdxPalette(x.Palette, val)
		case "langidx":
			x.LangIdx, err = strconv.Atoi(val)
		case "forced subs":
			x.Forced = strings.EqualFold(val, "on")
		case "id":
			lang, idx, found := strings.Cut(val, ",")
			_, num, _ := strings.Cut(idx, ":")
			if !found {
				err = fmt.Errorf("id %q", val)
				break
			}
			s := Stream{Language: strings.TrimSpace(lang)}
			if s.Index, err = strconv.Atoi(strings.TrimSpace(num)); err == nil {
				x.Streams = append(x.Streams, s)
				cur = &x.Streams[len(x.Streams)-1]
				delay = 0
			}
		case "delay":
			var d int64
			neg := strings.HasPrefix(val, "-")
			if d, err = timecode.IdxToPTS(strings.TrimPrefix(val, "-")); err == nil {
				if neg {
					d = -d
				}
				delay += d
			}
		case "timestamp":
			err = parseTimestamp(cur, val, delay)
		}
		if err != nil {
			return nil, &IdxError{Line: n, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vobsub: read idx: %w", err)
	}
	return x, nil
}

func parseIdxPalette(p *palette.Palette, val string) error {
	for i, f := range strings.Split(val, ",") {
		if i >= p.Size() {
			break
		}
		rgb, err := strconv.ParseUint(strings.TrimSpace(f), 16, 32)
		if err != nil {
			return fmt.Errorf("palette entry %d: %w", i, err)
		}
		_ = p.SetRGB(i, uint8(rgb>>16), uint8(rgb>>8), uint8(rgb))
		_ = p.SetAlpha(i, 255)
	}
	return nil
}

// parseTimestamp parses "HH:MM:SS:mmm, filepos: 000000000".
func parseTimestamp(s *Stream, val string, delay int64) error {
	if s == nil {
		return fmt.Errorf("timestamp before id line")
	}
	ts, rest, _ := strings.Cut(val, ",")
	_, pos, found := strings.Cut(rest, ":")
	if !found {
		return fmt.Errorf("timestamp %q without filepos", val)
	}
	pts, err := timecode.IdxToPTS(strings.TrimSpace(ts))
	if err != nil {
		return err
	}
	fp, err := strconv.ParseInt(strings.TrimSpace(pos), 16, 64)
	if err != nil {
		return fmt.Errorf("filepos: %w", err)
	}
	s.Entries = append(s.Entries, Entry{PTS: max(pts+delay, 0), FilePos: fp})
	return nil
}

// WriteTo writes the index in the text form read by [ParseIndex].
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countWriter{w: bw}
	fmt.Fprintln(cw, idxHeader)
	fmt.Fprintln(cw, "# Created by subpic")
	fmt.Fprintln(cw)
	fmt.Fprintf(cw, "size: %dx%d\n", x.Width, x.Height)
	fmt.Fprintln(cw, "org: 0, 0")
	fmt.Fprintln(cw, "scale: 100%, 100%")
	fmt.Fprintln(cw, "alpha: 100%")
	fmt.Fprintln(cw, "smooth: OFF")
	fmt.Fprintln(cw, "fadein/out: 50, 50")
	fmt.Fprintln(cw, "align: OFF at LEFT TOP")
	fmt.Fprintln(cw, "time offset: 0")
	fmt.Fprintf(cw, "forced subs: %s\n", onOff(x.Forced))

	cols := make([]string, 16)
	for i := range cols {
		r, g, b := x.Palette.RGB(i)
		cols[i] = fmt.Sprintf("%02x%02x%02x", r, g, b)
	}
	fmt.Fprintf(cw, "palette: %s\n", strings.Join(cols, ", "))
	fmt.Fprintln(cw, "custom colors: OFF, tridx: 0000, colors: 000000, 000000, 000000, 000000")
	fmt.Fprintln(cw)
	fmt.Fprintf(cw, "langidx: %d\n", x.LangIdx)
	for _, s := range x.Streams {
		fmt.Fprintln(cw)
		fmt.Fprintf(cw, "id: %s, index: %d\n", s.Language, s.Index)
		for _, e := range s.Entries {
			fmt.Fprintf(cw, "timestamp: %s, filepos: %09x\n", timecode.PTSToIdx(e.PTS), e.FilePos)
		}
	}
	if cw.err == nil {
		cw.err = bw.Flush()
	}
	return cw.n, cw.err
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// countWriter keeps the first write error so the line writes above need
// no individual checks.
type countWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
