package main

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/subpic"
	"github.com/gogpu/subpic/bitmap"
	"github.com/gogpu/subpic/filter"
	"github.com/gogpu/subpic/format"
	"github.com/gogpu/subpic/format/bdsup"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/picture"
	"github.com/gogpu/subpic/timecode"
)

func TestParseArgs(t *testing.T) {
	o, err := parseArgs([]string{"-resolution", "pal", "-fps-dst", "25", "-delay", "-100",
		"-filter", "lanczos3", "-forced", "-workers", "4", "in.sup", "out.idx"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	s := subpic.NewSettings(o.settings...)
	if s.OutputFormat != subpic.FormatVobSub || s.Resolution != subpic.PAL || s.TargetFPS != timecode.FPS25 {
		t.Errorf("settings = %+v", s)
	}
	if s.Delay != -9000 || s.Filter != filter.Lanczos3 || !s.ForcedOnly || s.Workers != 4 || s.MinDisplayTime != 45000 {
		t.Errorf("settings = %+v", s)
	}
	if o.input != "in.sup" || o.output != "out.idx" {
		t.Errorf("files %q %q", o.input, o.output)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"a", "b", "c"},
		{"-resolution", "huge", "in.sup"},
		{"-fps-src", "fast", "in.sup"},
		{"-filter", "box", "in.sup"},
		{"-format", "srt", "in.sup"},
		{"-unknown", "in.sup"},
	} {
		if _, err := parseArgs(args, io.Discard); err == nil {
			t.Errorf("parseArgs(%q) succeeded", args)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, output string
		f             subpic.Format
		want          string
	}{
		{"movie.sup", "", subpic.FormatVobSub, "movie.idx"},
		{"movie.sup", "", subpic.FormatXML, "movie.xml"},
		{"movie.sup", "", subpic.FormatDVDSUP, "movie_dvdsup.sup"},
		{"movie.sup", "x.sup", subpic.FormatBDSUP, "x.sup"},
	}
	for _, tt := range tests {
		o := &options{input: tt.input, output: tt.output}
		if got := o.outputPath(tt.f); got != tt.want {
			t.Errorf("outputPath(%q, %v) = %q, want %q", tt.input, tt.f, got, tt.want)
		}
	}
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movie.sup")
	w, err := bdsup.Create(path, format.WithFrameRate(timecode.FPS25))
	if err != nil {
		t.Fatal(err)
	}
	bm := bitmap.New(100, 20)
	bm.FillRectangle(10, 5, 80, 10, 1)
	pal := palette.New(2, palette.BT709)
	_ = pal.SetColor(1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	for i := range 3 {
		pic := &picture.SubPicture{Start: int64(i+1) * 90000, End: int64(i+1)*90000 + 45000,
			Width: 1920, Height: 1080, Image: picture.Rect{X: 900, Y: 1000, Width: 100, Height: 20}}
		if err := w.WritePicture(pic, bm, pal); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	in := writeInput(t)
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-format", "xml", in}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "3 captions written") {
		t.Errorf("stdout = %q", stdout.String())
	}
	st, err := subpic.ParseSource(strings.TrimSuffix(in, ".sup") + ".xml")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if st.Format != subpic.FormatXML || len(st.Pictures()) != 3 {
		t.Errorf("output %v with %d captions", st.Format, len(st.Pictures()))
	}

	stdout.Reset()
	if err := run(context.Background(), []string{"-info", in}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "00:00:01.000 --> 00:00:01.500") {
		t.Errorf("info output = %q", stdout.String())
	}
}
